package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

// InventoryLedger owns per-item stock. A single lock covers every item so that
// multi-item reservations are one logical operation.
type InventoryLedger struct {
	mu    sync.RWMutex
	items map[string]*domain.InventoryItem
}

func NewInventoryLedger(items []domain.InventoryItem) *InventoryLedger {
	l := &InventoryLedger{items: make(map[string]*domain.InventoryItem, len(items))}
	for _, it := range items {
		if it.Stock < 0 {
			panic(fmt.Sprintf("ledger: item %s initialised with negative stock %d", it.ID, it.Stock))
		}
		item := it
		l.items[it.ID] = &item
	}
	return l
}

// CheckAvailability reports whether stock covers quantity. It has no side effects.
func (l *InventoryLedger) CheckAvailability(itemID string, quantity int) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	item, ok := l.items[itemID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	return item.Stock >= quantity, nil
}

func (l *InventoryLedger) ReserveAndDecrement(itemID string, quantity int) error {
	return l.ReserveAll([]domain.StockLine{{ItemID: itemID, Quantity: quantity}})
}

// ReserveAll decrements every line or none of them.
func (l *InventoryLedger) ReserveAll(lines []domain.StockLine) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	need, err := l.aggregate(lines)
	if err != nil {
		return err
	}
	for _, id := range sortedKeys(need) {
		if l.items[id].Stock < need[id] {
			return &StockError{ItemID: id, Requested: need[id]}
		}
	}
	for id, qty := range need {
		item := l.items[id]
		item.Stock -= qty
		mustNonNegative(item)
	}
	return nil
}

func (l *InventoryLedger) Restock(itemID string, quantity int) error {
	return l.RestockAll([]domain.StockLine{{ItemID: itemID, Quantity: quantity}})
}

func (l *InventoryLedger) RestockAll(lines []domain.StockLine) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	need, err := l.aggregate(lines)
	if err != nil {
		return err
	}
	for id, qty := range need {
		l.items[id].Stock += qty
	}
	return nil
}

// ItemsBelowThreshold returns items at or under their reorder threshold, by ID.
func (l *InventoryLedger) ItemsBelowThreshold() []domain.InventoryItem {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.InventoryItem
	for _, id := range sortedKeys(l.items) {
		if item := l.items[id]; item.BelowThreshold() {
			out = append(out, *item)
		}
	}
	return out
}

func (l *InventoryLedger) Item(itemID string) (domain.InventoryItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	item, ok := l.items[itemID]
	if !ok {
		return domain.InventoryItem{}, false
	}
	return *item, true
}

// Items returns a snapshot of the catalog ordered by ID.
func (l *InventoryLedger) Items() []domain.InventoryItem {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.InventoryItem, 0, len(l.items))
	for _, id := range sortedKeys(l.items) {
		out = append(out, *l.items[id])
	}
	return out
}

// Names returns the catalog item names ordered by ID.
func (l *InventoryLedger) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.items))
	for _, id := range sortedKeys(l.items) {
		out = append(out, l.items[id].Name)
	}
	return out
}

// aggregate folds repeated items together and validates them. Caller holds mu.
func (l *InventoryLedger) aggregate(lines []domain.StockLine) (map[string]int, error) {
	need := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s %d", ErrInvalidQuantity, line.ItemID, line.Quantity)
		}
		if _, ok := l.items[line.ItemID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, line.ItemID)
		}
		need[line.ItemID] += line.Quantity
	}
	return need, nil
}

func mustNonNegative(item *domain.InventoryItem) {
	if item.Stock < 0 {
		panic(fmt.Sprintf("ledger: stock for %s went negative (%d)", item.ID, item.Stock))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
