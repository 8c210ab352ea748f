package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

type entry struct {
	id, name     string
	cost         string
	stock, floor int
	lead         int
}

var defaults = []entry{
	{"a4-paper", "A4 paper", "0.05", 2500, 500, 3},
	{"letter-paper", "Letter-sized paper", "0.06", 2000, 400, 3},
	{"copy-paper", "Standard copy paper", "0.04", 5000, 1000, 2},
	{"cardstock", "Cardstock", "0.15", 800, 200, 5},
	{"colored-paper", "Colored paper", "0.10", 1200, 250, 4},
	{"glossy-paper", "Glossy paper", "0.20", 600, 150, 5},
	{"matte-paper", "Matte paper", "0.18", 600, 150, 5},
	{"recycled-paper", "Recycled paper", "0.08", 1500, 300, 4},
	{"poster-paper", "Poster paper", "0.25", 300, 80, 7},
	{"banner-paper", "Banner paper", "0.30", 150, 50, 7},
	{"construction-paper", "Construction paper", "0.07", 900, 200, 4},
	{"kraft-paper", "Kraft paper", "0.10", 400, 100, 6},
	{"photo-paper", "Photo paper", "0.25", 250, 80, 6},
	{"envelopes", "Envelopes", "0.05", 1000, 250, 3},
	{"sticky-notes", "Sticky notes", "0.03", 2000, 400, 3},
	{"paper-napkins", "Paper napkins", "0.02", 3000, 600, 2},
	{"paper-cups", "Paper cups", "0.08", 1500, 300, 3},
	{"paper-plates", "Paper plates", "0.10", 1200, 300, 3},
	{"table-covers", "Table covers", "1.50", 60, 20, 10},
	{"invitation-cards", "Invitation cards", "0.50", 200, 60, 8},
}

// Default is the stock paper-goods catalog used when no catalog file is configured.
func Default() []domain.InventoryItem {
	items := make([]domain.InventoryItem, 0, len(defaults))
	for _, e := range defaults {
		items = append(items, domain.InventoryItem{
			ID:               e.id,
			Name:             e.name,
			UnitCost:         decimal.RequireFromString(e.cost),
			Stock:            e.stock,
			ReorderThreshold: e.floor,
			LeadTimeDays:     e.lead,
		})
	}
	return items
}

// Load reads a JSON array of inventory items from path, or returns Default for "".
func Load(path string) ([]domain.InventoryItem, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := Validate(items); err != nil {
		return nil, err
	}
	return items, nil
}

func Validate(items []domain.InventoryItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidCatalog)
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		switch {
		case it.ID == "" || it.Name == "":
			return fmt.Errorf("%w: item without id or name", ErrInvalidCatalog)
		case seen[it.ID]:
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidCatalog, it.ID)
		case !it.UnitCost.IsPositive():
			return fmt.Errorf("%w: %s has non-positive unit cost", ErrInvalidCatalog, it.ID)
		case it.Stock < 0 || it.ReorderThreshold < 0 || it.LeadTimeDays < 0:
			return fmt.Errorf("%w: %s has negative stock, threshold or lead time", ErrInvalidCatalog, it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}
