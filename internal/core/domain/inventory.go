package domain

import "github.com/shopspring/decimal"

// InventoryItem is one catalog entry together with its stock position.
type InventoryItem struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	Stock            int             `json:"stock"`
	ReorderThreshold int             `json:"reorder_threshold"`
	LeadTimeDays     int             `json:"lead_time_days"`
}

func (i InventoryItem) BelowThreshold() bool {
	return i.Stock <= i.ReorderThreshold
}

// StockLine is a quantity of a single item moved by a ledger operation.
type StockLine struct {
	ItemID   string
	Quantity int
}

// LowStockItem is the report view of an item at or under its reorder threshold.
type LowStockItem struct {
	ItemID           string `json:"item_id"`
	Name             string `json:"name"`
	Stock            int    `json:"stock"`
	ReorderThreshold int    `json:"reorder_threshold"`
	SuggestedReorder int    `json:"suggested_reorder"`
	LeadTimeDays     int    `json:"lead_time_days"`
}
