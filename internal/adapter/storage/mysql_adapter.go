package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR(36) PRIMARY KEY,
		request_id VARCHAR(64) NOT NULL,
		type VARCHAR(16) NOT NULL,
		amount DECIMAL(18,4) NOT NULL,
		resulting_balance DECIMAL(18,4) NOT NULL,
		refund_of VARCHAR(36) NULL,
		reason VARCHAR(255) NOT NULL DEFAULT '',
		committed_at DATETIME(6) NOT NULL,
		INDEX idx_transactions_request (request_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_lines (
		transaction_id VARCHAR(36) NOT NULL,
		line_no INT NOT NULL,
		item_id VARCHAR(64) NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(18,4) NOT NULL,
		PRIMARY KEY (transaction_id, line_no)
	)`,
	`CREATE TABLE IF NOT EXISTS quote_history (
		id VARCHAR(64) PRIMARY KEY,
		item_id VARCHAR(64) NOT NULL,
		unit_price DECIMAL(18,4) NOT NULL,
		quantity INT NOT NULL,
		sold_at DATETIME(6) NOT NULL,
		INDEX idx_quote_history_item (item_id, sold_at)
	)`,
	`CREATE TABLE IF NOT EXISTS outcomes (
		request_id VARCHAR(64) PRIMARY KEY,
		status VARCHAR(16) NOT NULL,
		final_total DECIMAL(18,4) NOT NULL,
		transaction_id VARCHAR(36) NULL,
		payload JSON NOT NULL,
		closed_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS business_reports (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		sequence INT NOT NULL,
		revenue DECIMAL(18,4) NOT NULL,
		payload JSON NOT NULL,
		generated_at DATETIME(6) NOT NULL
	)`,
}

type saleRow struct {
	ID        string          `db:"id"`
	ItemID    string          `db:"item_id"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	Quantity  int             `db:"quantity"`
	SoldAt    time.Time       `db:"sold_at"`
}

// MySQLAdapter is the durable journal, quote history and result store.
type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveTransaction writes the transaction, its lines and, for sales, the
// matching quote history rows in one database transaction.
func (m *MySQLAdapter) SaveTransaction(ctx context.Context, t domain.Transaction) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var refundOf *string
	if t.RefundOf != "" {
		refundOf = &t.RefundOf
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, request_id, type, amount, resulting_balance, refund_of, reason, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RequestID, t.Type, t.Amount, t.ResultingBalance, refundOf, t.Reason, t.CommittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	for i, l := range t.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transaction_lines (transaction_id, line_no, item_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			t.ID, i+1, l.ItemID, l.Quantity, l.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert transaction line: %w", err)
		}
	}

	if t.Type == domain.TransactionSale {
		for _, s := range salesFromTransaction(t) {
			if err := insertSale(ctx, tx, s); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// SaveHistoricalSales seeds quote history, e.g. from an imported sales log.
func (m *MySQLAdapter) SaveHistoricalSales(ctx context.Context, sales []domain.HistoricalSale) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, s := range sales {
		if err := insertSale(ctx, tx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertSale(ctx context.Context, tx *sqlx.Tx, s domain.HistoricalSale) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO quote_history (id, item_id, unit_price, quantity, sold_at)
		VALUES (:id, :item_id, :unit_price, :quantity, :sold_at)
		ON DUPLICATE KEY UPDATE unit_price = VALUES(unit_price)`,
		saleRow{ID: s.ID, ItemID: s.ItemID, UnitPrice: s.UnitPrice, Quantity: s.Quantity, SoldAt: s.Timestamp},
	)
	if err != nil {
		return fmt.Errorf("insert quote history: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Search(ctx context.Context, itemID string, w domain.HistoryWindow) ([]domain.HistoricalSale, error) {
	conditions := []string{"item_id = ?"}
	args := []interface{}{itemID}

	if !w.Since.IsZero() {
		conditions = append(conditions, "sold_at >= ?")
		args = append(args, w.Since)
	}
	if !w.Until.IsZero() {
		conditions = append(conditions, "sold_at <= ?")
		args = append(args, w.Until)
	}
	if w.MinQuantity > 0 {
		conditions = append(conditions, "quantity >= ?")
		args = append(args, w.MinQuantity)
	}
	if w.MaxQuantity > 0 {
		conditions = append(conditions, "quantity <= ?")
		args = append(args, w.MaxQuantity)
	}

	query := "SELECT id, item_id, unit_price, quantity, sold_at FROM quote_history WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY sold_at DESC, id ASC"
	if w.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", w.Limit)
	}

	var rows []saleRow
	if err := m.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query quote history: %w", err)
	}

	sales := make([]domain.HistoricalSale, 0, len(rows))
	for _, r := range rows {
		sales = append(sales, domain.HistoricalSale{
			ID:        r.ID,
			ItemID:    r.ItemID,
			UnitPrice: r.UnitPrice,
			Quantity:  r.Quantity,
			Timestamp: r.SoldAt,
		})
	}
	return sales, nil
}

func (m *MySQLAdapter) SaveOutcome(ctx context.Context, o domain.Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	var txID *string
	if o.TransactionID != "" {
		txID = &o.TransactionID
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO outcomes (request_id, status, final_total, transaction_id, payload, closed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), final_total = VALUES(final_total),
			transaction_id = VALUES(transaction_id), payload = VALUES(payload), closed_at = VALUES(closed_at)`,
		o.RequestID, o.Status, o.FinalTotal, txID, payload, o.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) SaveReport(ctx context.Context, r domain.BusinessReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO business_reports (sequence, revenue, payload, generated_at)
		VALUES (?, ?, ?, ?)`,
		r.Sequence, r.Revenue, payload, r.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}
