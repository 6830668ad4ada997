// Package tradelog persists executed trades to a local SQLite file so every
// run leaves an auditable history.
package tradelog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/signalsingaravelan/signal-singaravelan/internal/trade"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store is a single-writer SQLite trade journal.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens the journal at path, creating the file and schema on first use.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// One decision cycle runs at a time; a single connection is all the
	// journal needs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &Store{db: db, log: log.With("component", "tradelog")}
	s.log.Info("trade journal opened", "path", path)
	return s, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			order_id      TEXT    NOT NULL PRIMARY KEY,
			account_id    TEXT    NOT NULL,
			action        TEXT    NOT NULL,
			symbol        TEXT    NOT NULL,
			dollar_amount TEXT    NOT NULL,
			shares        TEXT    NOT NULL,
			executed_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS trades_account_ts
			ON trades (account_id, executed_at DESC);
	`)
	return err
}

// Append records one executed trade and returns it with its order id
// finalized: trades the gateway never named get a synthesized ORD_ id.
func (s *Store) Append(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	t.EnsureOrderID()
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trades (order_id, account_id, action, symbol, dollar_amount, shares, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.OrderID, t.AccountID, string(t.Action), t.Symbol,
		t.DollarAmount.String(), t.Shares.String(), t.ExecutedAt.UTC().Unix(),
	)
	if err != nil {
		return trade.Trade{}, fmt.Errorf("sqlite insert trade: %w", err)
	}
	s.log.Info("trade recorded",
		"order_id", t.OrderID,
		"action", t.Action,
		"symbol", t.Symbol,
		"shares", t.Shares,
		"dollar_amount", t.DollarAmount)
	return t, nil
}

// History returns the account's recorded trades, newest first.
func (s *Store) History(ctx context.Context, accountID string) ([]trade.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, account_id, action, symbol, dollar_amount, shares, executed_at
		FROM trades WHERE account_id = ?
		ORDER BY executed_at DESC, order_id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []trade.Trade
	for rows.Next() {
		var (
			t                      trade.Trade
			action, amount, shares string
			ts                     int64
		)
		if err := rows.Scan(&t.OrderID, &t.AccountID, &action, &t.Symbol, &amount, &shares, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		t.Action = trade.Action(action)
		if t.DollarAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("trade %s dollar amount: %w", t.OrderID, err)
		}
		if t.Shares, err = decimal.NewFromString(shares); err != nil {
			return nil, fmt.Errorf("trade %s shares: %w", t.OrderID, err)
		}
		t.ExecutedAt = time.Unix(ts, 0).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal.
func (s *Store) Close() error {
	return s.db.Close()
}
