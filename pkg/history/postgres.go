package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // Import the PostgreSQL driver
)

const createInvoicesTable = `CREATE TABLE IF NOT EXISTS invoices (
	id SERIAL PRIMARY KEY,
	invoice_number TEXT NOT NULL,
	invoice_date TEXT NOT NULL,
	truck_number TEXT NOT NULL,
	quantity TEXT NOT NULL,
	amount TEXT NOT NULL,
	grand_total TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertInvoice = `INSERT INTO invoices (invoice_number, invoice_date, truck_number, quantity, amount, grand_total)
VALUES ($1, $2, $3, $4, $5, $6)`

// PostgresMirror copies history rows into an invoices table. The CSV log
// stays the source of truth.
type PostgresMirror struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and makes sure the invoices table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresMirror, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createInvoicesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create invoices table: %w", err)
	}
	return &PostgresMirror{db: db}, nil
}

func (m *PostgresMirror) Insert(ctx context.Context, row Row) error {
	_, err := m.db.ExecContext(ctx, insertInvoice,
		row.InvoiceNo, row.Date, row.TruckNo, row.Qty, row.Amount, row.GrandTotal)
	if err != nil {
		return fmt.Errorf("insert invoice %s: %w", row.InvoiceNo, err)
	}
	return nil
}

// Ping reports whether the database is reachable. It backs /readyz.
func (m *PostgresMirror) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Count is only used by tests.
func (m *PostgresMirror) Count(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&n)
	return n, err
}

func (m *PostgresMirror) Close() error {
	return m.db.Close()
}
