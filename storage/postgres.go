package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/vitwit/stablepay/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultMigrationsTable = "stablepay_schema_migrations"
	pqUniqueViolation      = "23505"
)

const invoiceColumns = `id, merchant_id, merchant_address, status, amount, token_address, token_symbol,
	token_decimals, title, description, image_url, display_label, payer_address, tx_hash, paid_at, created_at`

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to cfg.URL and, when cfg.Migrate is set, applies
// the embedded schema migrations.
func NewPostgresStore(ctx context.Context, cfg types.DatabaseConfig) (*PostgresStore, error) {
	if cfg.URL == "" {
		return nil, types.NewError(types.ErrConfiguration, nil, "database url is not configured")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &PostgresStore{db: db}
	if cfg.Migrate {
		if err := s.RunMigrations(cfg.MigrationsTab); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an open database handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RunMigrations(table string) error {
	if table == "" {
		table = defaultMigrationsTable
	}

	driver, err := postgres.WithInstance(s.db, &postgres.Config{
		MigrationsTable: table,
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInvoice(ctx context.Context, id string) (*types.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query invoice by id: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) CreateInvoice(ctx context.Context, inv *types.Invoice) error {
	status := inv.Status
	if status == "" {
		status = types.InvoiceOpen
	}
	createdAt := inv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `INSERT INTO invoices (id, merchant_id, merchant_address, status, amount, token_address,
	          token_symbol, token_decimals, title, description, image_url, display_label, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.MerchantID,
		inv.MerchantAddr,
		status,
		inv.Amount,
		inv.TokenAddress,
		inv.TokenSymbol,
		inv.TokenDecimals,
		inv.Title,
		inv.Description,
		inv.ImageURL,
		inv.DisplayLabel,
		createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateInvoice
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertPayment(ctx context.Context, p *types.Payment) error {
	query := `INSERT INTO payments (id, invoice_id, status, payer_address, amount, token_address, tx_hash, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.InvoiceID,
		p.Status,
		p.PayerAddress,
		p.Amount,
		p.TokenAddress,
		p.TxHash,
		p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkInvoicePaid(ctx context.Context, id string, update types.PaidUpdate) (*types.Invoice, error) {
	query := `UPDATE invoices SET status = 'paid', payer_address = $2, tx_hash = $3, paid_at = $4
	          WHERE id = $1 AND status = 'open'
	          RETURNING ` + invoiceColumns

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id, update.PayerAddress, update.TxHash, update.PaidAt))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark invoice paid: %w", err)
	}

	// zero rows: tell a missing invoice apart from one that left 'open'
	if _, err := s.GetInvoice(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrInvoiceNotOpen
}

func (s *PostgresStore) ListPayments(ctx context.Context, invoiceID string) ([]types.Payment, error) {
	query := `SELECT id, invoice_id, status, payer_address, amount, token_address, tx_hash, created_at
	          FROM payments WHERE invoice_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query payments by invoice id: %w", err)
	}
	defer rows.Close()

	var payments []types.Payment
	for rows.Next() {
		var p types.Payment
		if err := rows.Scan(
			&p.ID,
			&p.InvoiceID,
			&p.Status,
			&p.PayerAddress,
			&p.Amount,
			&p.TokenAddress,
			&p.TxHash,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return payments, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*types.Invoice, error) {
	var (
		inv                          types.Invoice
		description, imageURL, label sql.NullString
		payer, txHash                sql.NullString
		paidAt                       sql.NullTime
	)

	err := row.Scan(
		&inv.ID,
		&inv.MerchantID,
		&inv.MerchantAddr,
		&inv.Status,
		&inv.Amount,
		&inv.TokenAddress,
		&inv.TokenSymbol,
		&inv.TokenDecimals,
		&inv.Title,
		&description,
		&imageURL,
		&label,
		&payer,
		&txHash,
		&paidAt,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Description = nullString(description)
	inv.ImageURL = nullString(imageURL)
	inv.DisplayLabel = nullString(label)
	inv.PayerAddress = nullString(payer)
	inv.TxHash = nullString(txHash)
	if paidAt.Valid {
		t := paidAt.Time
		inv.PaidAt = &t
	}
	return &inv, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
