package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Romspopopoms/7Jours/internal/models"
)

// ErrDuplicateEmail is returned by Insert when the unique index on email
// rejects the row. The pre-insert lookup is only a fast path; this error is
// the authoritative duplicate signal under concurrent submissions.
var ErrDuplicateEmail = errors.New("email already registered")

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// EnsureSchema creates the subscribers table, backfills columns added in
// later revisions and ensures the email index. Every statement is
// idempotent so the endpoint exposing this can be hit any number of times.
func (db *DB) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS subscribers (
			id SERIAL PRIMARY KEY,
			first_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			consent_given BOOLEAN DEFAULT FALSE,
			pdf_sent BOOLEAN DEFAULT FALSE,
			source TEXT DEFAULT 'landing-7-jours-de-priere',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,
		`ALTER TABLE subscribers ADD COLUMN IF NOT EXISTS consent_given BOOLEAN DEFAULT FALSE`,
		`ALTER TABLE subscribers ADD COLUMN IF NOT EXISTS pdf_sent BOOLEAN DEFAULT FALSE`,
		`ALTER TABLE subscribers ADD COLUMN IF NOT EXISTS source TEXT DEFAULT 'landing-7-jours-de-priere'`,
		`CREATE INDEX IF NOT EXISTS idx_subscribers_email ON subscribers(email)`,
	}

	for _, query := range queries {
		if _, err := db.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// FindByEmail returns nil, nil when no subscriber matches. The match is
// exact: no case normalization is applied.
func (db *DB) FindByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	var s models.Subscriber
	err := db.pool.QueryRow(
		ctx,
		`SELECT id, first_name, email, consent_given, pdf_sent, source, created_at
		 FROM subscribers WHERE email = $1`,
		email,
	).Scan(&s.ID, &s.FirstName, &s.Email, &s.ConsentGiven, &s.PDFSent, &s.Source, &s.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying subscriber: %w", err)
	}

	return &s, nil
}

func (db *DB) Insert(ctx context.Context, firstName, email string, consentGiven bool) (int, error) {
	var id int
	err := db.pool.QueryRow(
		ctx,
		`INSERT INTO subscribers (first_name, email, consent_given)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		firstName, email, consentGiven,
	).Scan(&id)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrDuplicateEmail
		}
		return 0, fmt.Errorf("inserting subscriber: %w", err)
	}

	return id, nil
}

func (db *DB) MarkPDFSent(ctx context.Context, id int) error {
	result, err := db.pool.Exec(
		ctx,
		"UPDATE subscribers SET pdf_sent = TRUE WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("updating pdf_sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("subscriber %d not found", id)
	}

	return nil
}

func (db *DB) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := db.pool.Query(
		ctx,
		`SELECT id, first_name, email, consent_given, pdf_sent, source, created_at
		 FROM subscribers ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []models.Subscriber
	for rows.Next() {
		var s models.Subscriber
		err := rows.Scan(&s.ID, &s.FirstName, &s.Email, &s.ConsentGiven, &s.PDFSent, &s.Source, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}

	if subscribers == nil {
		subscribers = []models.Subscriber{}
	}

	return subscribers, rows.Err()
}

func (db *DB) Close() {
	db.pool.Close()
}

// isDuplicateKey detects PostgreSQL unique constraint violations (SQLSTATE 23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
