package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Client is a caller allowed to request aggregations, typically a CRM panel
// backend or an integration job.
type Client struct {
	ID           string
	Name         string
	SecretHash   string
	TokenVersion int
	Disabled     bool
	CreatedAt    time.Time
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) CreateClient(ctx context.Context, c Client) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO api_clients (id, name, secret_hash)
		VALUES (?, ?, ?)
	`, c.ID, c.Name, c.SecretHash)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Client, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, name, secret_hash, token_version, disabled, created_at
		FROM api_clients
		WHERE id = ?
	`, id)

	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.SecretHash, &c.TokenVersion, &c.Disabled, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

// GetTokenVersion returns the current token version of an enabled client;
// ok is false when the client is unknown or disabled.
func (r *Repo) GetTokenVersion(ctx context.Context, id string) (version int, ok bool, err error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT token_version
		FROM api_clients
		WHERE id = ? AND disabled = 0
	`, id)
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get token version: %w", err)
	}
	return version, true, nil
}

// BumpTokenVersion invalidates every token issued to the client so far.
func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE api_clients
		SET token_version = token_version + 1
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump token version rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bump token version: client not found")
	}
	return nil
}

func (r *Repo) SetDisabled(ctx context.Context, id string, disabled bool) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE api_clients
		SET disabled = ?, token_version = token_version + 1
		WHERE id = ?
	`, disabled, id)
	if err != nil {
		return fmt.Errorf("set disabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set disabled: client not found")
	}
	return nil
}
