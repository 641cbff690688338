package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carriernest/eld-gateway/internal/types"
)

// Sync status values persisted on a connection.
const (
	SyncPending = "pending"
	SyncSuccess = "success"
	SyncError   = "error"
)

// ErrNotFound is returned when a carrier has no stored connection.
var ErrNotFound = errors.New("eld connection not found")

// Connection is a carrier's stored ELD provider connection. Each carrier
// has at most one active connection; connecting a new provider replaces
// the old one. Credentials never leave this package in API responses.
type Connection struct {
	ID           string            `json:"id"`
	CarrierID    string            `json:"-"`
	ProviderID   string            `json:"providerId"`
	ProviderName string            `json:"providerName"`
	Credentials  types.Credentials `json:"-"`
	IsActive     bool              `json:"isActive"`
	SyncStatus   string            `json:"syncStatus"`
	ErrorMessage *string           `json:"errorMessage"`
	LastSyncAt   *time.Time        `json:"lastSyncAt"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// ConnectionStore persists carrier ELD connections in PostgreSQL.
type ConnectionStore struct {
	db *pgxpool.Pool
}

func NewConnectionStore(db *pgxpool.Pool) *ConnectionStore {
	return &ConnectionStore{db: db}
}

// Upsert stores the carrier's connection, replacing any previous one. The
// single-connection-per-carrier invariant is enforced by a unique index on
// carrier_id.
func (s *ConnectionStore) Upsert(ctx context.Context, carrierID, providerID, providerName string, creds types.Credentials) (*Connection, error) {
	credsJSON, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO eld_connections (id, carrier_id, provider_id, provider_name, credentials, is_active, sync_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, NOW(), NOW())
		ON CONFLICT (carrier_id) DO UPDATE SET
			provider_id = EXCLUDED.provider_id,
			provider_name = EXCLUDED.provider_name,
			credentials = EXCLUDED.credentials,
			is_active = TRUE,
			sync_status = EXCLUDED.sync_status,
			error_message = NULL,
			updated_at = NOW()
		RETURNING id, carrier_id, provider_id, provider_name, credentials, is_active, sync_status, error_message, last_sync_at, created_at, updated_at
	`, uuid.NewString(), carrierID, providerID, providerName, credsJSON, SyncPending)

	return scanConnection(row)
}

// Get returns the carrier's connection or ErrNotFound.
func (s *ConnectionStore) Get(ctx context.Context, carrierID string) (*Connection, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, carrier_id, provider_id, provider_name, credentials, is_active, sync_status, error_message, last_sync_at, created_at, updated_at
		FROM eld_connections
		WHERE carrier_id = $1
	`, carrierID)
	return scanConnection(row)
}

// List returns every active connection, for the background sync loop.
func (s *ConnectionStore) List(ctx context.Context) ([]*Connection, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, carrier_id, provider_id, provider_name, credentials, is_active, sync_status, error_message, last_sync_at, created_at, updated_at
		FROM eld_connections
		WHERE is_active
		ORDER BY carrier_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query eld_connections: %w", err)
	}
	defer rows.Close()

	var conns []*Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// Delete removes the carrier's connection.
func (s *ConnectionStore) Delete(ctx context.Context, carrierID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM eld_connections WHERE carrier_id = $1`, carrierID)
	if err != nil {
		return fmt.Errorf("delete eld_connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSyncStatus records the outcome of a sync run.
func (s *ConnectionStore) SetSyncStatus(ctx context.Context, carrierID, status string, errorMessage *string, lastSyncAt *time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE eld_connections
		SET sync_status = $2, error_message = $3, last_sync_at = COALESCE($4, last_sync_at), updated_at = NOW()
		WHERE carrier_id = $1
	`, carrierID, status, errorMessage, lastSyncAt)
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	return nil
}

func scanConnection(row pgx.Row) (*Connection, error) {
	var c Connection
	var credsJSON []byte
	err := row.Scan(
		&c.ID,
		&c.CarrierID,
		&c.ProviderID,
		&c.ProviderName,
		&credsJSON,
		&c.IsActive,
		&c.SyncStatus,
		&c.ErrorMessage,
		&c.LastSyncAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan eld_connection: %w", err)
	}
	if err := json.Unmarshal(credsJSON, &c.Credentials); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return &c, nil
}
