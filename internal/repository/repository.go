package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/events"
)

// Repository journals accounting events and periodic state snapshots to
// Postgres. The engine's in-memory state is authoritative; the journal
// exists for audit queries and the API's history endpoints.
type Repository struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

func NewRepository(db *sql.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// StoreEvent journals one event envelope. Replays of the same envelope ID
// are ignored.
func (r *Repository) StoreEvent(ctx context.Context, env events.Envelope) error {
	payload, err := json.Marshal(env.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO vault_events (event_id, at, type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, env.ID, env.At, env.Type, payload); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

func (r *Repository) StoreBatchEvents(ctx context.Context, envs []events.Envelope) error {
	if len(envs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vault_events (event_id, at, type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, env := range envs {
		payload, err := json.Marshal(env.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, env.ID, env.At, env.Type, payload); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debugw("Stored batch of events", "count", len(envs))
	return nil
}

// VaultSnapshot is one row of the vault's accounting state at a point in
// time; amounts are stored as numeric strings in the asset's base units.
type VaultSnapshot struct {
	At                   time.Time
	LocalAssets          decimal.Decimal
	TotalInvestedAssets  decimal.Decimal
	TotalAssets          decimal.Decimal
	TotalShares          decimal.Decimal
	CollectedFees        decimal.Decimal
	MainnetExchangePrice decimal.Decimal
}

func (r *Repository) StoreVaultSnapshot(ctx context.Context, snap VaultSnapshot) error {
	query := `
		INSERT INTO vault_snapshots (at, local_assets, total_invested_assets, total_assets, total_shares, collected_fees, mainnet_exchange_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (at) DO UPDATE SET
			local_assets = EXCLUDED.local_assets,
			total_invested_assets = EXCLUDED.total_invested_assets,
			total_assets = EXCLUDED.total_assets,
			total_shares = EXCLUDED.total_shares,
			collected_fees = EXCLUDED.collected_fees,
			mainnet_exchange_price = EXCLUDED.mainnet_exchange_price
	`

	_, err := r.db.ExecContext(ctx, query,
		snap.At,
		snap.LocalAssets.String(),
		snap.TotalInvestedAssets.String(),
		snap.TotalAssets.String(),
		snap.TotalShares.String(),
		snap.CollectedFees.String(),
		snap.MainnetExchangePrice.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to store vault snapshot: %w", err)
	}
	return nil
}

// QueueSnapshot is one row of the withdrawal queue's state.
type QueueSnapshot struct {
	At                time.Time
	TotalQueuedAmount decimal.Decimal
	BufferBalance     decimal.Decimal
	EscrowedShares    decimal.Decimal
}

func (r *Repository) StoreQueueSnapshot(ctx context.Context, snap QueueSnapshot) error {
	query := `
		INSERT INTO queue_snapshots (at, total_queued_amount, buffer_balance, escrowed_shares)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (at) DO UPDATE SET
			total_queued_amount = EXCLUDED.total_queued_amount,
			buffer_balance = EXCLUDED.buffer_balance,
			escrowed_shares = EXCLUDED.escrowed_shares
	`

	_, err := r.db.ExecContext(ctx, query,
		snap.At,
		snap.TotalQueuedAmount.String(),
		snap.BufferBalance.String(),
		snap.EscrowedShares.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to store queue snapshot: %w", err)
	}
	return nil
}

// JournaledEvent is an event row read back from the journal.
type JournaledEvent struct {
	ID      int64           `json:"id"`
	EventID string          `json:"event_id"`
	At      time.Time       `json:"at"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// GetEvents pages the journal newest-first. eventType filters when non-empty;
// the cursor is the numeric row id of the last event seen.
func (r *Repository) GetEvents(ctx context.Context, eventType string, limit int, cursor int64) ([]JournaledEvent, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if cursor <= 0 {
		cursor = int64(^uint64(0) >> 1) // no cursor: start from the newest row
	}

	query := `
		SELECT id, event_id, at, type, payload
		FROM vault_events
		WHERE id < $1 AND ($2 = '' OR type = $2)
		ORDER BY id DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, cursor, eventType, limit+1)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []JournaledEvent
	var hasMore bool

	for rows.Next() {
		if len(out) >= limit {
			hasMore = true
			break
		}

		var ev JournaledEvent
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.At, &ev.Type, &ev.Payload); err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	var nextCursor int64
	if hasMore && len(out) > 0 {
		nextCursor = out[len(out)-1].ID
	}
	return out, nextCursor, nil
}

// Health check
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
