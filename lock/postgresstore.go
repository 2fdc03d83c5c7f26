package lock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable store backing branch state, state
// transitions, and heartbeat history via a pgxpool-based adapter.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-configured pgxpool.Pool. Schema is
// expected to provide branch_state, branch_state_transition, and
// lock_heartbeat tables; migrations are out of scope here.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) StoreBranchState(ctx context.Context, info *BranchStateInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("lock: marshal branch state: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO branch_state (branch_name, state, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (branch_name) DO UPDATE SET state = $2, data = $3, updated_at = now()
	`, info.BranchName, string(info.CurrentState), data)
	return err
}

func (s *PostgresStore) StoreStateTransition(ctx context.Context, t *BranchStateTransition) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO branch_state_transition (branch_name, from_state, to_state, changed_by, reason, trigger, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.Branch, string(t.From), string(t.To), t.By, t.Reason, t.Trigger, t.At)
	return err
}

func (s *PostgresStore) GetBranchState(ctx context.Context, branch string) (*BranchStateInfo, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM branch_state WHERE branch_name = $1`, branch).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var info BranchStateInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, false, fmt.Errorf("lock: unmarshal branch state: %w", err)
	}
	return &info, true, nil
}

func (s *PostgresStore) StoreHeartbeatRecord(ctx context.Context, rec *HeartbeatRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lock_heartbeat (lock_id, branch_name, service_name, heartbeat_at, status, progress)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.LockID, rec.BranchName, rec.ServiceName, rec.HeartbeatAt, string(rec.Status), rec.Progress)
	return err
}

var (
	_ DurableStore      = (*PostgresStore)(nil)
	_ HeartbeatRecorder = (*PostgresStore)(nil)
)
