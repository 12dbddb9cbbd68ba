// Package postgres is the materialization layer: idempotent batch upserts of
// event records and entity snapshots behind replace-on-conflict keys.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"chainmirror/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// resetOrder lists truncation targets, dependents first.
var resetOrder = []string{"event_records", "disputes", "subjects", "stake_pools", "sync_state"}

// Store provides Postgres persistence for the mirror.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to Postgres, applies pending migrations, and returns the
// Store.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertEventRecords writes one batch of records with replace-on-conflict
// per id and reports how many stored versus failed. The batch is sent as one
// pipeline; a statement failure fails the remainder of this batch and is
// counted, not retried. Retry policy lives with the caller.
func (s *Store) UpsertEventRecords(ctx context.Context, records []model.EventRecord) (stored, failed int) {
	if len(records) == 0 {
		return 0, 0
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO event_records (
				id, signature, slot, block_time, event_type, subject_id, round, actor, amount, payload, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (id)
			DO UPDATE SET
				signature = EXCLUDED.signature,
				slot = EXCLUDED.slot,
				block_time = EXCLUDED.block_time,
				event_type = EXCLUDED.event_type,
				subject_id = EXCLUDED.subject_id,
				round = EXCLUDED.round,
				actor = EXCLUDED.actor,
				amount = EXCLUDED.amount,
				payload = EXCLUDED.payload,
				updated_at = now()
		`,
			rec.ID,
			rec.Signature,
			int64(rec.Slot),
			rec.BlockTime,
			rec.EventType,
			nullIfEmpty(rec.SubjectID),
			roundValue(rec.Round),
			nullIfEmpty(rec.Actor),
			nullIfEmpty(rec.Amount),
			[]byte(rec.Payload),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range records {
		if _, err := br.Exec(); err != nil {
			s.logger.Warn("event record batch failed",
				zap.String("first_failed_id", records[i].ID),
				zap.Int("stored", stored),
				zap.Error(err),
			)
			return stored, len(records) - stored
		}
		stored++
	}
	return stored, 0
}

// UpsertSubjects overwrites subject snapshots keyed by address.
func (s *Store) UpsertSubjects(ctx context.Context, subjects []model.SubjectSnapshot) error {
	if len(subjects) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sub := range subjects {
		batch.Queue(`
			INSERT INTO subjects (
				address, creator, status, current_round, metadata, created_at_chain, synced_at
			) VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (address)
			DO UPDATE SET
				creator = EXCLUDED.creator,
				status = EXCLUDED.status,
				current_round = EXCLUDED.current_round,
				metadata = EXCLUDED.metadata,
				created_at_chain = EXCLUDED.created_at_chain,
				synced_at = now()
		`,
			sub.Address,
			sub.Creator,
			sub.Status,
			int32(sub.CurrentRound),
			sub.Metadata,
			sub.CreatedAt,
		)
	}
	return s.execBatch(ctx, batch, len(subjects))
}

// UpsertDisputes overwrites dispute snapshots keyed by address and round.
func (s *Store) UpsertDisputes(ctx context.Context, disputes []model.DisputeSnapshot) error {
	if len(disputes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range disputes {
		batch.Queue(`
			INSERT INTO disputes (
				address, round, subject_id, challenger, stake, status, opened_at, synced_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (address, round)
			DO UPDATE SET
				subject_id = EXCLUDED.subject_id,
				challenger = EXCLUDED.challenger,
				stake = EXCLUDED.stake,
				status = EXCLUDED.status,
				opened_at = EXCLUDED.opened_at,
				synced_at = now()
		`,
			d.Address,
			int32(d.Round),
			d.SubjectID,
			d.Challenger,
			nullIfEmpty(d.Stake),
			d.Status,
			d.OpenedAt,
		)
	}
	return s.execBatch(ctx, batch, len(disputes))
}

// UpsertStakePools overwrites stake pool snapshots keyed by address.
func (s *Store) UpsertStakePools(ctx context.Context, pools []model.StakePoolSnapshot) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO stake_pools (
				address, authority, total_staked, staker_count, updated_at_chain, synced_at
			) VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (address)
			DO UPDATE SET
				authority = EXCLUDED.authority,
				total_staked = EXCLUDED.total_staked,
				staker_count = EXCLUDED.staker_count,
				updated_at_chain = EXCLUDED.updated_at_chain,
				synced_at = now()
		`,
			p.Address,
			p.Authority,
			nullIfEmpty(p.TotalStaked),
			int64(p.StakerCount),
			p.UpdatedAt,
		)
	}
	return s.execBatch(ctx, batch, len(pools))
}

func (s *Store) execBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// TableResult reports one table's outcome of an admin reset.
type TableResult struct {
	Table string `json:"table"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// TruncateAll deletes all rows from every mirror table in dependency order
// and reports per-table results so partial failure is diagnosable.
func (s *Store) TruncateAll(ctx context.Context) []TableResult {
	results := make([]TableResult, 0, len(resetOrder))
	for _, table := range resetOrder {
		_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		res := TableResult{Table: table, OK: err == nil}
		if err != nil {
			res.Error = err.Error()
			s.logger.Warn("reset table failed", zap.String("table", table), zap.Error(err))
		}
		results = append(results, res)
	}
	return results
}

// LoadSyncCursor returns the persisted backfill cursor for a name.
func (s *Store) LoadSyncCursor(ctx context.Context, name string) (string, bool, error) {
	if name == "" {
		return "", false, fmt.Errorf("sync state name required")
	}
	var sig string
	row := s.pool.QueryRow(ctx, `SELECT last_signature FROM sync_state WHERE name=$1`, name)
	if err := row.Scan(&sig); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return sig, true, nil
}

// SaveSyncCursor upserts the backfill cursor for a name.
func (s *Store) SaveSyncCursor(ctx context.Context, name, signature string) error {
	if name == "" {
		return fmt.Errorf("sync state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (name, last_signature, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_signature = EXCLUDED.last_signature, updated_at = now()
	`, name, signature)
	return err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func roundValue(round *uint16) interface{} {
	if round == nil {
		return nil
	}
	return int32(*round)
}
