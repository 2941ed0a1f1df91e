package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_status_changes (
	id              BIGSERIAL PRIMARY KEY,
	order_id        TEXT NOT NULL,
	platform        TEXT NOT NULL,
	market_id       TEXT NOT NULL,
	previous_status TEXT NOT NULL,
	new_status      TEXT NOT NULL,
	size            DOUBLE PRECISION NOT NULL,
	size_filled     DOUBLE PRECISION NOT NULL,
	price           DOUBLE PRECISION NOT NULL,
	fill_count      INTEGER NOT NULL,
	changed_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS order_status_changes_order_idx ON order_status_changes (order_id);

CREATE TABLE IF NOT EXISTS execution_runs (
	id               TEXT PRIMARY KEY,
	intent_id        TEXT NOT NULL,
	current_phase    TEXT NOT NULL,
	completed_phases JSONB NOT NULL,
	phase_durations  JSONB NOT NULL,
	transactions     JSONB NOT NULL,
	error            TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ
);
`

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage connects and creates the log tables if missing.
func NewPostgresStorage(ctx context.Context, cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := NewPostgresStorageFromDB(db, logger)
	if err := p.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return p, nil
}

// NewPostgresStorageFromDB wraps an open database handle.
func NewPostgresStorageFromDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStorage{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the log tables.
func (p *PostgresStorage) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LogStatusChange inserts one status transition row.
func (p *PostgresStorage) LogStatusChange(ctx context.Context, change StatusChange) error {
	query := `
		INSERT INTO order_status_changes (
			order_id, platform, market_id, previous_status, new_status,
			size, size_filled, price, fill_count, changed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := p.db.ExecContext(ctx, query,
		change.OrderID,
		string(change.Platform),
		change.Order.MarketID,
		string(change.PreviousStatus),
		string(change.NewStatus),
		change.Order.Size,
		change.Order.SizeFilled,
		change.Order.Price,
		change.FillCount,
		change.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}

	p.logger.Debug("status-change-stored",
		zap.String("order-id", change.OrderID),
		zap.String("new-status", string(change.NewStatus)))

	return nil
}

// ArchiveRun upserts an execution run.
func (p *PostgresStorage) ArchiveRun(ctx context.Context, run *types.ExecutionRun) error {
	if run == nil {
		return nil
	}

	phases, err := json.Marshal(run.CompletedPhases)
	if err != nil {
		return fmt.Errorf("marshal phases: %w", err)
	}

	durations := make(map[types.ExecutionPhase]int64, len(run.PhaseDurations))
	for phase, d := range run.PhaseDurations {
		durations[phase] = d.Milliseconds()
	}
	durationsJSON, err := json.Marshal(durations)
	if err != nil {
		return fmt.Errorf("marshal durations: %w", err)
	}

	txs, err := json.Marshal(run.Transactions)
	if err != nil {
		return fmt.Errorf("marshal transactions: %w", err)
	}

	query := `
		INSERT INTO execution_runs (
			id, intent_id, current_phase, completed_phases, phase_durations,
			transactions, error, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			current_phase = EXCLUDED.current_phase,
			completed_phases = EXCLUDED.completed_phases,
			phase_durations = EXCLUDED.phase_durations,
			transactions = EXCLUDED.transactions,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at
	`

	var completedAt sql.NullTime
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}

	_, err = p.db.ExecContext(ctx, query,
		run.ID,
		run.IntentID,
		string(run.CurrentPhase),
		string(phases),
		string(durationsJSON),
		string(txs),
		run.Error,
		run.StartedAt,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution run: %w", err)
	}

	p.logger.Debug("execution-run-archived",
		zap.String("execution-id", run.ID),
		zap.String("phase", string(run.CurrentPhase)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
