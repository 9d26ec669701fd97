package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/repository"
)

const verdictColumns = `id, session_id, scenario_name, overall_status, brand_status, volume_status, osd_status,
	brand_mismatch, conflict, verdict, snapshot_key, finished_at, recorded_at`

const schema = `
CREATE TABLE IF NOT EXISTS session_verdicts (
	id             UUID PRIMARY KEY,
	session_id     TEXT NOT NULL UNIQUE,
	scenario_name  TEXT NOT NULL,
	overall_status TEXT NOT NULL,
	brand_status   TEXT NOT NULL,
	volume_status  TEXT NOT NULL,
	osd_status     TEXT NOT NULL,
	brand_mismatch BOOLEAN NOT NULL DEFAULT FALSE,
	conflict       BOOLEAN NOT NULL DEFAULT FALSE,
	verdict        JSONB NOT NULL,
	snapshot_key   TEXT,
	finished_at    TEXT,
	recorded_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_verdicts_recorded_at ON session_verdicts (recorded_at DESC);
`

// PostgresVerdictRepository реализует repository.VerdictRepository для PostgreSQL
type PostgresVerdictRepository struct {
	db *sql.DB
}

var _ repository.VerdictRepository = (*PostgresVerdictRepository)(nil)

// NewPostgresVerdictRepository создает новый PostgreSQL repository
func NewPostgresVerdictRepository(db *sql.DB) *PostgresVerdictRepository {
	return &PostgresVerdictRepository{
		db: db,
	}
}

// EnsureSchema создаёт таблицу истории, если её нет
func (r *PostgresVerdictRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create session_verdicts schema: %w", err)
	}
	return nil
}

// Save сохраняет вердикт; повтор для той же сессии обновляет запись
func (r *PostgresVerdictRepository) Save(ctx context.Context, record *entity.VerdictRecord) error {
	model, err := ToDBModel(record)
	if err != nil {
		return fmt.Errorf("failed to convert to DB model: %w", err)
	}

	query := `
		INSERT INTO session_verdicts (` + verdictColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO UPDATE SET
			overall_status = EXCLUDED.overall_status,
			brand_status   = EXCLUDED.brand_status,
			volume_status  = EXCLUDED.volume_status,
			osd_status     = EXCLUDED.osd_status,
			brand_mismatch = EXCLUDED.brand_mismatch,
			conflict       = EXCLUDED.conflict,
			verdict        = EXCLUDED.verdict,
			snapshot_key   = COALESCE(EXCLUDED.snapshot_key, session_verdicts.snapshot_key),
			finished_at    = EXCLUDED.finished_at,
			recorded_at    = EXCLUDED.recorded_at
	`

	_, err = r.db.ExecContext(ctx, query,
		model.ID,
		model.SessionID,
		model.ScenarioName,
		model.OverallStatus,
		model.BrandStatus,
		model.VolumeStatus,
		model.OSDStatus,
		model.BrandMismatch,
		model.Conflict,
		model.Verdict,
		model.SnapshotKey,
		model.FinishedAt,
		model.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert verdict: %w", err)
	}

	return nil
}

// FindBySessionID находит вердикт сессии
func (r *PostgresVerdictRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.VerdictRecord, error) {
	query := `SELECT ` + verdictColumns + ` FROM session_verdicts WHERE session_id = $1`

	row := r.db.QueryRowContext(ctx, query, sessionID)
	model, err := ScanVerdictRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrVerdictNotFound
		}
		return nil, fmt.Errorf("failed to scan verdict: %w", err)
	}

	return ToEntity(model)
}

// FindLatest возвращает последние вердикты, новые первыми
func (r *PostgresVerdictRepository) FindLatest(ctx context.Context, limit int) ([]*entity.VerdictRecord, error) {
	query := `SELECT ` + verdictColumns + ` FROM session_verdicts ORDER BY recorded_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	return r.scanVerdicts(rows)
}

// CountByStatus возвращает количество вердиктов по overall_status
func (r *PostgresVerdictRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT overall_status, COUNT(*) FROM session_verdicts GROUP BY overall_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count verdicts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan verdict count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return counts, nil
}

func (r *PostgresVerdictRepository) scanVerdicts(rows *sql.Rows) ([]*entity.VerdictRecord, error) {
	var records []*entity.VerdictRecord

	for rows.Next() {
		model, err := ScanVerdictRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verdict row: %w", err)
		}

		record, err := ToEntity(model)
		if err != nil {
			return nil, fmt.Errorf("failed to convert to entity: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}
