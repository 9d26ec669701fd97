package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
)

// VerdictDBModel представляет зафиксированный вердикт в БД
type VerdictDBModel struct {
	ID            string
	SessionID     string
	ScenarioName  string
	OverallStatus string
	BrandStatus   string
	VolumeStatus  string
	OSDStatus     string
	BrandMismatch bool
	Conflict      bool
	Verdict       []byte // JSON
	SnapshotKey   sql.NullString
	FinishedAt    sql.NullString
	RecordedAt    time.Time
}

// ToDBModel конвертирует Domain Entity в DB Model.
// Статусы метрик дублируются в колонки для агрегатов без разбора JSON.
func ToDBModel(record *entity.VerdictRecord) (*VerdictDBModel, error) {
	verdictBytes, err := json.Marshal(record.Verdict)
	if err != nil {
		return nil, err
	}

	return &VerdictDBModel{
		ID:            record.ID,
		SessionID:     record.SessionID,
		ScenarioName:  record.ScenarioName,
		OverallStatus: record.OverallStatus.String(),
		BrandStatus:   record.Verdict.Brand.String(),
		VolumeStatus:  record.Verdict.Volume.String(),
		OSDStatus:     record.Verdict.OSD.String(),
		BrandMismatch: record.Verdict.BrandMismatch,
		Conflict:      record.Verdict.Conflict,
		Verdict:       verdictBytes,
		SnapshotKey:   nullString(record.SnapshotKey),
		FinishedAt:    nullString(record.FinishedAt),
		RecordedAt:    record.RecordedAt,
	}, nil
}

// ToEntity конвертирует DB Model в Domain Entity
func ToEntity(model *VerdictDBModel) (*entity.VerdictRecord, error) {
	var verdict entity.Verdict
	if len(model.Verdict) > 0 {
		if err := json.Unmarshal(model.Verdict, &verdict); err != nil {
			return nil, err
		}
	}

	return &entity.VerdictRecord{
		ID:            model.ID,
		SessionID:     model.SessionID,
		ScenarioName:  model.ScenarioName,
		OverallStatus: valueobject.OverallStatus(model.OverallStatus),
		Verdict:       verdict,
		SnapshotKey:   model.SnapshotKey.String,
		FinishedAt:    model.FinishedAt.String,
		RecordedAt:    model.RecordedAt,
	}, nil
}

// ScanVerdictRow сканирует строку БД в VerdictDBModel
func ScanVerdictRow(row interface {
	Scan(dest ...interface{}) error
}) (*VerdictDBModel, error) {
	var model VerdictDBModel

	err := row.Scan(
		&model.ID,
		&model.SessionID,
		&model.ScenarioName,
		&model.OverallStatus,
		&model.BrandStatus,
		&model.VolumeStatus,
		&model.OSDStatus,
		&model.BrandMismatch,
		&model.Conflict,
		&model.Verdict,
		&model.SnapshotKey,
		&model.FinishedAt,
		&model.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	return &model, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
