package checklog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	storemodel "tickwatch/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Trigger values for CheckRecord.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// CheckRecord is the store-facing view of one check outcome.
type CheckRecord struct {
	ID         string         `json:"id"`
	CheckedAt  time.Time      `json:"checked_at"`
	Trigger    string         `json:"trigger"`
	Available  bool           `json:"available"`
	Notified   bool           `json:"notified"`
	StatusCode int            `json:"status_code"`
	Err        string         `json:"error,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Store persists check history using Gorm + SQLite.
type Store struct {
	db *gorm.DB
}

// New opens (or creates) the history database at path.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("check log: history path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&storemodel.CheckRecordModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for the admin API readers while the
	// tick writer stays uncontended.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record inserts one check outcome. A missing ID is generated.
func (s *Store) Record(ctx context.Context, rec CheckRecord) (CheckRecord, error) {
	if s == nil || s.db == nil {
		return rec, fmt.Errorf("check log not initialized")
	}
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now()
	}
	m, err := toModel(rec)
	if err != nil {
		return rec, err
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return rec, fmt.Errorf("recording check failed: %w", err)
	}
	return rec, nil
}

// Recent returns the newest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]CheckRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("check log not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []storemodel.CheckRecordModel
	err := s.db.WithContext(ctx).
		Order("checked_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]CheckRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

// Last returns the most recent record, if any.
func (s *Store) Last(ctx context.Context) (CheckRecord, bool, error) {
	recs, err := s.Recent(ctx, 1)
	if err != nil {
		return CheckRecord{}, false, err
	}
	if len(recs) == 0 {
		return CheckRecord{}, false, nil
	}
	return recs[0], true, nil
}

func toModel(rec CheckRecord) (storemodel.CheckRecordModel, error) {
	m := storemodel.CheckRecordModel{
		ID:         rec.ID,
		CheckedAt:  rec.CheckedAt,
		Trigger:    rec.Trigger,
		Available:  rec.Available,
		Notified:   rec.Notified,
		StatusCode: rec.StatusCode,
		Err:        rec.Err,
	}
	if len(rec.Detail) > 0 {
		raw, err := json.Marshal(rec.Detail)
		if err != nil {
			return m, fmt.Errorf("encoding check detail failed: %w", err)
		}
		m.Detail = datatypes.JSON(raw)
	}
	return m, nil
}

func fromModel(m storemodel.CheckRecordModel) CheckRecord {
	rec := CheckRecord{
		ID:         m.ID,
		CheckedAt:  m.CheckedAt,
		Trigger:    m.Trigger,
		Available:  m.Available,
		Notified:   m.Notified,
		StatusCode: m.StatusCode,
		Err:        m.Err,
	}
	if len(m.Detail) > 0 {
		var detail map[string]any
		if err := json.Unmarshal(m.Detail, &detail); err == nil {
			rec.Detail = detail
		}
	}
	return rec
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
