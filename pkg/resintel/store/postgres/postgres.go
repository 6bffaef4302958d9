// Package postgres keeps the run history in PostgreSQL through gorm, for
// deployments where several resintel processes share one history.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/store"
)

// Config locates the database. DSN wins over DSNEnv.
type Config struct {
	DSN             string        `yaml:"dsn"`
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ResolveDSN returns the connection string, reading DSNEnv when DSN is empty.
func (c Config) ResolveDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.DSNEnv != "" {
		return os.Getenv(c.DSNEnv)
	}
	return ""
}

type runRow struct {
	ID             string `gorm:"primaryKey;size:26"`
	CorpusID       string `gorm:"index;not null"`
	Docs           int
	RangeLo        int
	RangeHi        int
	Found          bool
	MinClusterSize int
	Coherence      float64
	Curve          string `gorm:"type:jsonb;not null"`
	Viable         string `gorm:"type:jsonb;not null"`
	CreatedAt      time.Time
}

func (runRow) TableName() string { return "resintel_runs" }

type refinementRow struct {
	ID             string `gorm:"primaryKey;size:26"`
	RunID          string `gorm:"index;not null;size:26"`
	CorpusID       string `gorm:"not null"`
	MinClusterSize int
	Topics         string `gorm:"type:jsonb;not null"`
	CreatedAt      time.Time
}

func (refinementRow) TableName() string { return "resintel_refinements" }

// Store is a store.Store on PostgreSQL.
type Store struct {
	db *gorm.DB
}

// Open connects, applies the pool settings and migrates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn := cfg.ResolveDSN()
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres store needs a dsn", internalerr.ErrInvalidConfig)
	}
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&runRow{}, &refinementRow{}); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) SaveRun(ctx context.Context, r *store.Run) error {
	r.Prepare()
	curve, err := json.Marshal(r.Curve)
	if err != nil {
		return err
	}
	viable, err := json.Marshal(r.Viable)
	if err != nil {
		return err
	}
	row := runRow{
		ID:             r.ID,
		CorpusID:       r.CorpusID,
		Docs:           r.Docs,
		RangeLo:        r.RangeLo,
		RangeHi:        r.RangeHi,
		Found:          r.Found,
		MinClusterSize: r.MinClusterSize,
		Coherence:      r.Coherence,
		Curve:          string(curve),
		Viable:         string(viable),
		CreatedAt:      r.CreatedAt.UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"corpus_id", "docs", "range_lo", "range_hi", "found",
			"min_cluster_size", "coherence", "curve", "viable",
		}),
	}).Create(&row).Error
}

func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	var row runRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Run{}, fmt.Errorf("%w: run %q", internalerr.ErrNotFound, id)
	}
	if err != nil {
		return store.Run{}, err
	}
	return row.toRun()
}

func (s *Store) ListRuns(ctx context.Context, corpusID string, limit int) ([]store.Run, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if corpusID != "" {
		q = q.Where("corpus_id = ?", corpusID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]store.Run, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

func (row runRow) toRun() (store.Run, error) {
	r := store.Run{
		ID:             row.ID,
		CorpusID:       row.CorpusID,
		Docs:           row.Docs,
		RangeLo:        row.RangeLo,
		RangeHi:        row.RangeHi,
		Found:          row.Found,
		MinClusterSize: row.MinClusterSize,
		Coherence:      row.Coherence,
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Curve), &r.Curve); err != nil {
		return store.Run{}, err
	}
	if err := json.Unmarshal([]byte(row.Viable), &r.Viable); err != nil {
		return store.Run{}, err
	}
	return r, nil
}

func (s *Store) SaveRefinement(ctx context.Context, r *store.Refinement) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&runRow{}).Where("id = ?", r.RunID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: run %q", internalerr.ErrNotFound, r.RunID)
	}
	r.Prepare()
	topics, err := json.Marshal(r.Topics)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&refinementRow{
		ID:             r.ID,
		RunID:          r.RunID,
		CorpusID:       r.CorpusID,
		MinClusterSize: r.MinClusterSize,
		Topics:         string(topics),
		CreatedAt:      r.CreatedAt.UTC(),
	}).Error
}

func (s *Store) ListRefinements(ctx context.Context, runID string) ([]store.Refinement, error) {
	var rows []refinementRow
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	refs := make([]store.Refinement, 0, len(rows))
	for _, row := range rows {
		r := store.Refinement{
			ID:             row.ID,
			RunID:          row.RunID,
			CorpusID:       row.CorpusID,
			MinClusterSize: row.MinClusterSize,
			CreatedAt:      row.CreatedAt.UTC(),
		}
		if err := json.Unmarshal([]byte(row.Topics), &r.Topics); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, nil
}

func (s *Store) DeleteCorpus(ctx context.Context, corpusID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		runs := tx.Model(&runRow{}).Select("id").Where("corpus_id = ?", corpusID)
		if err := tx.Where("run_id IN (?)", runs).Delete(&refinementRow{}).Error; err != nil {
			return err
		}
		return tx.Where("corpus_id = ?", corpusID).Delete(&runRow{}).Error
	})
}

var _ store.Store = (*Store)(nil)
