package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/termfx/structq/core"
	"github.com/termfx/structq/models"
)

// Store persists rules and journals runs. It implements core.RuleStore and
// core.Journal.
type Store struct {
	db     *gorm.DB
	retain int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetention keeps only the newest n runs after each recorded run.
// Zero disables pruning.
func WithRetention(n int) StoreOption {
	return func(s *Store) { s.retain = n }
}

// NewStore wraps an already migrated connection.
func NewStore(db *gorm.DB, opts ...StoreOption) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to dsn and returns a store over it.
func Open(dsn string, debug bool, opts ...StoreOption) (*Store, error) {
	db, err := Connect(dsn, debug)
	if err != nil {
		return nil, err
	}
	return NewStore(db, opts...), nil
}

// Close closes the connection.
func (s *Store) Close() error { return Close(s.db) }

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

// SaveRule creates the rule or replaces the one with the same name.
func (s *Store) SaveRule(ctx context.Context, r core.Rule) (core.Rule, error) {
	if r.Name == "" {
		return core.Rule{}, errors.New("rule name is required")
	}
	if r.Pattern == "" {
		return core.Rule{}, fmt.Errorf("rule %s: pattern is required", r.Name)
	}
	tags, err := json.Marshal(r.Tags)
	if err != nil {
		return core.Rule{}, fmt.Errorf("rule %s: encode tags: %w", r.Name, err)
	}

	var saved models.Rule
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", r.Name).First(&saved).Error
		created := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !created {
			return err
		}
		if created {
			saved = models.Rule{ID: uuid.NewString(), Name: r.Name}
		}
		saved.Language = r.Language
		saved.Pattern = r.Pattern
		saved.Description = r.Description
		saved.Tags = datatypes.JSON(tags)
		if created {
			return tx.Create(&saved).Error
		}
		return tx.Save(&saved).Error
	})
	if err != nil {
		return core.Rule{}, fmt.Errorf("save rule %s: %w", r.Name, err)
	}
	return toRule(saved)
}

// Rule loads a rule by name.
func (s *Store) Rule(ctx context.Context, name string) (core.Rule, error) {
	var m models.Rule
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Rule{}, fmt.Errorf("%w: %s", core.ErrRuleNotFound, name)
	}
	if err != nil {
		return core.Rule{}, fmt.Errorf("load rule %s: %w", name, err)
	}
	return toRule(m)
}

// Rules lists all rules by name.
func (s *Store) Rules(ctx context.Context) ([]core.Rule, error) {
	var ms []models.Rule
	if err := s.db.WithContext(ctx).Order("name").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	out := make([]core.Rule, 0, len(ms))
	for _, m := range ms {
		r, err := toRule(m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteRule removes a rule by name.
func (s *Store) DeleteRule(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Rule{})
	if res.Error != nil {
		return fmt.Errorf("delete rule %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrRuleNotFound, name)
	}
	return nil
}

func toRule(m models.Rule) (core.Rule, error) {
	r := core.Rule{
		ID:          m.ID,
		Name:        m.Name,
		Language:    m.Language,
		Pattern:     m.Pattern,
		Description: m.Description,
	}
	if len(m.Tags) > 0 {
		if err := json.Unmarshal(m.Tags, &r.Tags); err != nil {
			return core.Rule{}, fmt.Errorf("rule %s: decode tags: %w", m.Name, err)
		}
	}
	return r, nil
}

// RecordRun stores the report and its per-file outcomes in one transaction.
func (s *Store) RecordRun(ctx context.Context, report *core.Report) (string, error) {
	stats, err := json.Marshal(report.Stats)
	if err != nil {
		return "", fmt.Errorf("encode stats: %w", err)
	}
	run := models.Run{
		ID:         uuid.NewString(),
		Pattern:    report.Pattern,
		Language:   report.Language,
		Mode:       report.Mode,
		Optimizer:  report.Optimizer,
		FileCount:  report.Stats.Files,
		Searched:   report.Stats.Searched,
		Matches:    report.Stats.Matches,
		Rewritten:  report.Stats.Rewritten,
		Failed:     report.Stats.Failed,
		Canceled:   report.Stats.Canceled,
		Conflicts:  report.Stats.Conflicts,
		Reads:      report.Stats.Loader.Reads,
		Parses:     report.Stats.Loader.Parses,
		Stats:      datatypes.JSON(stats),
		StartedAt:  report.StartedAt,
		DurationMS: report.Stats.Duration.Milliseconds(),
	}
	files := make([]models.RunFile, 0, len(report.Files))
	for i, f := range report.Files {
		rf := models.RunFile{
			RunID:   run.ID,
			Seq:     i,
			Path:    f.Path,
			Status:  string(f.Status),
			Matches: f.Matches,
			Digest:  f.Digest,
		}
		if f.Error != nil {
			rf.ErrorCode = string(f.Error.Code)
			rf.Error = f.Error.Message
		}
		files = append(files, rf)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(files) > 0 {
			if err := tx.CreateInBatches(files, 100).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	if s.retain > 0 {
		if _, err := s.Prune(ctx, s.retain); err != nil {
			return run.ID, err
		}
	}
	return run.ID, nil
}

// Run loads a journaled run with its files in enumeration order.
func (s *Store) Run(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	err := s.db.WithContext(ctx).
		Preload("RunFiles", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Where("id = ?", id).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return &run, nil
}

// RecentRuns lists up to limit runs, newest first. Files are not loaded.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []models.Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed. keep <= 0 is a no-op.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Run{}).
		Order("started_at DESC, created_at DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if len(ids) <= keep {
		return 0, nil
	}
	old := ids[keep:]

	var removed int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id IN ?", old).Delete(&models.RunFile{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", old).Delete(&models.Run{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}
