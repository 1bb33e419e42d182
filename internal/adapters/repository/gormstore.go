package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/pkg/logger"
	"github.com/okian/whovapes/pkg/metrics"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// GormStore implements Store on top of gorm.
type GormStore struct {
	db       *gorm.DB
	driver   string
	pageSize int
	log      logger.Logger
	now      func() time.Time
}

var _ Store = (*GormStore)(nil)

// Open connects to the configured database, tunes it and migrates the schema.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*GormStore, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		driver = DriverSQLite
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		driver = DriverPostgres
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return New(ctx, db, driver, opts...)
}

// New wraps an open gorm handle and migrates the schema.
func New(ctx context.Context, db *gorm.DB, driver string, opts ...Option) (*GormStore, error) {
	s := &GormStore{
		db:       db,
		driver:   driver,
		pageSize: defaultScanPageSize,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if driver == DriverSQLite {
		if err := configureSQLite(db); err != nil {
			return nil, err
		}
	}
	if err := db.WithContext(ctx).AutoMigrate(&celebrityRow{}, &matchRow{}, &skipRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.log.Info(ctx, "store ready", logger.String("driver", driver), logger.Int("scan_page_size", s.pageSize))
	return s, nil
}

// configureSQLite serialises access through one connection, which also keeps
// an in-memory database alive for the lifetime of the pool.
func configureSQLite(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	// WAL is rejected for in-memory databases; the error is harmless there.
	_ = db.Exec("PRAGMA journal_mode=WAL").Error
	return nil
}

// CreateCelebrity inserts c after checking its invariants.
func (s *GormStore) CreateCelebrity(ctx context.Context, c model.Celebrity) (err error) {
	defer s.observe("create_celebrity", time.Now(), &err)
	if err = c.Validate(); err != nil {
		return err
	}
	row := fromCelebrity(c)
	return classify("create celebrity", c.ID, s.db.WithContext(ctx).Create(&row).Error)
}

// GetCelebrity loads one celebrity by id.
func (s *GormStore) GetCelebrity(ctx context.Context, id string) (c model.Celebrity, err error) {
	defer s.observe("get_celebrity", time.Now(), &err)
	return getCelebrity(s.db.WithContext(ctx), id)
}

func getCelebrity(db *gorm.DB, id string) (model.Celebrity, error) {
	var row celebrityRow
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		return model.Celebrity{}, classify("get celebrity", id, err)
	}
	return row.toModel(), nil
}

// AllCelebrities walks the table with keyset pagination on id.
func (s *GormStore) AllCelebrities(ctx context.Context) (out []model.Celebrity, err error) {
	defer s.observe("scan_celebrities", time.Now(), &err)
	after := ""
	for {
		var page []celebrityRow
		err = s.db.WithContext(ctx).
			Where("id > ?", after).
			Order("id ASC").
			Limit(s.pageSize).
			Find(&page).Error
		if err != nil {
			return nil, classify("scan celebrities", "", err)
		}
		for _, r := range page {
			out = append(out, r.toModel())
		}
		if len(page) < s.pageSize {
			return out, nil
		}
		after = page[len(page)-1].ID
	}
}

// RecordMatch commits both rating updates and the outcome row together.
func (s *GormStore) RecordMatch(ctx context.Context, m model.MatchOutcome) (err error) {
	defer s.observe("record_match", time.Now(), &err)
	if err = m.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	ua, ub := m.Updates()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range []model.RatingUpdate{ua, ub} {
			won := 0
			if u.Won {
				won = 1
			}
			res := tx.Model(&celebrityRow{}).
				Where("id = ?", u.ID).
				Updates(map[string]any{
					"rating":     u.After,
					"matches":    gorm.Expr("matches + 1"),
					"wins":       gorm.Expr("wins + ?", won),
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("celebrity %q vanished during vote: %w", u.ID, model.ErrConflict)
			}
		}
		row := fromMatch(m)
		return tx.Create(&row).Error
	})
	return classify("record match", "", err)
}

// AppendSkip inserts a skip event.
func (s *GormStore) AppendSkip(ctx context.Context, ev model.SkipEvent) (err error) {
	defer s.observe("append_skip", time.Now(), &err)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	row := skipRow{ID: ev.ID, CelebrityA: ev.CelebrityA, CelebrityB: ev.CelebrityB, CreatedAt: ev.CreatedAt}
	return classify("append skip", "", s.db.WithContext(ctx).Create(&row).Error)
}

// IncrementVote bumps one community counter.
func (s *GormStore) IncrementVote(ctx context.Context, v model.VoteIncrement) (c model.Celebrity, err error) {
	defer s.observe("increment_vote", time.Now(), &err)
	if err = v.Validate(); err != nil {
		return model.Celebrity{}, err
	}
	column := "no_votes"
	if v.Yes {
		column = "yes_votes"
	}
	return s.mutate(ctx, v.ID, map[string]any{column: gorm.Expr(column + " + 1")})
}

// SetConfirmed writes the moderation flag; nil clears it.
func (s *GormStore) SetConfirmed(ctx context.Context, f model.FlagUpdate) (c model.Celebrity, err error) {
	defer s.observe("set_confirmed", time.Now(), &err)
	if err = f.Validate(); err != nil {
		return model.Celebrity{}, err
	}
	return s.mutate(ctx, f.ID, map[string]any{"confirmed": f.Value})
}

// ResetVotes zeroes both community counters.
func (s *GormStore) ResetVotes(ctx context.Context, r model.VoteReset) (c model.Celebrity, err error) {
	defer s.observe("reset_votes", time.Now(), &err)
	if err = r.Validate(); err != nil {
		return model.Celebrity{}, err
	}
	return s.mutate(ctx, r.ID, map[string]any{"yes_votes": 0, "no_votes": 0})
}

// mutate applies a single-row update and reads the row back in one transaction.
func (s *GormStore) mutate(ctx context.Context, id string, fields map[string]any) (model.Celebrity, error) {
	var out model.Celebrity
	fields["updated_at"] = s.now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&celebrityRow{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.NewNotFound(id)
		}
		c, err := getCelebrity(tx, id)
		if err != nil {
			return err
		}
		out = c
		return c.Validate()
	})
	if err != nil {
		return model.Celebrity{}, classify("update celebrity", id, err)
	}
	return out, nil
}

// RecentMatches returns up to limit outcomes, newest first.
func (s *GormStore) RecentMatches(ctx context.Context, limit int) (out []model.MatchOutcome, err error) {
	defer s.observe("recent_matches", time.Now(), &err)
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	var rows []matchRow
	err = s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, classify("recent matches", "", err)
	}
	out = make([]model.MatchOutcome, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// CountMatches counts the match log.
func (s *GormStore) CountMatches(ctx context.Context) (n int64, err error) {
	defer s.observe("count_matches", time.Now(), &err)
	err = s.db.WithContext(ctx).Model(&matchRow{}).Count(&n).Error
	return n, classify("count matches", "", err)
}

// CountSkips counts skips for one celebrity, or all skips.
func (s *GormStore) CountSkips(ctx context.Context, celebrityID string) (n int64, err error) {
	defer s.observe("count_skips", time.Now(), &err)
	q := s.db.WithContext(ctx).Model(&skipRow{})
	if celebrityID != "" {
		q = q.Where("celebrity_a = ? OR celebrity_b = ?", celebrityID, celebrityID)
	}
	err = q.Count(&n).Error
	return n, classify("count skips", celebrityID, err)
}

// Close closes the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) observe(op string, start time.Time, errp *error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if errp != nil && *errp != nil && !model.IsClientError(*errp) {
		metrics.RecordStoreError(op)
		s.log.Warn(context.Background(), "store operation failed", logger.String("op", op), logger.Error(*errp))
	}
}
