package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// Connect opens a gorm connection for the configured backend and tunes its pool
func Connect(cfg entities.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var dialector gorm.Dialector
	switch cfg.Backend {
	case entities.DatabasePostgres:
		dialector = postgres.Open(cfg.DSN)
	case entities.DatabaseMySQL:
		dialector = mysql.Open(cfg.DSN)
	case entities.DatabaseSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database backend: %s", cfg.Backend)
	}

	level := gormlogger.Warn
	if cfg.LogQueries {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(
			slog.NewLogLogger(logger.With("service", "database").Handler(), slog.LevelDebug),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Backend, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("accessing connection pool: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.GetMaxOpenConns())
	sqlDB.SetMaxIdleConns(cfg.GetMaxIdleConns())
	sqlDB.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	return db, nil
}

// Close releases database resources
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormStore implements the record store on any gorm dialect
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewGormStore creates a store on db
func NewGormStore(db *gorm.DB, logger *slog.Logger) *GormStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormStore{
		db:     db,
		logger: logger.With("service", "record_store"),
	}
}

// Migrate creates or updates the record tables
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&entities.Student{},
		&entities.Notice{},
		&entities.Announcement{},
	); err != nil {
		return fmt.Errorf("migrating records: %w", err)
	}
	s.logger.Info("Record tables migrated")
	return nil
}

// Ping checks the connection
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// BirthdaysOn returns active students born on the month and day of day. On February 28
// of a non-leap year, students born on February 29 are included.
func (s *GormStore) BirthdaysOn(ctx context.Context, day time.Time) ([]entities.Student, error) {
	query := s.db.WithContext(ctx).
		Where("active = ?", true)

	if day.Month() == time.February && day.Day() == 28 && !isLeapYear(day.Year()) {
		query = query.Where("birth_month = ? AND birth_day IN ?", int(time.February), []int{28, 29})
	} else {
		query = query.Where("birth_month = ? AND birth_day = ?", int(day.Month()), day.Day())
	}

	var students []entities.Student
	if err := query.Order("last_name, first_name, id").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("querying birthdays: %w", err)
	}
	return students, nil
}

// PinnedNotices returns pinned notices visible at t, newest first
func (s *GormStore) PinnedNotices(ctx context.Context, t time.Time, limit int) ([]entities.Notice, error) {
	var notices []entities.Notice
	err := s.visibleNotices(ctx, t, limit).
		Where("pinned = ?", true).
		Order("published_at DESC, id DESC").
		Find(&notices).Error
	if err != nil {
		return nil, fmt.Errorf("querying pinned notices: %w", err)
	}
	return notices, nil
}

// ListNotices returns notices visible at t with pinned ones first, then newest first
func (s *GormStore) ListNotices(ctx context.Context, t time.Time, limit int) ([]entities.Notice, error) {
	var notices []entities.Notice
	err := s.visibleNotices(ctx, t, limit).
		Order("pinned DESC, published_at DESC, id DESC").
		Find(&notices).Error
	if err != nil {
		return nil, fmt.Errorf("querying notices: %w", err)
	}
	return notices, nil
}

// GetNotice returns a single notice by id
func (s *GormStore) GetNotice(ctx context.Context, id uint) (*entities.Notice, error) {
	var notice entities.Notice
	err := s.db.WithContext(ctx).First(&notice, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("notice %d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying notice %d: %w", id, err)
	}
	return &notice, nil
}

// ActiveAnnouncements returns active ticker lines, highest priority first
func (s *GormStore) ActiveAnnouncements(ctx context.Context) ([]entities.Announcement, error) {
	var announcements []entities.Announcement
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("priority DESC, id").
		Find(&announcements).Error
	if err != nil {
		return nil, fmt.Errorf("querying announcements: %w", err)
	}
	return announcements, nil
}

// SaveStudents inserts or updates students
func (s *GormStore) SaveStudents(ctx context.Context, students []entities.Student) error {
	if len(students) == 0 {
		return nil
	}

	for i := range students {
		if err := students[i].Validate(); err != nil {
			return fmt.Errorf("student %d: %w", i+1, err)
		}
		born := students[i].BirthDate
		students[i].BirthDate = born.UTC()
		students[i].BirthMonth = int(born.Month())
		students[i].BirthDay = born.Day()
	}

	return s.save(ctx, "students", &students)
}

// SaveNotices inserts or updates notices
func (s *GormStore) SaveNotices(ctx context.Context, notices []entities.Notice) error {
	if len(notices) == 0 {
		return nil
	}

	for i := range notices {
		if err := notices[i].Validate(); err != nil {
			return fmt.Errorf("notice %d: %w", i+1, err)
		}
		notices[i].PublishedAt = notices[i].PublishedAt.UTC()
		if notices[i].ExpiresAt != nil {
			expires := notices[i].ExpiresAt.UTC()
			notices[i].ExpiresAt = &expires
		}
	}

	return s.save(ctx, "notices", &notices)
}

// SaveAnnouncements inserts or updates announcements
func (s *GormStore) SaveAnnouncements(ctx context.Context, announcements []entities.Announcement) error {
	if len(announcements) == 0 {
		return nil
	}

	for i := range announcements {
		if err := announcements[i].Validate(); err != nil {
			return fmt.Errorf("announcement %d: %w", i+1, err)
		}
	}

	return s.save(ctx, "announcements", &announcements)
}

func (s *GormStore) save(ctx context.Context, kind string, records interface{}) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Save(records).Error
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", kind, err)
	}
	s.logger.Debug("Records saved", slog.String("kind", kind))
	return nil
}

// visibleNotices scopes a query to notices published and unexpired at t
func (s *GormStore) visibleNotices(ctx context.Context, t time.Time, limit int) *gorm.DB {
	t = t.UTC()
	query := s.db.WithContext(ctx).
		Where("published_at <= ?", t).
		Where("expires_at IS NULL OR expires_at > ?", t)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return query
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var (
	_ ports.RecordStore  = (*GormStore)(nil)
	_ ports.RecordWriter = (*GormStore)(nil)
)
