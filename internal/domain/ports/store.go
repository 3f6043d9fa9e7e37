package ports

import (
	"context"
	"errors"
	"time"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// RecordStore is the school record database the dynamic providers and list endpoints read
type RecordStore interface {
	// BirthdaysOn returns active students born on the month/day of day
	BirthdaysOn(ctx context.Context, day time.Time) ([]entities.Student, error)

	// PinnedNotices returns pinned notices visible at t, newest first
	PinnedNotices(ctx context.Context, t time.Time, limit int) ([]entities.Notice, error)

	// ListNotices returns notices visible at t, newest first
	ListNotices(ctx context.Context, t time.Time, limit int) ([]entities.Notice, error)

	// GetNotice returns a single notice by id
	GetNotice(ctx context.Context, id uint) (*entities.Notice, error)

	// ActiveAnnouncements returns ticker lines ordered by priority
	ActiveAnnouncements(ctx context.Context) ([]entities.Announcement, error)
}

// RecordWriter seeds and maintains records
type RecordWriter interface {
	Migrate(ctx context.Context) error
	SaveStudents(ctx context.Context, students []entities.Student) error
	SaveNotices(ctx context.Context, notices []entities.Notice) error
	SaveAnnouncements(ctx context.Context, announcements []entities.Announcement) error
}
