package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// RecordStore is a mock implementation of ports.RecordStore
type RecordStore struct {
	mock.Mock
}

func (m *RecordStore) BirthdaysOn(ctx context.Context, day time.Time) ([]entities.Student, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Student), args.Error(1)
}

func (m *RecordStore) PinnedNotices(ctx context.Context, t time.Time, limit int) ([]entities.Notice, error) {
	args := m.Called(ctx, t, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Notice), args.Error(1)
}

func (m *RecordStore) ListNotices(ctx context.Context, t time.Time, limit int) ([]entities.Notice, error) {
	args := m.Called(ctx, t, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Notice), args.Error(1)
}

func (m *RecordStore) GetNotice(ctx context.Context, id uint) (*entities.Notice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Notice), args.Error(1)
}

func (m *RecordStore) ActiveAnnouncements(ctx context.Context) ([]entities.Announcement, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Announcement), args.Error(1)
}

var _ ports.RecordStore = (*RecordStore)(nil)
