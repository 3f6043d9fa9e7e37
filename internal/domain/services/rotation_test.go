package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
	"github.com/fredcamaral/bulletin/internal/test/builders"
	"github.com/fredcamaral/bulletin/internal/test/fakes"
)

// stubProvider pushes snapshots on demand
type stubProvider struct {
	mu       sync.Mutex
	id       string
	fn       ports.SnapshotFunc
	initial  *entities.ProviderSnapshot
	unsubbed int
}

func newStubProvider(id string) *stubProvider {
	return &stubProvider{id: id}
}

func (p *stubProvider) ID() string { return p.id }

func (p *stubProvider) Subscribe(fn ports.SnapshotFunc) func() {
	p.mu.Lock()
	p.fn = fn
	initial := p.initial
	p.mu.Unlock()

	if initial != nil {
		fn(*initial)
	}

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.fn = nil
		p.unsubbed++
	}
}

func (p *stubProvider) push(snapshot entities.ProviderSnapshot) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

func (p *stubProvider) unsubscribeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unsubbed
}

// MockContentProvider is a mock implementation of ports.ContentProvider
type MockContentProvider struct {
	mock.Mock
}

func (m *MockContentProvider) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContentProvider) Subscribe(fn ports.SnapshotFunc) func() {
	args := m.Called(fn)
	return args.Get(0).(func())
}

// recordingMetrics captures snapshot observations
type recordingMetrics struct {
	ports.NopMetrics
	mu        sync.Mutex
	snapshots []string
	failures  int
}

func (m *recordingMetrics) ObserveSnapshot(providerID string, slides int, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, providerID)
	if failed {
		m.failures++
	}
}

var defaultOrder = []string{"banner", "birthdays", "notices"}

func newTestService(t *testing.T, providers ...ports.ContentProvider) (*RotationService, *fakes.Clock) {
	t.Helper()
	clock := fakes.NewClock(testEpoch)
	scheduler := NewRotationScheduler(5*time.Second, clock, nil, nil)
	svc, err := NewRotationService(defaultOrder, providers, scheduler, clock, nil, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, clock
}

func currentIDs(s *RotationScheduler) []string {
	return slideIDs(s.Rotation())
}

func TestNewRotationService(t *testing.T) {
	clock := fakes.NewClock(testEpoch)
	scheduler := NewRotationScheduler(time.Second, clock, nil, nil)

	tests := []struct {
		name      string
		order     []string
		providers []ports.ContentProvider
		scheduler *RotationScheduler
		wantErr   string
	}{
		{
			name:      "missing scheduler",
			order:     defaultOrder,
			providers: nil,
			scheduler: nil,
			wantErr:   "scheduler is required",
		},
		{
			name:      "empty order",
			order:     nil,
			scheduler: scheduler,
			wantErr:   "provider order cannot be empty",
		},
		{
			name:      "duplicate order entry",
			order:     []string{"banner", "banner"},
			scheduler: scheduler,
			wantErr:   "listed more than once",
		},
		{
			name:      "provider outside order",
			order:     []string{"banner"},
			providers: []ports.ContentProvider{newStubProvider("weather")},
			scheduler: scheduler,
			wantErr:   "missing from provider order",
		},
		{
			name:  "provider registered twice",
			order: defaultOrder,
			providers: []ports.ContentProvider{
				newStubProvider("banner"),
				newStubProvider("banner"),
			},
			scheduler: scheduler,
			wantErr:   "registered twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewRotationService(tt.order, tt.providers, tt.scheduler, clock, nil, nil)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRotationService_PriorityOrder(t *testing.T) {
	notices := newStubProvider("notices")
	banner := newStubProvider("banner")
	birthdays := newStubProvider("birthdays")

	// Registration order differs from priority order
	svc, _ := newTestService(t, notices, banner, birthdays)
	require.NoError(t, svc.Start())
	scheduler := svc.Scheduler()

	notices.push(builders.NewSnapshotBuilder("notices").WithStatic(1).Build())
	assert.Equal(t, []string{"notices-0"}, currentIDs(scheduler))

	banner.push(builders.NewSnapshotBuilder("banner").WithStatic(2).Build())
	assert.Equal(t, []string{"banner-0", "banner-1", "notices-0"}, currentIDs(scheduler))

	birthdays.push(builders.NewSnapshotBuilder("birthdays").
		WithSlides(builders.DynamicSlides("birthdays", 1, testEpoch.Add(time.Hour))...).
		Build())
	assert.Equal(t,
		[]string{"banner-0", "banner-1", "birthdays-0", "notices-0"},
		currentIDs(scheduler))

	snaps := svc.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, "banner", snaps[0].ProviderID)
	assert.Equal(t, "birthdays", snaps[1].ProviderID)
	assert.Equal(t, "notices", snaps[2].ProviderID)
}

func TestRotationService_SnapshotReplacesProviderContent(t *testing.T) {
	banner := newStubProvider("banner")
	notices := newStubProvider("notices")
	svc, _ := newTestService(t, banner, notices)
	require.NoError(t, svc.Start())
	scheduler := svc.Scheduler()

	banner.push(builders.NewSnapshotBuilder("banner").WithStatic(2).Build())
	notices.push(builders.NewSnapshotBuilder("notices").WithStatic(3).Build())
	require.Equal(t, 5, scheduler.State().RotationLength)

	scheduler.JumpTo(4)
	notices.push(builders.NewSnapshotBuilder("notices").WithStatic(1).Build())

	state := scheduler.State()
	assert.Equal(t, 3, state.RotationLength)
	assert.Equal(t, 0, state.ActiveIndex, "index beyond the shrunk rotation resets")
	assert.Equal(t, []string{"banner-0", "banner-1", "notices-0"}, currentIDs(scheduler))
}

func TestRotationService_Lifecycle(t *testing.T) {
	t.Run("initial synchronous snapshot is applied", func(t *testing.T) {
		banner := newStubProvider("banner")
		snap := builders.NewSnapshotBuilder("banner").WithStatic(2).Build()
		banner.initial = &snap

		svc, clock := newTestService(t, banner)
		require.NoError(t, svc.Start())

		state := svc.Scheduler().State()
		assert.Equal(t, entities.PhaseActive, state.Phase)
		assert.Equal(t, 2, state.RotationLength)
		assert.Len(t, clock.Tickers(), 1)
	})

	t.Run("emptied rotation idles the scheduler", func(t *testing.T) {
		banner := newStubProvider("banner")
		svc, clock := newTestService(t, banner)
		require.NoError(t, svc.Start())

		banner.push(builders.NewSnapshotBuilder("banner").WithStatic(2).Build())
		banner.push(builders.NewSnapshotBuilder("banner").Build())

		assert.Equal(t, entities.PhaseIdle, svc.Scheduler().State().Phase)
		assert.True(t, clock.LastTicker().Stopped())
	})

	t.Run("start twice fails", func(t *testing.T) {
		svc, _ := newTestService(t, newStubProvider("banner"))
		require.NoError(t, svc.Start())

		err := svc.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already started")
	})

	t.Run("start after close fails", func(t *testing.T) {
		svc, _ := newTestService(t, newStubProvider("banner"))
		svc.Close()

		err := svc.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")
	})

	t.Run("close unsubscribes once and disposes", func(t *testing.T) {
		banner := newStubProvider("banner")
		notices := newStubProvider("notices")
		svc, clock := newTestService(t, banner, notices)
		require.NoError(t, svc.Start())
		banner.push(builders.NewSnapshotBuilder("banner").WithStatic(1).Build())

		svc.Close()
		svc.Close()

		assert.Equal(t, 1, banner.unsubscribeCount())
		assert.Equal(t, 1, notices.unsubscribeCount())
		assert.Equal(t, entities.PhaseDisposed, svc.Scheduler().State().Phase)
		assert.Equal(t, 1, clock.LastTicker().StopCount())
	})

	t.Run("snapshots after close are ignored", func(t *testing.T) {
		banner := newStubProvider("banner")
		svc, _ := newTestService(t, banner)
		require.NoError(t, svc.Start())
		fn := banner.fn

		svc.Close()
		fn(builders.NewSnapshotBuilder("banner").WithStatic(3).Build())

		assert.Empty(t, svc.Snapshots())
	})
}

func TestRotationService_FailedSnapshot(t *testing.T) {
	banner := newStubProvider("banner")
	notices := newStubProvider("notices")

	clock := fakes.NewClock(testEpoch)
	metrics := &recordingMetrics{}
	scheduler := NewRotationScheduler(time.Second, clock, nil, nil)
	svc, err := NewRotationService(defaultOrder, []ports.ContentProvider{banner, notices}, scheduler, clock, metrics, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	var failedProvider string
	var failedErr error
	svc.OnProviderError(func(providerID string, err error) {
		failedProvider = providerID
		failedErr = err
	})
	require.NoError(t, svc.Start())

	banner.push(builders.NewSnapshotBuilder("banner").WithStatic(1).Build())
	notices.push(builders.NewSnapshotBuilder("notices").WithStatic(2).Build())
	require.Equal(t, 3, scheduler.State().RotationLength)

	fetchErr := errors.New("database unavailable")
	notices.push(builders.NewSnapshotBuilder("notices").WithStatic(2).WithError(fetchErr).Build())

	assert.Equal(t, []string{"banner-0"}, currentIDs(scheduler), "failed provider contributes nothing")
	assert.Equal(t, "notices", failedProvider)
	assert.ErrorIs(t, failedErr, fetchErr)
	assert.Equal(t, 1, metrics.failures)
	assert.Equal(t, []string{"banner", "notices", "notices"}, metrics.snapshots)
}

func TestRotationService_ExpiredDynamicSlides(t *testing.T) {
	birthdays := newStubProvider("birthdays")
	svc, clock := newTestService(t, birthdays)
	require.NoError(t, svc.Start())

	expired := builders.NewSlideBuilder().WithID("yesterday").Dynamic(testEpoch.Add(-time.Minute)).Build()
	current := builders.NewSlideBuilder().WithID("today").Dynamic(testEpoch.Add(time.Hour)).Build()
	birthdays.push(builders.NewSnapshotBuilder("birthdays").WithSlides(expired, current).Build())

	assert.Equal(t, []string{"today"}, currentIDs(svc.Scheduler()))

	clock.Advance(2 * time.Hour)
	birthdays.push(builders.NewSnapshotBuilder("birthdays").WithSlides(expired, current).Build())

	assert.Empty(t, currentIDs(svc.Scheduler()))
	assert.Equal(t, entities.PhaseIdle, svc.Scheduler().State().Phase)
}

func TestRotationService_ExpiryOnTick(t *testing.T) {
	banner := newStubProvider("banner")
	birthdays := newStubProvider("birthdays")
	svc, clock := newTestService(t, banner, birthdays)
	require.NoError(t, svc.Start())

	banner.push(builders.NewSnapshotBuilder("banner").WithStatic(1).Build())
	ending := builders.NewSlideBuilder().WithID("ana").Dynamic(testEpoch.Add(time.Minute)).Build()
	lasting := builders.NewSlideBuilder().WithID("bruno").Dynamic(testEpoch.Add(time.Hour)).Build()
	birthdays.push(builders.NewSnapshotBuilder("birthdays").WithSlides(ending, lasting).Build())
	require.Equal(t, []string{"banner-0", "ana", "bruno"}, currentIDs(svc.Scheduler()))

	clock.Advance(2 * time.Minute)
	require.True(t, clock.LastTicker().Fire(clock.Now()))

	require.Eventually(t, func() bool {
		return len(currentIDs(svc.Scheduler())) == 2
	}, time.Second, 5*time.Millisecond, "expired slide dropped without a provider refresh")
	assert.Equal(t, []string{"banner-0", "bruno"}, currentIDs(svc.Scheduler()))
	assert.Len(t, clock.Tickers(), 1, "pruning keeps the running timer")

	snapshots := svc.Snapshots()
	require.Len(t, snapshots, 2)
	require.Len(t, snapshots[1].Slides, 1)
	assert.Equal(t, "bruno", snapshots[1].Slides[0].ID)
}

func TestRotationService_UnknownProviderSnapshot(t *testing.T) {
	banner := newStubProvider("banner")
	svc, _ := newTestService(t, banner)
	require.NoError(t, svc.Start())

	banner.push(builders.NewSnapshotBuilder("banner").WithStatic(1).Build())
	// A provider pushing under a foreign id must not leak into the rotation
	banner.push(builders.NewSnapshotBuilder("weather").WithStatic(4).Build())

	assert.Equal(t, []string{"banner-0"}, currentIDs(svc.Scheduler()))
}

func TestRotationService_WithMockProvider(t *testing.T) {
	unsubscribed := false
	provider := new(MockContentProvider)
	provider.On("ID").Return("notices")
	provider.On("Subscribe", mock.AnythingOfType("ports.SnapshotFunc")).
		Run(func(args mock.Arguments) {
			fn := args.Get(0).(ports.SnapshotFunc)
			fn(builders.NewSnapshotBuilder("notices").WithStatic(2).Build())
		}).
		Return(func() { unsubscribed = true }).
		Once()

	svc, _ := newTestService(t, provider)
	require.NoError(t, svc.Start())

	assert.Equal(t, []string{"notices-0", "notices-1"}, currentIDs(svc.Scheduler()))

	svc.Close()
	assert.True(t, unsubscribed)
	provider.AssertExpectations(t)
}
