package notification

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/schedule-api/internal/models"
	"github.com/stanstork/schedule-api/internal/repository"
)

type fakeEventRepo struct {
	repository.EventRepository
	byUser  map[string][]models.Event
	listErr map[string]error
}

func (f *fakeEventRepo) List(_ context.Context, userID string, _ models.EventFilter) ([]models.Event, error) {
	if err := f.listErr[userID]; err != nil {
		return nil, err
	}
	return f.byUser[userID], nil
}

func (f *fakeEventRepo) Get(_ context.Context, userID, eventID string) (models.Event, error) {
	for _, ev := range f.byUser[userID] {
		if ev.ID == eventID {
			return ev, nil
		}
	}
	return models.Event{}, sql.ErrNoRows
}

func (f *fakeEventRepo) ListUserIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.byUser))
	for _, id := range []string{"alice", "bob", "carol"} {
		if _, ok := f.byUser[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeNotificationRepo struct {
	repository.NotificationRepository
	mu     sync.Mutex
	stored map[string][]models.EventNotification
	// stale makes ListEventNotifications miss rows written by a concurrent
	// writer, so CreateMany sees conflicts the generator did not.
	stale bool
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{stored: make(map[string][]models.EventNotification)}
}

func (f *fakeNotificationRepo) ListEventNotifications(_ context.Context, userID string) ([]models.EventNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stale {
		return nil, nil
	}
	out := make([]models.EventNotification, 0, len(f.stored[userID]))
	for _, n := range f.stored[userID] {
		if !n.IsManual() {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) Create(_ context.Context, n models.EventNotification) (models.EventNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[n.UserID] = append(f.stored[n.UserID], n)
	return n, nil
}

func (f *fakeNotificationRepo) CreateMany(_ context.Context, notifications []models.EventNotification) ([]models.EventNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := make([]models.EventNotification, 0, len(notifications))
	for _, n := range notifications {
		dup := false
		for _, s := range f.stored[n.UserID] {
			if !s.IsManual() && KeyFor(s.EventID, s.OccurrenceStart) == KeyFor(n.EventID, n.OccurrenceStart) {
				dup = true
				break
			}
		}
		if !dup {
			f.stored[n.UserID] = append(f.stored[n.UserID], n)
			created = append(created, n)
		}
	}
	return created, nil
}

func (f *fakeNotificationRepo) DeleteMany(_ context.Context, userID string, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.stored[userID][:0]
	deleted := 0
	for _, n := range f.stored[userID] {
		if drop[n.ID] {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	f.stored[userID] = kept
	return deleted, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	seen []models.EventNotification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n models.EventNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
	return r.err
}

func newTestService(events *fakeEventRepo, repo *fakeNotificationRepo, now time.Time, notifiers ...Notifier) *service {
	svc := NewService(events, repo, zerolog.Nop(), time.UTC, notifiers...).(*service)
	svc.now = func() time.Time { return now }
	return svc
}

func TestServiceRefreshPersistsAndPrunes(t *testing.T) {
	ctx := context.Background()
	events := &fakeEventRepo{byUser: map[string][]models.Event{
		"alice": {
			{ID: "standup", UserID: "alice", Title: "Standup", StartDate: testNow.Add(10 * time.Minute), EndDate: testNow.Add(30 * time.Minute)},
		},
	}}
	repo := newFakeNotificationRepo()
	repo.stored["alice"] = []models.EventNotification{
		{ID: "old", UserID: "alice", EventID: "gone", OccurrenceStart: testNow.Add(-2 * time.Hour), OccurrenceEnd: testNow.Add(-time.Hour)},
	}
	notifier := &recordingNotifier{}
	svc := newTestService(events, repo, testNow, notifier)

	res, err := svc.Refresh(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{Created: 1, Deleted: 1}, res)

	stored := repo.stored["alice"]
	require.Len(t, stored, 1)
	assert.Equal(t, "standup", stored[0].EventID)
	assert.Equal(t, `Event "Standup" starts in 10 minutes`, stored[0].Message)
	require.Len(t, notifier.seen, 1)

	res, err = svc.Refresh(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{}, res)
	assert.Len(t, repo.stored["alice"], 1)
}

func TestServiceRefreshSurvivesNotifierFailure(t *testing.T) {
	events := &fakeEventRepo{byUser: map[string][]models.Event{
		"alice": {{ID: "e", UserID: "alice", Title: "E", StartDate: testNow.Add(time.Hour), EndDate: testNow.Add(2 * time.Hour)}},
	}}
	svc := newTestService(events, newFakeNotificationRepo(), testNow, &recordingNotifier{err: errors.New("boom")})

	res, err := svc.Refresh(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}

func TestServiceRefreshNotifiesOnlyInsertedRows(t *testing.T) {
	start := testNow.Add(time.Hour)
	events := &fakeEventRepo{byUser: map[string][]models.Event{
		"alice": {
			{ID: "a", UserID: "alice", Title: "A", StartDate: start, EndDate: start.Add(time.Hour)},
			{ID: "b", UserID: "alice", Title: "B", StartDate: start.Add(24 * time.Hour), EndDate: start.Add(25 * time.Hour)},
		},
	}}
	repo := newFakeNotificationRepo()
	repo.stale = true
	repo.stored["alice"] = []models.EventNotification{
		{ID: "raced", UserID: "alice", EventID: "a", OccurrenceStart: start, OccurrenceEnd: start.Add(time.Hour)},
	}
	notifier := &recordingNotifier{}
	svc := newTestService(events, repo, testNow, notifier)

	res, err := svc.Refresh(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, notifier.seen, 1)
	assert.Equal(t, "b", notifier.seen[0].EventID)
}

func TestServiceCreateManual(t *testing.T) {
	ctx := context.Background()
	events := &fakeEventRepo{byUser: map[string][]models.Event{
		"alice": {{ID: "standup", UserID: "alice", Title: "Standup", StartDate: testNow.Add(time.Hour), EndDate: testNow.Add(2 * time.Hour)}},
	}}
	repo := newFakeNotificationRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(events, repo, testNow, notifier)

	created, err := svc.Create(ctx, "alice", ManualInput{
		Title:   "  Bring slides ",
		Message: "For the standup",
		Type:    models.NotificationReminder,
		EventID: "standup",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceManual, created.Source)
	assert.Equal(t, "Bring slides", created.Title)
	assert.Equal(t, "Standup", created.EventTitle)
	assert.Equal(t, testNow, created.CreatedAt)
	require.Len(t, notifier.seen, 1)

	_, err = svc.Create(ctx, "alice", ManualInput{Title: "x", Message: "y", Type: models.NotificationSystem, EventID: "someone-elses"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = svc.Create(ctx, "alice", ManualInput{Title: "x", Message: "y", Type: models.NotificationOngoing})
	assert.Error(t, err)
}

func TestServiceRefreshKeepsManualNotifications(t *testing.T) {
	events := &fakeEventRepo{byUser: map[string][]models.Event{"alice": nil}}
	repo := newFakeNotificationRepo()
	repo.stored["alice"] = []models.EventNotification{
		{ID: "note", UserID: "alice", Source: models.SourceManual, Type: models.NotificationSystem, Title: "Welcome"},
	}
	svc := newTestService(events, repo, testNow)

	res, err := svc.Refresh(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{}, res)
	require.Len(t, repo.stored["alice"], 1)
	assert.Equal(t, "note", repo.stored["alice"][0].ID)
}

func TestServiceRefreshConcurrentCallsDoNotDuplicate(t *testing.T) {
	events := &fakeEventRepo{byUser: map[string][]models.Event{
		"alice": {
			{ID: "a", UserID: "alice", Title: "A", StartDate: testNow.Add(time.Hour), EndDate: testNow.Add(2 * time.Hour)},
			{ID: "b", UserID: "alice", Title: "B", StartDate: testNow.Add(48 * time.Hour), EndDate: testNow.Add(49 * time.Hour)},
		},
	}}
	repo := newFakeNotificationRepo()
	svc := newTestService(events, repo, testNow)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(context.Background(), "alice")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, repo.stored["alice"], 2)
	assert.Zero(t, svc.locks.size())
}

func TestServiceRefreshAllContinuesAfterFailure(t *testing.T) {
	events := &fakeEventRepo{
		byUser: map[string][]models.Event{
			"alice": {{ID: "a", UserID: "alice", Title: "A", StartDate: testNow.Add(time.Hour), EndDate: testNow.Add(2 * time.Hour)}},
			"bob":   nil,
			"carol": {{ID: "c", UserID: "carol", Title: "C", StartDate: testNow.Add(-time.Minute), EndDate: testNow.Add(time.Hour)}},
		},
		listErr: map[string]error{"bob": errors.New("db down")},
	}
	repo := newFakeNotificationRepo()
	svc := newTestService(events, repo, testNow)

	summary, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefreshSummary{Users: 3, Failed: 1, Created: 2}, summary)
	assert.Len(t, repo.stored["alice"], 1)
	assert.Len(t, repo.stored["carol"], 1)
	assert.Equal(t, models.NotificationOngoing, repo.stored["carol"][0].Type)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock on the same key acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-done
	unlockB()
	assert.Zero(t, k.size())
}
