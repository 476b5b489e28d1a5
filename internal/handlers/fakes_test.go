package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/schedule-api/internal/authz"
	"github.com/stanstork/schedule-api/internal/models"
	"github.com/stanstork/schedule-api/internal/notification"
	"github.com/stanstork/schedule-api/internal/repository"
)

const (
	testUserID     = "11111111-1111-1111-1111-111111111111"
	testCategoryID = "22222222-2222-2222-2222-222222222222"
	missingID      = "99999999-9999-9999-9999-999999999999"
	testEventID    = "44444444-4444-4444-4444-444444444444"
)

func newRequest(t *testing.T, method, target string, body interface{}, vars map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(authz.WithIdentity(req.Context(), testUserID, "user@example.com"))
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type fakeEventRepo struct {
	repository.EventRepository
	mu         sync.Mutex
	events     map[string]models.Event
	lastFilter models.EventFilter
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[string]models.Event)}
}

func (f *fakeEventRepo) Create(_ context.Context, ev models.Event) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.ID = uuid.NewString()
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	f.events[ev.ID] = ev
	return ev, nil
}

func (f *fakeEventRepo) Get(_ context.Context, userID, eventID string) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok || ev.UserID != userID {
		return models.Event{}, sql.ErrNoRows
	}
	return ev, nil
}

func (f *fakeEventRepo) List(_ context.Context, userID string, filter models.EventFilter) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	out := make([]models.Event, 0)
	for _, ev := range f.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) Update(_ context.Context, ev models.Event) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.events[ev.ID]
	if !ok || old.UserID != ev.UserID {
		return models.Event{}, sql.ErrNoRows
	}
	ev.CreatedAt = old.CreatedAt
	f.events[ev.ID] = ev
	return ev, nil
}

func (f *fakeEventRepo) Delete(_ context.Context, userID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok || ev.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.events, eventID)
	return nil
}

func (f *fakeEventRepo) CountByCategory(_ context.Context, userID, categoryID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.UserID == userID && ev.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

type fakeCategoryRepo struct {
	repository.CategoryRepository
	categories map[string]models.Category
	seeded     []string
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: map[string]models.Category{
		testCategoryID: {ID: testCategoryID, UserID: testUserID, Name: "Work", Color: "#3B82F6", IsDefault: true},
	}}
}

func (f *fakeCategoryRepo) Get(_ context.Context, userID, categoryID string) (models.Category, error) {
	c, ok := f.categories[categoryID]
	if !ok || c.UserID != userID {
		return models.Category{}, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeCategoryRepo) Create(_ context.Context, c models.Category) (models.Category, error) {
	c.ID = uuid.NewString()
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeCategoryRepo) CreateDefaults(_ context.Context, userID string) ([]models.Category, error) {
	f.seeded = append(f.seeded, userID)
	return models.DefaultCategories, nil
}

func (f *fakeCategoryRepo) Delete(_ context.Context, userID, categoryID string) error {
	c, ok := f.categories[categoryID]
	if !ok || c.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.categories, categoryID)
	return nil
}

type fakeNotificationService struct {
	notification.Service
	mu        sync.Mutex
	refreshed []string
	refresh   notification.RefreshResult
	stored    map[string]models.EventNotification
	lastQuery models.NotificationFilter
}

func newFakeNotificationService() *fakeNotificationService {
	return &fakeNotificationService{stored: make(map[string]models.EventNotification)}
}

func (f *fakeNotificationService) Refresh(_ context.Context, userID string) (notification.RefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, userID)
	return f.refresh, nil
}

func (f *fakeNotificationService) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshed)
}

func (f *fakeNotificationService) Create(_ context.Context, userID string, in notification.ManualInput) (models.EventNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.EventID != "" && in.EventID != testEventID {
		return models.EventNotification{}, notification.ErrUnknownEvent
	}
	n := models.EventNotification{
		ID:           uuid.NewString(),
		UserID:       userID,
		EventID:      in.EventID,
		Source:       models.SourceManual,
		Title:        in.Title,
		Type:         in.Type,
		Message:      in.Message,
		ScheduledFor: in.ScheduledFor,
	}
	f.stored[n.ID] = n
	return n, nil
}

func (f *fakeNotificationService) List(_ context.Context, _ string, filter models.NotificationFilter) ([]models.EventNotification, error) {
	f.lastQuery = filter
	out := make([]models.EventNotification, 0, len(f.stored))
	for _, n := range f.stored {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeNotificationService) MarkRead(_ context.Context, userID, id string) (models.EventNotification, error) {
	n, ok := f.stored[id]
	if !ok || n.UserID != userID {
		return models.EventNotification{}, sql.ErrNoRows
	}
	n.IsRead = true
	f.stored[id] = n
	return n, nil
}

func (f *fakeNotificationService) Stats(_ context.Context, userID string) (models.NotificationStats, error) {
	var s models.NotificationStats
	for _, n := range f.stored {
		if n.UserID != userID {
			continue
		}
		s.Total++
		if !n.IsRead {
			s.Unread++
		}
	}
	return s, nil
}

type fakeUserRepo struct {
	repository.UserRepository
	users map[string]models.User
	stats models.UserStats
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]models.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, name, email, password string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return models.User{}, repository.ErrEmailTaken
		}
	}
	u := models.User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: "hash:" + password}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) AuthenticateUser(_ context.Context, email, password string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email && u.PasswordHash == "hash:"+password {
			return u, nil
		}
	}
	return models.User{}, repository.ErrInvalidCredentials
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, userID string) (models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, userID, name, email string) (models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	for id, other := range f.users {
		if id != userID && other.Email == email {
			return models.User{}, repository.ErrEmailTaken
		}
	}
	u.Name, u.Email = name, email
	f.users[userID] = u
	return u, nil
}

func (f *fakeUserRepo) ChangePassword(_ context.Context, userID, currentPassword, newPassword string) error {
	u, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	if u.PasswordHash != "hash:"+currentPassword {
		return repository.ErrInvalidCredentials
	}
	u.PasswordHash = "hash:" + newPassword
	f.users[userID] = u
	return nil
}

func (f *fakeUserRepo) DeleteUser(_ context.Context, userID string) error {
	if _, ok := f.users[userID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.users, userID)
	return nil
}

func (f *fakeUserRepo) Stats(context.Context, string) (models.UserStats, error) {
	return f.stats, nil
}
