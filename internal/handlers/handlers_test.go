package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Romspopopoms/7Jours/internal/database"
	"github.com/Romspopopoms/7Jours/internal/email"
	"github.com/Romspopopoms/7Jours/internal/models"
)

type fakeStore struct {
	subscribers map[string]models.Subscriber
	order       []string
	nextID      int

	schemaCalls int
	schemaErr   error
	findErr     error
	insertErr   error
	markErr     error
	listErr     error
	marked      []int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subscribers: map[string]models.Subscriber{},
		nextID:      1,
	}
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error {
	f.schemaCalls++
	return f.schemaErr
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if s, ok := f.subscribers[email]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeStore) Insert(ctx context.Context, firstName, email string, consentGiven bool) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	if _, ok := f.subscribers[email]; ok {
		return 0, database.ErrDuplicateEmail
	}
	id := f.nextID
	f.nextID++
	f.subscribers[email] = models.Subscriber{
		ID:           id,
		FirstName:    firstName,
		Email:        email,
		ConsentGiven: consentGiven,
		Source:       models.DefaultSource,
	}
	f.order = append(f.order, email)
	return id, nil
}

func (f *fakeStore) MarkPDFSent(ctx context.Context, id int) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeStore) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	subscribers := []models.Subscriber{}
	for i := len(f.order) - 1; i >= 0; i-- {
		subscribers = append(subscribers, f.subscribers[f.order[i]])
	}
	return subscribers, nil
}

type fakeMailer struct {
	result email.SendResult
	verify bool
	diag   email.Diagnostics

	sentTo    []string
	sentNames []string
}

func (f *fakeMailer) SendConfirmation(ctx context.Context, firstName, emailAddr string) email.SendResult {
	f.sentNames = append(f.sentNames, firstName)
	f.sentTo = append(f.sentTo, emailAddr)
	return f.result
}

func (f *fakeMailer) Verify(ctx context.Context) bool {
	return f.verify
}

func (f *fakeMailer) Diagnostics() email.Diagnostics {
	return f.diag
}

func newTestHandler(store SubscriberStore, mailer Mailer) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, mailer, logger).Router()
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestMigrateIdempotent(t *testing.T) {
	store := newFakeStore()
	router := newTestHandler(store, &fakeMailer{})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/migrate", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, "Base de données mise à jour avec succès", resp.Message)
	}

	assert.Equal(t, 3, store.schemaCalls)
}

func TestMigrateFailure(t *testing.T) {
	store := newFakeStore()
	store.schemaErr = errors.New("connection refused")
	router := newTestHandler(store, &fakeMailer{})

	req := httptest.NewRequest(http.MethodGet, "/api/migrate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Échec de la migration de la base de données", resp.Message)
	assert.Contains(t, resp.Error, "connection refused")
}

func TestTestEmailReportsConfiguration(t *testing.T) {
	mailer := &fakeMailer{
		verify: false,
		diag:   email.Diagnostics{Host: "smtp.gmail.com", Configured: false},
	}
	router := newTestHandler(newFakeStore(), mailer)

	req := httptest.NewRequest(http.MethodGet, "/api/test-email", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp testEmailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Configuration email invalide", resp.Message)
	require.NotNil(t, resp.Config)
	assert.Equal(t, "smtp.gmail.com", resp.Config.Host)
	assert.False(t, resp.Config.Configured)
}

func TestTestEmailSend(t *testing.T) {
	mailer := &fakeMailer{
		result: email.SendResult{Sent: true},
		verify: true,
		diag:   email.Diagnostics{Host: "smtp.example.com", User: "✓", Configured: true},
	}
	router := newTestHandler(newFakeStore(), mailer)

	req := httptest.NewRequest(http.MethodGet, "/api/test-email?test=send&email=marie@example.com&name=Marie", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp testEmailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "marie@example.com")
	require.Equal(t, []string{"marie@example.com"}, mailer.sentTo)
	require.Equal(t, []string{"Marie"}, mailer.sentNames)
}

func TestTestEmailSendWithInvalidConfig(t *testing.T) {
	mailer := &fakeMailer{
		verify: false,
		diag:   email.Diagnostics{Host: "smtp.gmail.com", Configured: false},
	}
	router := newTestHandler(newFakeStore(), mailer)

	req := httptest.NewRequest(http.MethodGet, "/api/test-email?test=send&email=marie@example.com&name=Marie", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, mailer.sentTo)
}

func TestListSubscribers(t *testing.T) {
	store := newFakeStore()
	_, err := store.Insert(context.Background(), "Marie", "marie@example.com", true)
	require.NoError(t, err)
	_, err = store.Insert(context.Background(), "Paul", "paul@example.com", true)
	require.NoError(t, err)

	router := newTestHandler(store, &fakeMailer{})

	req := httptest.NewRequest(http.MethodGet, "/api/subscribers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var subscribers []models.Subscriber
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subscribers))
	require.Len(t, subscribers, 2)
	assert.Equal(t, "paul@example.com", subscribers[0].Email)
	assert.Equal(t, "marie@example.com", subscribers[1].Email)
}
