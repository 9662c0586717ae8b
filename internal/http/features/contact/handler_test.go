package contact

import (
	"bytes"
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
	"github.com/tendant/bizora/internal/notification"
	"github.com/tendant/bizora/pkg/repository"
)

type fakeStore struct {
	saved []*repository.ContactMessage
	err   error
}

func (f *fakeStore) Create(ctx context.Context, msg *repository.ContactMessage) error {
	f.saved = append(f.saved, msg)
	return f.err
}

type fakeMailer struct {
	sent []notification.ContactMessage
	err  error
}

func (f *fakeMailer) SendContactMessage(ctx context.Context, m notification.ContactMessage) error {
	f.sent = append(f.sent, m)
	return f.err
}

func submit(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/contact", bytes.NewBufferString(body))
	req.Header.Set("User-Agent", "test-agent/1.0")
	w := httptest.NewRecorder()
	h.Submit(w, req)
	return w
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_Submit(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{}
	h := NewHandler(discardLogger(), store, mailer)

	w := submit(h, `{"name":" Jan ","email":"Jan@Example.NL","subject":"Offerte","message":"Hallo"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, "Jan", saved.Name)
	assert.Equal(t, "jan@example.nl", saved.Email)
	require.NotNil(t, saved.Subject)
	assert.Equal(t, "Offerte", *saved.Subject)
	assert.Equal(t, "test-agent/1.0", saved.Meta["ua"])

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "jan@example.nl", mailer.sent[0].Email)
}

func TestHandler_Submit_MissingFields(t *testing.T) {
	for _, body := range []string{
		`{"email":"jan@example.nl","message":"Hallo"}`,
		`{"name":"Jan","message":"Hallo"}`,
		`{"name":"Jan","email":"jan@example.nl","message":"   "}`,
		`not json`,
	} {
		store := &fakeStore{}
		h := NewHandler(discardLogger(), store, nil)

		w := submit(h, body)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		var resp map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, requiredFieldsMessage, resp["message"])
		assert.Empty(t, store.saved)
	}
}

func TestHandler_Submit_FailuresAreNotFatal(t *testing.T) {
	store := &fakeStore{err: errors.New("relation does not exist")}
	mailer := &fakeMailer{err: errors.New("smtp: 421")}
	h := NewHandler(discardLogger(), store, mailer)

	w := submit(h, `{"name":"Jan","email":"jan@example.nl","message":"Hallo"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, mailer.sent, 1)
	assert.Nil(t, store.saved[0].Subject)
}

func TestHandler_Submit_WithoutMailer(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(discardLogger(), store, nil)

	w := submit(h, `{"name":"Jan","email":"jan@example.nl","message":"Hallo"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, store.saved, 1)
}
