package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/bizora/pkg/billing"
	"github.com/tendant/bizora/pkg/reconcile"
)

type fakeParser struct {
	event     *billing.Event
	err       error
	signature string
}

func (f *fakeParser) ParseEvent(payload []byte, signature string) (*billing.Event, error) {
	f.signature = signature
	return f.event, f.err
}

type fakeReconciler struct {
	outcome reconcile.Outcome
	err     error
	calls   int
}

func (f *fakeReconciler) Handle(ctx context.Context, ev *billing.Event) (reconcile.Outcome, error) {
	f.calls++
	return f.outcome, f.err
}

type recorder struct{ outcomes []string }

func (r *recorder) RecordWebhookEvent(eventType, outcome string, start time.Time) {
	r.outcomes = append(r.outcomes, eventType+"/"+outcome)
}

func TestHandler_Receive(t *testing.T) {
	ev := &billing.Event{ID: "evt_1", Type: billing.EventCheckoutCompleted}

	tests := []struct {
		name        string
		parser      *fakeParser
		reconciler  *fakeReconciler
		wantStatus  int
		wantBody    string
		wantCalls   int
		wantOutcome string
	}{
		{
			name:        "applied",
			parser:      &fakeParser{event: ev},
			reconciler:  &fakeReconciler{outcome: reconcile.OutcomeApplied},
			wantStatus:  http.StatusOK,
			wantBody:    `{"received":true}`,
			wantCalls:   1,
			wantOutcome: billing.EventCheckoutCompleted + "/applied",
		},
		{
			name:        "duplicate still acknowledged",
			parser:      &fakeParser{event: ev},
			reconciler:  &fakeReconciler{outcome: reconcile.OutcomeDuplicate},
			wantStatus:  http.StatusOK,
			wantBody:    `{"received":true}`,
			wantCalls:   1,
			wantOutcome: billing.EventCheckoutCompleted + "/duplicate",
		},
		{
			name:        "bad signature",
			parser:      &fakeParser{err: fmt.Errorf("%w: no matching v1", billing.ErrInvalidSignature)},
			reconciler:  &fakeReconciler{},
			wantStatus:  http.StatusBadRequest,
			wantBody:    `{"ok":false,"error":"invalid_signature"}`,
			wantOutcome: "unknown/invalid_signature",
		},
		{
			name:        "decode failure",
			parser:      &fakeParser{err: errors.New("unexpected payload")},
			reconciler:  &fakeReconciler{},
			wantStatus:  http.StatusInternalServerError,
			wantBody:    `{"ok":false,"error":"handler_error"}`,
			wantOutcome: "unknown/error",
		},
		{
			name:        "reconcile failure asks for retry",
			parser:      &fakeParser{event: ev},
			reconciler:  &fakeReconciler{err: errors.New("db down")},
			wantStatus:  http.StatusInternalServerError,
			wantBody:    `{"ok":false,"error":"handler_error"}`,
			wantCalls:   1,
			wantOutcome: billing.EventCheckoutCompleted + "/error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), tt.parser, tt.reconciler, rec)

			req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewBufferString(`{"id":"evt_1"}`))
			req.Header.Set(SignatureHeader, "t=1,v1=abc")
			w := httptest.NewRecorder()
			h.Receive(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			assert.Equal(t, tt.wantCalls, tt.reconciler.calls)
			assert.Equal(t, "t=1,v1=abc", tt.parser.signature)
			assert.Equal(t, []string{tt.wantOutcome}, rec.outcomes)
		})
	}
}
