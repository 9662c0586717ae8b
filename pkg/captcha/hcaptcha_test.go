package captcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestClient_Verify(t *testing.T) {
	tests := []struct {
		name      string
		handler   func(calls int32) (int, string)
		token     string
		wantErr   bool
		rejected  bool
		wantCalls int32
	}{
		{
			name:      "success",
			handler:   func(int32) (int, string) { return http.StatusOK, `{"success":true}` },
			token:     "tok",
			wantCalls: 1,
		},
		{
			name:      "rejected",
			handler:   func(int32) (int, string) { return http.StatusOK, `{"success":false,"error-codes":["invalid-input-response"]}` },
			token:     "tok",
			wantErr:   true,
			rejected:  true,
			wantCalls: 1,
		},
		{
			name: "retries server errors",
			handler: func(calls int32) (int, string) {
				if calls < 3 {
					return http.StatusBadGateway, ""
				}
				return http.StatusOK, `{"success":true}`
			},
			token:     "tok",
			wantCalls: 3,
		},
		{
			name:      "client error is not retried",
			handler:   func(int32) (int, string) { return http.StatusBadRequest, "" },
			token:     "tok",
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:      "empty token",
			handler:   func(int32) (int, string) { return http.StatusOK, `{"success":true}` },
			token:     "",
			wantErr:   true,
			rejected:  true,
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				if err := r.ParseForm(); err != nil || r.PostForm.Get("secret") != "s3cret" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				status, body := tt.handler(n)
				w.WriteHeader(status)
				w.Write([]byte(body))
			}))
			defer srv.Close()

			c := NewClient(Config{Secret: "s3cret", VerifyURL: srv.URL, MaxRetries: 3})
			err := c.Verify(context.Background(), tt.token, "203.0.113.1")

			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.rejected && !errors.Is(err, ErrRejected) {
				t.Errorf("Verify() error = %v, want ErrRejected", err)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("provider calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestClient_VerifyWithoutSecret(t *testing.T) {
	c := NewClient(Config{})
	if err := c.Verify(context.Background(), "tok", ""); err == nil {
		t.Fatal("expected error without secret")
	}
}
