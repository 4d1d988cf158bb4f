package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesNamespace(t *testing.T) {
	RenewalRemindersTotal.Add(0)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stackspend_renewal_reminders_total") {
		t.Fatalf("metrics output missing renewal counter")
	}
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	failed := Serve(ctx, "127.0.0.1:0", slog.New(slog.DiscardHandler))
	cancel()

	select {
	case err := <-failed:
		t.Fatalf("Serve() failed: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServeReportsListenError(t *testing.T) {
	failed := Serve(t.Context(), "127.0.0.1:-1", slog.New(slog.DiscardHandler))

	select {
	case err := <-failed:
		if err == nil {
			t.Fatal("expected a listen error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not report the bad address")
	}
}
