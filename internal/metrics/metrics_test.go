package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveGesture(t *testing.T) {
	before := testutil.ToFloat64(gesturesTotal.WithLabelValues("drag", OutcomeCommitted))
	ObserveGesture("drag", OutcomeCommitted)
	ObserveGesture("drag", OutcomeCommitted)
	if got := testutil.ToFloat64(gesturesTotal.WithLabelValues("drag", OutcomeCommitted)) - before; got != 2 {
		t.Fatalf("delta = %v, want 2", got)
	}
}

func TestTrackMutationBalancesGauge(t *testing.T) {
	base := testutil.ToFloat64(pendingOverrides)
	done := TrackMutation("resize")
	if got := testutil.ToFloat64(pendingOverrides); got != base+1 {
		t.Fatalf("pending = %v, want %v", got, base+1)
	}
	done(errors.New("boom"))
	if got := testutil.ToFloat64(pendingOverrides); got != base {
		t.Fatalf("pending after settle = %v, want %v", got, base)
	}
}

func TestObservePublish(t *testing.T) {
	okBefore := testutil.ToFloat64(eventsPublished.WithLabelValues("created", "ok"))
	errBefore := testutil.ToFloat64(eventsPublished.WithLabelValues("created", "error"))
	ObservePublish("created", nil)
	ObservePublish("created", errors.New("down"))
	if testutil.ToFloat64(eventsPublished.WithLabelValues("created", "ok")) != okBefore+1 ||
		testutil.ToFloat64(eventsPublished.WithLabelValues("created", "error")) != errBefore+1 {
		t.Fatal("publish counters not incremented")
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	counter := httpErrorsTotal.WithLabelValues(http.MethodGet, "/api/events/{id}", "500")
	before := testutil.ToFloat64(counter)
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/events/"+id, nil))
	}
	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Fatalf("errors for pattern = %v, want 2", got)
	}
}
