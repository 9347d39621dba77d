package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsboard/internal/config"
	"opsboard/internal/timerange"
)

func newTestBoard(t *testing.T, handler http.Handler) *Board {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("contractor", config.ModeConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	ctrl, err := timerange.NewController(timerange.Options{
		Mode: "contractor",
		Now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	return NewBoard(ctrl, NewAdapter(client))
}

// modernFor builds a minimal modern payload whose single resource is named
// after the requested start date, so tests can tell which range a response
// belonged to.
func modernFor(w http.ResponseWriter, startDate string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"resources": []map[string]any{
			{"id": "res-" + startDate, "name": startDate, "category": "crew"},
		},
		"events": []any{},
		"meta":   map[string]any{"count": 0},
	})
}

func waitForSnapshot(t *testing.T, b *Board, want string) State {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := b.State()
		if !st.Loading && st.Snapshot != nil && len(st.Snapshot.Resources) == 1 &&
			st.Snapshot.Resources[0].Name == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for snapshot %q", want)
	return State{}
}

func TestBoardStaleResultDiscarded(t *testing.T) {
	r1From := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r2From := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

	r1Key := r1From.Format(time.RFC3339)
	r2Key := r2From.Format(time.RFC3339)

	r1Arrived := make(chan struct{})
	releaseR1 := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/ops-calendar", func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("startDate")
		if start == r1Key {
			close(r1Arrived)
			<-releaseR1 // hold the first fetch until the second has landed
		}
		modernFor(w, start)
	})

	b := newTestBoard(t, mux)
	ctx := context.Background()

	_, err := b.SetRange(ctx, r1From, r1From.AddDate(0, 0, 7), timerange.ZoomDay)
	require.NoError(t, err)
	<-r1Arrived

	// Navigate away before the first fetch resolves.
	_, err = b.SetRange(ctx, r2From, r2From.AddDate(0, 0, 7), timerange.ZoomDay)
	require.NoError(t, err)
	waitForSnapshot(t, b, r2Key)

	// Let the first fetch finish late; its result must never overwrite the
	// second range's snapshot.
	close(releaseR1)
	b.Wait()

	st := b.State()
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, r2Key, st.Snapshot.Resources[0].Name)
	assert.False(t, st.Loading)
	assert.NoError(t, st.Err)
}

func TestBoardErrorKeepsPriorSnapshotAndIsRetryable(t *testing.T) {
	var fail atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/ops-calendar", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		modernFor(w, r.URL.Query().Get("startDate"))
	})
	// Legacy fallback fails too so the load errors outright.
	mux.HandleFunc("/calendar", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "flaky", http.StatusInternalServerError)
	})

	b := newTestBoard(t, mux)
	ctx := context.Background()

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	_, err := b.SetRange(ctx, from, from.AddDate(0, 0, 7), timerange.ZoomDay)
	require.NoError(t, err)
	good := waitForSnapshot(t, b, from.Format(time.RFC3339))

	fail.Store(true)
	b.Refresh(ctx)
	b.Wait()

	st := b.State()
	require.Error(t, st.Err)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, good.Snapshot.Resources[0].Name, st.Snapshot.Resources[0].Name,
		"failed refresh must not clear the prior snapshot")

	// User-driven retry succeeds and clears the error.
	fail.Store(false)
	b.Refresh(ctx)
	b.Wait()
	st = b.State()
	assert.NoError(t, st.Err)
}

func TestBoardRejectsControllerErrorsWithoutFetching(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ops-calendar", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		modernFor(w, r.URL.Query().Get("startDate"))
	})

	b := newTestBoard(t, mux)
	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := b.SetRange(context.Background(), from, from.Add(-time.Hour), timerange.ZoomDay)
	require.ErrorIs(t, err, timerange.ErrInvalidRange)

	_, err = b.SetRange(context.Background(), from, from.AddDate(0, 0, 1), timerange.ZoomMonth)
	require.ErrorIs(t, err, timerange.ErrUnsupportedZoom)

	b.Wait()
	assert.Zero(t, calls.Load(), "rejected range changes must not issue fetches")
}
