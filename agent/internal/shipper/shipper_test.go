package shipper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bitdiag/bitdiag/agent/internal/config"
	"github.com/bitdiag/bitdiag/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

// recorder is an httptest handler that stores every batch it receives and
// answers with the next status from codes (200 once codes is exhausted).
type recorder struct {
	mu      sync.Mutex
	codes   []int
	batches [][]types.Report
	headers []http.Header
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.headers = append(r.headers, req.Header.Clone())
	code := http.StatusOK
	if len(r.codes) > 0 {
		code, r.codes = r.codes[0], r.codes[1:]
	}
	if code == http.StatusOK {
		var batch []types.Report
		if err := json.NewDecoder(req.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		r.batches = append(r.batches, batch)
	}
	w.WriteHeader(code)
}

func (r *recorder) received() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.headers)
}

func newTestShipper(t *testing.T, endpoint string, bufSize int) *Shipper {
	t.Helper()
	s, err := New(config.AgentConfig{
		ServerEndpoint: endpoint,
		BufferSize:     bufSize,
		ServerAuth:     config.AuthConfig{Mode: "apikey", KeyEnv: "SHIPPER_TEST_KEY"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Retries fire immediately in tests.
	s.wait = func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil }
	return s
}

func report(source string, gamma uint64) *types.Report {
	return &types.Report{
		ID:        "r-" + source,
		SourceID:  source,
		Timestamp: time.Now().UTC(),
		State:     types.StateOK,
		Gamma:     gamma,
	}
}

// runUntil starts s.Run and stops it once cond holds or the deadline passes.
func runUntil(t *testing.T, s *Shipper, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !cond() {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	s.client.CloseIdleConnections()
}

func TestShipper_DeliversBatch(t *testing.T) {
	t.Setenv("SHIPPER_TEST_KEY", "k-123")
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	s := newTestShipper(t, srv.URL+"/", 10)
	for i := 0; i < 5; i++ {
		s.Ship(report("src", uint64(i)))
	}
	runUntil(t, s, func() bool { return rec.received() >= 5 })

	if got := rec.received(); got != 5 {
		t.Fatalf("server received %d reports, want 5", got)
	}
	if got := rec.headers[0].Get("x-api-key"); got != "k-123" {
		t.Errorf("x-api-key header = %q, want k-123", got)
	}
	if got := rec.headers[0].Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after delivery, want 0", s.Pending())
	}
}

func TestShipper_RetriesTransientFailure(t *testing.T) {
	rec := &recorder{codes: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	s := newTestShipper(t, srv.URL, 10)
	s.Ship(report("src", 22))
	runUntil(t, s, func() bool { return rec.received() >= 1 })

	if got := rec.calls(); got != 3 {
		t.Errorf("server saw %d calls, want 3 (two failures then success)", got)
	}
	if got := rec.received(); got != 1 {
		t.Fatalf("server received %d reports, want 1", got)
	}
	if rec.batches[0][0].Gamma != 22 {
		t.Errorf("gamma = %d, want 22", rec.batches[0][0].Gamma)
	}
}

func TestShipper_DiscardsOnPermanentError(t *testing.T) {
	rec := &recorder{codes: []int{http.StatusUnauthorized}}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	s := newTestShipper(t, srv.URL, 10)
	s.Ship(report("first", 1))
	runUntil(t, s, func() bool { return rec.calls() >= 1 })

	// The rejected batch is gone; a later report goes through on its own.
	s.Ship(report("second", 2))
	runUntil(t, s, func() bool { return rec.received() >= 1 })

	if got := rec.calls(); got != 2 {
		t.Errorf("server saw %d calls, want 2", got)
	}
	if got := rec.batches[0][0].SourceID; got != "second" {
		t.Errorf("delivered source = %q, want second", got)
	}
}

func TestShipper_BufferEvictsOldest(t *testing.T) {
	// BufferSize=3; Ship 5 items while the shipper is not running.
	// Only the 3 most recent should survive.
	s := newTestShipper(t, "http://127.0.0.1:0", 3)
	for i := 0; i < 5; i++ {
		s.Ship(report("src", uint64(i)))
	}

	var gammas []uint64
	for len(s.buf) > 0 {
		gammas = append(gammas, (<-s.buf).Gamma)
	}
	if len(gammas) != 3 {
		t.Fatalf("buffer has %d items, want 3", len(gammas))
	}
	for i, want := range []uint64{2, 3, 4} {
		if gammas[i] != want {
			t.Errorf("gammas[%d] = %d, want %d", i, gammas[i], want)
		}
	}
}

func TestShipper_CollectCapsBatch(t *testing.T) {
	s := newTestShipper(t, "http://127.0.0.1:0", maxBatch+20)
	for i := 0; i < maxBatch+20; i++ {
		s.Ship(report("src", uint64(i)))
	}
	first := <-s.buf
	batch := s.collect(first)
	if len(batch) != maxBatch {
		t.Errorf("batch size = %d, want %d", len(batch), maxBatch)
	}
	if s.Pending() != 19 {
		t.Errorf("Pending() = %d, want 19", s.Pending())
	}
}

func TestNew_BadMTLS(t *testing.T) {
	_, err := New(config.AgentConfig{
		ServerEndpoint: "https://localhost:8443",
		BufferSize:     1,
		ServerAuth:     config.AuthConfig{Mode: "mtls", CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"},
	})
	if err == nil {
		t.Fatal("expected error for missing client certificate")
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&statusError{code: http.StatusBadRequest}, true},
		{&statusError{code: http.StatusUnauthorized}, true},
		{&statusError{code: http.StatusForbidden}, true},
		{&statusError{code: http.StatusRequestEntityTooLarge}, true},
		{&statusError{code: http.StatusUnprocessableEntity}, true},
		{&statusError{code: http.StatusTooManyRequests}, false},
		{&statusError{code: http.StatusBadGateway}, false},
		{context.DeadlineExceeded, false},
	}
	for _, tc := range tests {
		if got := isPermanent(tc.err); got != tc.want {
			t.Errorf("isPermanent(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestBackoff_Bounds(t *testing.T) {
	b := newBackoff()
	for i := 0; i < 20; i++ {
		d := b.next()
		if d < 0 || d > backoffMax+backoffMax/4 {
			t.Fatalf("step %d: backoff %v out of range", i, d)
		}
	}
	if b.current != backoffMax {
		t.Errorf("current = %v after many steps, want %v", b.current, backoffMax)
	}
	b.reset()
	if b.current != backoffInitial {
		t.Errorf("current = %v after reset, want %v", b.current, backoffInitial)
	}
}
