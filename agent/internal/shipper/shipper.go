package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/bitdiag/bitdiag/agent/internal/config"
	"github.com/bitdiag/bitdiag/agent/internal/source"
	"github.com/bitdiag/bitdiag/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second

	// maxBatch caps the number of reports sent in one POST.
	maxBatch = 100

	// ReportsPath is the server route reports are POSTed to.
	ReportsPath = "/api/v1/reports"
)

// Shipper buffers Reports and ships them to bitdiag-server as JSON.
// Ship() is non-blocking; when the buffer is full the oldest report is evicted.
// Run() must be called in a goroutine to drain the buffer.
type Shipper struct {
	url    string
	buf    chan *types.Report
	client *http.Client
	wait   func(ctx context.Context, d time.Duration) bool // injectable for tests
}

// New creates a Shipper using the given agent config. It fails only if the
// mTLS material in server_auth cannot be loaded.
func New(cfg config.AgentConfig) (*Shipper, error) {
	tlsCfg, err := source.TLSConfig(cfg.ServerAuth, config.TLSConfig{})
	if err != nil {
		return nil, fmt.Errorf("shipper: %w", err)
	}
	return &Shipper{
		url: strings.TrimRight(cfg.ServerEndpoint, "/") + ReportsPath,
		buf: make(chan *types.Report, cfg.BufferSize),
		client: &http.Client{
			Transport: source.NewAuthTransport(&http.Transport{TLSClientConfig: tlsCfg}, cfg.ServerAuth),
			Timeout:   sendTimeout,
		},
		wait: sleepCtx,
	}, nil
}

// Ship enqueues r. If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(r *types.Report) {
	select {
	case s.buf <- r:
	default:
		select {
		case <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest report",
				"source", r.SourceID, "buffer_cap", cap(s.buf))
		default:
		}
		select {
		case s.buf <- r:
		default:
		}
	}
}

// Pending returns the number of buffered reports not yet sent.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run drains the buffer, POSTing batches to the server. A batch that fails
// with a transient error is retried with exponential backoff; a batch the
// server rejects outright is discarded. Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()
	for {
		var first *types.Report
		select {
		case <-ctx.Done():
			return
		case first = <-s.buf:
		}
		batch := s.collect(first)

		for {
			err := s.send(ctx, batch)
			if err == nil {
				bo.reset()
				slog.Debug("shipper: batch delivered", "reports", len(batch))
				break
			}
			if ctx.Err() != nil {
				return
			}
			if isPermanent(err) {
				slog.Error("shipper: permanent send error, discarding batch",
					"reports", len(batch), "err", err)
				break
			}
			wait := bo.next()
			slog.Warn("shipper: send failed, will retry",
				"url", s.url, "reports", len(batch), "err", err, "retry_in", wait)
			if !s.wait(ctx, wait) {
				return
			}
		}
	}
}

// collect returns first plus whatever else is already buffered, up to maxBatch.
func (s *Shipper) collect(first *types.Report) []*types.Report {
	batch := []*types.Report{first}
	for len(batch) < maxBatch {
		select {
		case r := <-s.buf:
			batch = append(batch, r)
		default:
			return batch
		}
	}
	return batch
}

// statusError is a non-2xx response from the server.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned HTTP %d: %s", e.code, e.body)
}

// send POSTs batch as a JSON array.
func (s *Shipper) send(ctx context.Context, batch []*types.Report) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return &statusError{code: http.StatusBadRequest, body: err.Error()}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	return nil
}

// isPermanent returns true for responses that indicate the batch itself is
// unacceptable and should not be retried.
func isPermanent(err error) bool {
	se, ok := err.(*statusError)
	if !ok {
		return false
	}
	switch se.code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// sleepCtx waits for d or until ctx is done. Returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
