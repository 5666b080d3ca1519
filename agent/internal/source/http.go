package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bitdiag/bitdiag/agent/internal/config"
)

type httpReader struct {
	src    config.Source
	client *http.Client
}

// Read fetches src.Endpoint and treats the body as record text.
func (r *httpReader) Read(ctx context.Context) (*ReadResult, error) {
	res := newResult(r.src)

	body, err := fetch(ctx, r.client, r.src.Endpoint, "text/plain")
	if err != nil {
		res.Err = fmt.Errorf("http source %q: %w", r.src.ID, err)
		slog.Warn("source: http fetch failed", "source", r.src.ID, "err", err)
		return res, nil
	}
	res.Text = string(body)
	return res, nil
}
