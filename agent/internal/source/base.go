package source

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/bitdiag/bitdiag/agent/internal/config"
)

const (
	defaultReadTimeout = 10 * time.Second

	// maxBodyBytes caps how much of an HTTP response body is read.
	maxBodyBytes = 8 << 20
)

// ReadResult is the raw output of one poll of a single source.
type ReadResult struct {
	SourceID   string
	SourceType string
	ReadAt     time.Time

	// Text holds the newline-separated records exactly as read.
	Text string

	// Err is non-nil if the read itself failed (missing file, connectivity,
	// auth, bad status). The compute engine reports such polls as unreachable.
	Err error
}

// Reader is the common interface implemented by every source type.
type Reader interface {
	Read(ctx context.Context) (*ReadResult, error)
}

// New returns the appropriate Reader for the given source configuration.
// HTTP-backed readers build their client once and reuse it across polls.
func New(src config.Source) (Reader, error) {
	switch src.Type {
	case config.TypeFile:
		return &fileReader{src: src}, nil
	case config.TypeInline:
		return &inlineReader{src: src}, nil
	case config.TypeHTTP, config.TypePrometheus:
		client, err := buildHTTPClient(src)
		if err != nil {
			return nil, fmt.Errorf("source %q: build http client: %w", src.ID, err)
		}
		if src.Type == config.TypePrometheus {
			return &promReader{src: src, client: client}, nil
		}
		return &httpReader{src: src, client: client}, nil
	default:
		return nil, fmt.Errorf("source: unsupported type %q", src.Type)
	}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.EffectiveHeader(), t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// NewAuthTransport wraps base so that every request carries the credentials
// described by auth. The shipper uses it for server_auth.
func NewAuthTransport(base http.RoundTripper, auth config.AuthConfig) http.RoundTripper {
	return &authRoundTripper{base: base, auth: auth}
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) (*http.Client, error) {
	tlsCfg, err := TLSConfig(src.Auth, src.TLS)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: NewAuthTransport(&http.Transport{TLSClientConfig: tlsCfg}, src.Auth),
		Timeout:   defaultReadTimeout,
	}, nil
}

// TLSConfig builds the client TLS settings, loading the client certificate
// and optional CA bundle when auth.Mode is "mtls".
func TLSConfig(auth config.AuthConfig, opts config.TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if auth.Mode != "mtls" {
		return tlsCfg, nil
	}

	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	tlsCfg.Certificates = []tls.Certificate{cert}

	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// fetch performs an HTTP GET to url and returns the response body.
func fetch(ctx context.Context, client *http.Client, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// newResult initialises an empty ReadResult for src.
func newResult(src config.Source) *ReadResult {
	return &ReadResult{
		SourceID:   src.ID,
		SourceType: src.Type,
		ReadAt:     time.Now().UTC(),
	}
}
