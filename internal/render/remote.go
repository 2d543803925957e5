package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/codestash/internal/apperr"
	"github.com/starford/codestash/internal/symbology"
)

// Remote service defaults.
const (
	DefaultRemoteBaseURL = "https://barcode.orcascan.com/"
	DefaultRemoteFormat  = "png"
	DefaultRemoteTimeout = 60 * time.Second
	DefaultMaxImageBytes = 5 << 20
)

// DefaultSelfDescribing lists remote symbologies whose rendered image already
// carries human-readable text, so no text parameter is sent.
var DefaultSelfDescribing = []string{"ean13"}

// RemoteOptions configures a Remote client. Zero values take the defaults.
type RemoteOptions struct {
	BaseURL        string
	Timeout        time.Duration
	SelfDescribing []string
	MaxImageBytes  int64
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Remote fetches images from the barcode image API for symbologies the local
// renderer does not cover.
type Remote struct {
	baseURL        string
	client         *http.Client
	selfDescribing map[string]struct{}
	maxBytes       int64
	logger         *slog.Logger
}

// NewRemote builds a client from opts.
func NewRemote(opts RemoteOptions) (*Remote, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultRemoteBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("render: parse remote base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("render: remote base url must be http(s): %s", base)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultRemoteTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	selfDescribing := opts.SelfDescribing
	if selfDescribing == nil {
		selfDescribing = DefaultSelfDescribing
	}
	set := make(map[string]struct{}, len(selfDescribing))
	for _, s := range selfDescribing {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	maxBytes := opts.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Remote{
		baseURL:        base,
		client:         client,
		selfDescribing: set,
		maxBytes:       maxBytes,
		logger:         logger,
	}, nil
}

// URL builds the request URL for payload in sym. Parameters are written in a
// fixed order: type, data, format, then text when the symbology is not
// self-describing.
func (r *Remote) URL(payload string, sym symbology.Symbology) (string, error) {
	remote, ok := symbology.RemoteName(sym)
	if !ok {
		return "", fmt.Errorf("render: remote %s: %w", sym, apperr.ErrUnsupportedSymbology)
	}
	data := url.QueryEscape(payload)

	var b strings.Builder
	b.WriteString(r.baseURL)
	if strings.Contains(r.baseURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("type=")
	b.WriteString(url.QueryEscape(remote))
	b.WriteString("&data=")
	b.WriteString(data)
	b.WriteString("&format=")
	b.WriteString(DefaultRemoteFormat)
	if _, ok := r.selfDescribing[remote]; !ok {
		b.WriteString("&text=")
		b.WriteString(data)
	}
	return b.String(), nil
}

// Render implements Renderer. Every network-level failure is reported as
// apperr.ErrTransport.
func (r *Remote) Render(ctx context.Context, payload string, sym symbology.Symbology) ([]byte, error) {
	target, err := r.URL(payload, sym)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("render: build request: %v: %w", err, apperr.ErrTransport)
	}
	req.Header.Set("Accept", ContentType)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render: fetch %s: %v: %w", sym, err, apperr.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("render: fetch %s: status %d: %w", sym, resp.StatusCode, apperr.ErrTransport)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("render: read body: %v: %w", err, apperr.ErrTransport)
	}
	if int64(len(body)) > r.maxBytes {
		return nil, fmt.Errorf("render: image exceeds %d bytes: %w", r.maxBytes, apperr.ErrTransport)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("render: empty image body: %w", apperr.ErrTransport)
	}

	r.logger.Debug("remote render fetched",
		slog.String("symbology", sym.String()),
		slog.Int("bytes", len(body)),
		slog.Duration("elapsed", time.Since(start)))
	return body, nil
}
