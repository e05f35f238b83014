// Package website fetches a company's homepage and extracts social profile
// links and a short research brief.
package website

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/config"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; LeadEnricher/1.0)"
	defaultMaxBody   = 2 << 20
)

// Result is what a homepage yields.
type Result struct {
	URL         string
	Title       string
	Description string
	Links       Links
	Brief       string
}

// FetchError is a homepage that could not be retrieved. Reason is short and
// human-readable ("Timeout", "SSL Error", "HTTP 404").
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("website: fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves homepages over plain HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewFetcher creates a Fetcher from website settings.
func NewFetcher(cfg config.WebsiteConfig) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	f := &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.maxBody <= 0 {
		f.maxBody = defaultMaxBody
	}
	return f
}

// WithHTTPClient replaces the underlying client.
func (f *Fetcher) WithHTTPClient(hc *http.Client) *Fetcher {
	f.client = hc
	return f
}

// Enrich fetches rawURL and extracts links and a brief for companyName.
// Retrieval failures are returned as *FetchError.
func (f *Fetcher) Enrich(ctx context.Context, rawURL, companyName string) (*Result, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return nil, &FetchError{URL: rawURL, Reason: "No website URL"}
	}

	body, err := f.fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	res, err := Extract(body, companyName)
	if err != nil {
		return nil, eris.Wrap(err, "website: parse html")
	}
	res.URL = target
	return res, nil
}

func (f *Fetcher) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Reason: "Invalid URL", Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Reason: reason(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, &FetchError{URL: target, Reason: reason(err), Err: err}
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, &FetchError{URL: target, Reason: "Blocked (" + string(kind) + ")"}
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{URL: target, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return body, nil
}

// reason maps transport errors to the short labels written to the dataset.
func reason(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) || errors.As(err, &recordErr) {
		return "SSL Error"
	}

	return "Request failed: " + truncate(err.Error(), 50)
}

// NormalizeURL trims the value of a website cell and adds https:// when no
// scheme is present. It returns "" for blank input.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(raw), "http") {
		raw = "https://" + strings.TrimLeft(raw, "/")
	}
	return raw
}
