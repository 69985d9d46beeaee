package fetchers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/parsers/cloudarmor"
)

// Circuit breaker defaults for the sheet host.
const (
	sheetBreakerName        = "sheet-fetch"
	sheetBreakerMaxRequests = 1
	sheetBreakerInterval    = time.Minute
	sheetBreakerTimeout     = 30 * time.Second
	sheetBreakerThreshold   = 5
	maxRedirects            = 5
)

// SheetConfig configures the sheet fetcher.
type SheetConfig struct {
	Timeout  time.Duration
	MaxBytes int64

	// AllowPrivateHosts disables the internal-address guard. Tests and
	// local development only.
	AllowPrivateHosts bool
}

// SheetFetcher downloads a published Google Sheet as CSV. Calls go through a
// circuit breaker so a failing sheet host is not hammered by refreshes.
type SheetFetcher struct {
	client   *resty.Client
	cb       *gobreaker.CircuitBreaker
	guard    urlGuard
	maxBytes int64
	logger   *logger.Logger
}

var _ Fetcher = (*SheetFetcher)(nil)

// NewSheetFetcher creates a sheet fetcher.
func NewSheetFetcher(cfg SheetConfig, log *logger.Logger) *SheetFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 32 << 20
	}
	log = log.With("component", "sheet_fetcher")
	guard := urlGuard{allowPrivate: cfg.AllowPrivateHosts}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   guard.control,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	client := resty.New().
		SetTransport(transport).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "text/csv,text/plain,*/*").
		SetHeader("Cache-Control", "no-store").
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			_, err := guard.validate(req.URL.String())
			return err
		}))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        sheetBreakerName,
		MaxRequests: sheetBreakerMaxRequests,
		Interval:    sheetBreakerInterval,
		Timeout:     sheetBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= sheetBreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isUpstreamFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				log.Warn("circuit breaker opened", "cb_name", name, "from", from.String())
			case gobreaker.StateHalfOpen:
				log.Info("circuit breaker half-open", "cb_name", name)
			case gobreaker.StateClosed:
				log.Info("circuit breaker closed", "cb_name", name)
			}
		},
	})

	return &SheetFetcher{
		client:   client,
		cb:       cb,
		guard:    guard,
		maxBytes: cfg.MaxBytes,
		logger:   log,
	}
}

// Fetch rewrites sheetURL to its CSV export form and downloads it.
//
// 401 and 403 map to cloudarmor.ErrAccessDenied and an HTML body maps to
// cloudarmor.ErrHTMLResponse. Only 5xx, 429 and transport failures count
// against the circuit breaker.
func (f *SheetFetcher) Fetch(ctx context.Context, sheetURL string) (*Result, error) {
	csvURL := cloudarmor.ToCSVURL(sheetURL)
	if _, err := f.guard.validate(csvURL); err != nil {
		return nil, err
	}

	out, err := f.cb.Execute(func() (any, error) {
		return f.get(ctx, csvURL)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	if err != nil {
		return nil, err
	}
	return out.(*Result), nil
}

func (f *SheetFetcher) get(ctx context.Context, csvURL string) (*Result, error) {
	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(csvURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	status := resp.StatusCode()
	f.logger.Debug("sheet fetched",
		"url", csvURL,
		"status", status,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("%w (HTTP %d)", cloudarmor.ErrAccessDenied, status)
	case status != http.StatusOK:
		return nil, &StatusError{StatusCode: status}
	}

	data, err := readLimited(body, f.maxBytes)
	if err != nil {
		return nil, err
	}

	if mt, _, _ := mime.ParseMediaType(resp.Header().Get("Content-Type")); mt == "text/html" || cloudarmor.IsHTML(data) {
		return nil, cloudarmor.ErrHTMLResponse
	}

	return &Result{
		Body:      data,
		Location:  csvURL,
		ETag:      resp.Header().Get("ETag"),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// readLimited reads at most limit bytes and fails with ErrTooLarge beyond.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

// isUpstreamFault reports whether err says the upstream is unhealthy rather
// than that this particular request was bad.
func isUpstreamFault(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrBlockedURL),
		errors.Is(err, ErrTooLarge),
		errors.Is(err, cloudarmor.ErrAccessDenied),
		errors.Is(err, cloudarmor.ErrHTMLResponse):
		return false
	}
	return true
}
