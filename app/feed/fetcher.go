package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	maxRetryAfter  = 5 * time.Second
	retryBaseDelay = time.Second
	maxFeedBytes   = 10 << 20
	maxRedirects   = 10
)

// Fetcher downloads and parses one source feed.
type Fetcher struct {
	client    *http.Client
	parser    *Parser
	userAgent string
	retries   int

	validate func(string) error
	checkIP  func(net.IP) error
	sleep    func(context.Context, time.Duration) error
}

// NewFetcher builds a fetcher whose client re-checks every redirect target
// and every dialed address, so a public feed cannot bounce the request into
// a private network.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	f := &Fetcher{
		parser:    NewParser(),
		userAgent: userAgent,
		retries:   1,
		validate:  ValidateURLForFetch,
		checkIP:   ValidateIPForFetch,
		sleep:     sleepContext,
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control:   f.controlDial,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	f.client = &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: f.checkRedirect,
	}
	return f
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after too many redirects")
	}
	return f.validate(req.URL.String())
}

// controlDial runs after DNS resolution with the concrete ip:port.
func (f *Fetcher) controlDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: address %q", ErrDisallowedURL, address)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%w: address %q", ErrDisallowedURL, address)
	}
	return f.checkIP(ip)
}

// Fetch returns up to maxItems normalized entries from the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string, maxItems int) ([]Entry, error) {
	if err := f.validate(url); err != nil {
		return nil, err
	}

	data, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}

	entries, err := f.parser.Run(data, maxItems)
	if err != nil {
		return nil, err
	}

	slog.Debug("Feed fetched", "url", url, "entries", len(entries))
	return entries, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch feed: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read feed body: %w", err)
			}
			return data, nil
		}

		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable
		if !retryable || attempt >= f.retries {
			return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
		}

		delay := retryDelay(resp.Header.Get("Retry-After"), attempt+1)
		slog.Debug("Retrying feed fetch", "url", url, "status", resp.StatusCode, "delay", delay)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// retryDelay honours a Retry-After value in seconds, capped, and otherwise
// backs off linearly with the attempt number.
func retryDelay(header string, attempt int) time.Duration {
	if seconds, err := strconv.ParseFloat(strings.TrimSpace(header), 64); err == nil && seconds >= 0 {
		return min(time.Duration(seconds*float64(time.Second)), maxRetryAfter)
	}
	return retryBaseDelay * time.Duration(attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
