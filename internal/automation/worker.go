// Package automation drives real browser contexts for interactive
// logins. A worker allocates an isolated context on a pooled headless
// chromium, opens the platform's login page and polls its cookies
// until the success signal appears.
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/evanmtz/streampost/internal/cdp"
	"github.com/evanmtz/streampost/internal/login"
	"github.com/evanmtz/streampost/internal/platform"
	"github.com/evanmtz/streampost/internal/pool"
)

// CDPWorker implements login.Worker on top of the browser process
// pool. It holds no session state of its own; everything it learns is
// reported back through the broker.
type CDPWorker struct {
	balancer     *pool.LoadBalancer
	pollInterval time.Duration
}

// NewCDPWorker creates a worker that polls captured cookies on the
// given interval
func NewCDPWorker(balancer *pool.LoadBalancer, pollInterval time.Duration) *CDPWorker {
	return &CDPWorker{
		balancer:     balancer,
		pollInterval: pollInterval,
	}
}

// Allocate prepares an isolated browser context with the platform's
// login page open and returns a handle for watching it
func (w *CDPWorker) Allocate(ctx context.Context, sess login.Session) (login.Allocation, error) {
	cfg := sess.Platform.Config()

	process, err := w.balancer.SelectProcess()
	if err != nil {
		return nil, fmt.Errorf("no browser process available: %w", err)
	}

	client, err := process.GetClient()
	if err != nil {
		return nil, fmt.Errorf("failed to reach browser: %w", err)
	}

	contextID, err := client.CreateBrowserContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	pageID, err := client.CreateTarget(cfg.LoginURL, contextID)
	if err != nil {
		// Don't leak the context when the page fails to open
		if disposeErr := client.DisposeBrowserContext(contextID); disposeErr != nil {
			slog.Warn("failed to dispose browser context", "error", disposeErr)
		}
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}

	process.IncrementSessionCount()

	slog.Info("login context allocated",
		"session_id", sess.ID,
		"platform", sess.Platform,
		"port", process.GetPort(),
		"context_id", contextID)

	return &browserLogin{
		client:       client,
		process:      process,
		contextID:    contextID,
		pageID:       pageID,
		platform:     sess.Platform,
		pollInterval: w.pollInterval,
	}, nil
}

// browserLogin is one live login context
type browserLogin struct {
	client       *cdp.Client
	process      *pool.ManagedProcess
	contextID    string
	pageID       string
	platform     platform.Platform
	pollInterval time.Duration

	releaseOnce sync.Once
}

// LoginURL returns the page the user completes the login on
func (b *browserLogin) LoginURL() string {
	return b.platform.Config().LoginURL
}

// Watch polls the context's cookies until every success-signal cookie
// is present, then returns the platform-domain cookies as a JSON
// export payload. Returns the context's error when cancelled or the
// deadline passes.
func (b *browserLogin) Watch(ctx context.Context) (string, error) {
	cfg := b.platform.Config()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-ticker.C:
			captured, err := b.client.GetCookies(b.contextID)
			if err != nil {
				return "", fmt.Errorf("failed to read cookies: %w", err)
			}

			domainCookies := filterByDomain(captured, cfg.CookieDomain)
			if !hasAll(domainCookies, cfg.SuccessCookies) {
				continue
			}

			payload, err := json.Marshal(domainCookies)
			if err != nil {
				return "", fmt.Errorf("failed to serialize captured cookies: %w", err)
			}

			slog.Info("login success signal detected",
				"platform", b.platform,
				"cookie_count", len(domainCookies))

			return string(payload), nil
		}
	}
}

// Release tears the browser context down. Idempotent; safe to call
// whether the watch finished, failed or never ran.
func (b *browserLogin) Release() {
	b.releaseOnce.Do(func() {
		if err := b.client.CloseTarget(b.pageID); err != nil {
			slog.Debug("failed to close login page", "error", err)
		}
		if err := b.client.DisposeBrowserContext(b.contextID); err != nil {
			slog.Warn("failed to dispose browser context",
				"context_id", b.contextID,
				"error", err)
		}
		b.process.DecrementSessionCount()

		slog.Debug("login context released", "context_id", b.contextID)
	})
}

// filterByDomain keeps cookies belonging to the platform's canonical
// domain or any subdomain of it
func filterByDomain(captured []cdp.Cookie, canonical string) []cdp.Cookie {
	base := strings.TrimPrefix(canonical, ".")

	var filtered []cdp.Cookie
	for _, c := range captured {
		domain := strings.TrimPrefix(c.Domain, ".")
		if domain == base || strings.HasSuffix(domain, "."+base) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// hasAll reports whether every named cookie is present
func hasAll(captured []cdp.Cookie, names []string) bool {
	present := make(map[string]bool, len(captured))
	for _, c := range captured {
		present[c.Name] = true
	}

	for _, name := range names {
		if !present[name] {
			return false
		}
	}
	return true
}
