package devproxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Proxy is a development-only reverse proxy that makes an identity provider
// running in a sibling container reachable on the same host/port the browser
// uses. Inside the server's container "localhost" is just the container, so
// without this shim the redirect URLs the browser can follow would be
// unreachable for the server's own discovery and token calls.
type Proxy struct {
	addr   string
	target *url.URL
	logger *zap.Logger
}

// New creates a proxy listening on addr and forwarding to target
func New(addr, target string, logger *zap.Logger) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy target %s: %w", target, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy target %s must be an absolute URL", target)
	}
	return &Proxy{addr: addr, target: u, logger: logger}, nil
}

// Start serves the proxy until the context is cancelled
func (p *Proxy) Start(ctx context.Context) error {
	proxy := httputil.NewSingleHostReverseProxy(p.target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.Warn("devproxy_upstream_error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		w.WriteHeader(http.StatusBadGateway)
	}

	srv := &http.Server{
		Addr:         p.addr,
		Handler:      proxy,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("devproxy_listening",
			zap.String("addr", p.addr),
			zap.String("target", p.target.String()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
