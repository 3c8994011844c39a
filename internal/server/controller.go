// Package server runs the ephemeral HTTP server that exposes generated
// HTML to the PDF renderer. The renderer fetches pages over HTTP rather
// than from disk so relative image and style references resolve.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpress/internal/logfields"
)

// ErrServerStart indicates the server could not be started or never became
// ready within the readiness timeout.
var ErrServerStart = errors.New("docpress: server start failed")

// State enumerates the server session lifecycle.
type State string

const (
	StateNotStarted State = "not_started"
	StateStarting   State = "starting"
	StateReady      State = "ready"
	StateStopped    State = "stopped"
)

const healthPath = "/healthz"

// Controller owns the server session. It is the only component allowed to
// mutate the session state.
type Controller struct {
	port         int
	app          string
	rootDir      string
	readyTimeout time.Duration
	metrics      http.Handler

	mu    sync.Mutex
	state State
	srv   *http.Server
	errCh chan error
}

// NewController creates a controller serving rootDir under /<app>/ on the
// given port.
func NewController(port int, app, rootDir string, readyTimeout time.Duration) *Controller {
	return &Controller{
		port:         port,
		app:          app,
		rootDir:      rootDir,
		readyTimeout: readyTimeout,
		state:        StateNotStarted,
	}
}

// WithMetricsHandler mounts a /metrics handler alongside the file server.
func (c *Controller) WithMetricsHandler(h http.Handler) *Controller {
	c.metrics = h
	return c
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BaseURL returns the URL prefix generated documents are served under.
func (c *Controller) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d/%s", c.port, c.app)
}

// DocumentURL returns the URL for a document's generated HTML.
func (c *Controller) DocumentURL(id string) string {
	return fmt.Sprintf("%s/%s.html", c.BaseURL(), id)
}

// Start binds the listener, serves in the background and blocks until the
// health endpoint answers or the readiness timeout expires. Starting an
// already-started controller fails rather than silently reusing the
// session.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateNotStarted {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: already started (state %s)", ErrServerStart, state)
	}
	c.state = StateStarting
	c.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc(healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/"+c.app+"/", http.StripPrefix("/"+c.app+"/", http.FileServer(http.Dir(c.rootDir))))
	if c.metrics != nil {
		mux.Handle("/metrics", c.metrics)
	}

	addr := fmt.Sprintf("localhost:%d", c.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		c.setState(StateStopped)
		return fmt.Errorf("%w: listen on %s: %v", ErrServerStart, addr, err)
	}

	c.mu.Lock()
	c.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	c.errCh = make(chan error, 1)
	srv := c.srv
	c.mu.Unlock()

	go func() {
		err := srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.errCh <- err
		}
		close(c.errCh)
	}()

	if err := c.waitReady(ctx, addr); err != nil {
		_ = c.Stop(context.Background())
		return err
	}

	c.setState(StateReady)
	slog.Info("Document server ready", logfields.URL(c.BaseURL()), logfields.Path(c.rootDir))
	return nil
}

// waitReady polls the health endpoint until it answers, the server process
// fails, the context is canceled or the bounded timeout expires.
func (c *Controller) waitReady(ctx context.Context, addr string) error {
	deadline := time.NewTimer(c.readyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	url := fmt.Sprintf("http://%s%s", addr, healthPath)
	client := &http.Client{Timeout: time.Second}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrServerStart, ctx.Err())
		case err, open := <-c.errCh:
			if open && err != nil {
				return fmt.Errorf("%w: %v", ErrServerStart, err)
			}
			return fmt.Errorf("%w: server exited before becoming ready", ErrServerStart)
		case <-deadline.C:
			return fmt.Errorf("%w: not ready after %s", ErrServerStart, c.readyTimeout)
		case <-tick.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrServerStart, err)
			}
			resp, err := client.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
	}
}

// Stop shuts the server down. Stopping a controller that never started is
// a no-op; Stop is safe to call multiple times and on all exit paths.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateNotStarted || c.state == StateStopped {
		c.state = stoppedStateFor(c.state)
		c.mu.Unlock()
		return nil
	}
	srv := c.srv
	c.state = StateStopped
	c.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Debug("Document server stopped")
	return nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// stoppedStateFor keeps NotStarted controllers in NotStarted after a no-op
// Stop so they can still be started later.
func stoppedStateFor(s State) State {
	if s == StateNotStarted {
		return StateNotStarted
	}
	return StateStopped
}
