// Package sdk is the server half of the plugin framework. Plugin binaries
// construct a Plugin, register the handlers for the contracts they serve and
// call Start; the sdk takes care of listening, advertising the connection
// location on stdout, idle shutdown and signal handling.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MTLaboratory/MTSFV/plugin/manager/endpoints"
	"github.com/MTLaboratory/MTSFV/plugin/manager/registries/plugins"
	"github.com/MTLaboratory/MTSFV/plugin/manager/types"
)

// Plugin contains configuration for a single plugin and further details for
// life-cycle management: the server running the plugin, the handlers serving
// functionality, and idle tracking. If the server is not processing requests
// and receives no new ones, it shuts itself down after the configured idle
// timeout. Any new request resets the timer.
type Plugin struct {
	Config types.Config

	handlers      []endpoints.Handler
	server        *http.Server
	interrupt     chan bool
	workerCounter atomic.Int64
	location      string
	output        io.Writer
	baseCtx       context.Context
	// must log to stderr; stdout is reserved for the location line.
	logger slog.Logger
}

// NewPlugin creates a new plugin. After creation, call RegisterHandlers to
// register the handlers responsible for this plugin's contracts, then Start.
// Takes an output device to print the connection location to, so that the
// manager can pick it up.
func NewPlugin(ctx context.Context, logger *slog.Logger, conf types.Config, output io.Writer) *Plugin {
	return &Plugin{
		Config:    conf,
		interrupt: make(chan bool, 1), // to not block any new work coming in
		output:    output,
		baseCtx:   ctx, // base context lets graceful shutdown outlive the triggering request
		logger:    *logger,
	}
}

func (p *Plugin) startIdleChecker(ctx context.Context) {
	interval := time.Hour
	if p.Config.IdleTimeout != nil {
		interval = *p.Config.IdleTimeout
	}

	timer := time.NewTimer(interval)

	for {
		select {
		case <-timer.C:
			timer.Stop()

			if err := p.GracefulShutdown(ctx); err != nil {
				p.logger.ErrorContext(ctx, "failed to gracefully shutdown plugin", "error", err)
			}

			p.logger.InfoContext(ctx, "idle check timer expired for plugin", "id", p.Config.ID)
			return
		case working := <-p.interrupt:
			if !working && p.workerCounter.Load() == 0 {
				// no longer working, start the idle timeout
				timer.Stop()
				timer.Reset(interval)
			} else {
				// we received work, stop the timer.
				timer.Stop()
			}
		}
	}
}

// StartWork signals the idle checker that a request is in flight.
func (p *Plugin) StartWork() {
	p.interrupt <- true
	p.workerCounter.Add(1)
}

// StopWork signals the idle checker that a request has finished.
func (p *Plugin) StopWork() {
	p.interrupt <- false
	p.workerCounter.Add(-1)
}

// Start starts the plugin and sets up a graceful shutdown catch for
// interrupts. The context here is created in the plugin binary.
func (p *Plugin) Start(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func(ctx context.Context) {
		sig := <-sigs

		p.logger.InfoContext(ctx, "received signal, shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.GracefulShutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "error shutting down plugin", "error", err)
		}
	}(ctx)

	return p.listen(ctx)
}

// Healthz answers the readiness poll of the manager.
func (p *Plugin) Healthz(w http.ResponseWriter, r *http.Request) {
	p.StartWork()
	defer p.StopWork()

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	plugins.NewError(
		errors.New(
			"this endpoint may only be called with either HEAD or GET method"),
		http.StatusMethodNotAllowed).
		Write(w)
}

// listen starts listening for connections from the plugin manager.
func (p *Plugin) listen(ctx context.Context) error {
	loc, err := p.determineLocation()
	if err != nil {
		return fmt.Errorf("could not determine location: %w", err)
	}
	p.location = loc

	conn, err := net.Listen(string(p.Config.Type), loc)
	if err != nil {
		return fmt.Errorf("failed to open plugin listener: %w", err)
	}

	m := http.NewServeMux()
	for _, h := range p.handlers {
		m.HandleFunc(h.Location, h.Handler)
	}

	m.HandleFunc("/shutdown", p.Shutdown)
	m.HandleFunc("/healthz", p.Healthz)

	server := &http.Server{
		Handler:           m,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	go p.startIdleChecker(ctx)

	p.server = server

	// output the location before starting the server
	var schemedLocation string
	switch p.Config.Type {
	case types.TCP:
		schemedLocation = loc // http is already included in tcp output
	case types.Socket:
		schemedLocation = "http+unix://" + loc
	}

	if _, err := fmt.Fprintln(p.output, schemedLocation); err != nil {
		return fmt.Errorf("failed to write location to output writer: %w", err)
	}

	return server.Serve(conn)
}

func (p *Plugin) determineLocation() (_ string, err error) {
	switch p.Config.Type {
	case types.Socket:
		loc := "/tmp/" + p.Config.ID + "-plugin.socket"
		if _, err := os.Stat(loc); err == nil {
			return "", fmt.Errorf("plugin location already exists: %s", loc)
		}

		return loc, nil
	case types.TCP:
		// Listen `:0` hands back a random free port. The throwaway listener
		// is closed immediately and a purpose listener opened on the
		// specific address.
		loc, err := net.Listen("tcp", ":0") //nolint: gosec // G102: only does it temporarily to find an empty address
		if err != nil {
			return "", fmt.Errorf("failed to start tcp listener: %w", err)
		}

		defer func() {
			err = errors.Join(err, loc.Close())
		}()

		return loc.Addr().String(), nil
	}

	return "", fmt.Errorf("unknown plugin type: %s", p.Config.Type)
}

// GracefulShutdown stops the server and, for socket connections, removes the
// created socket file.
func (p *Plugin) GracefulShutdown(ctx context.Context) error {
	p.logger.InfoContext(ctx, "gracefully shutting down plugin", "id", p.Config.ID)
	// Server closed errors race with the listener and are not failures.
	if err := p.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	switch p.Config.Type {
	case types.Socket:
		p.logger.InfoContext(ctx, "removing socket", "location", p.location)
		if err := os.Remove(p.location); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	case types.TCP:
		// nothing to clean up
	}

	return nil
}

// RegisterHandlers adds contract handlers to the plugin's mux, wrapping each
// so the idle checker sees the request traffic.
func (p *Plugin) RegisterHandlers(handlers ...endpoints.Handler) error {
	for _, h := range handlers {
		if h.Handler == nil {
			return fmt.Errorf("handler for %s is required", h.Location)
		}

		h.Handler = p.workerHandler(h.Handler)
		p.handlers = append(p.handlers, h)
	}

	return nil
}

func (p *Plugin) workerHandler(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.StartWork()
		defer p.StopWork()

		h(w, r)
	}
}

// Shutdown serves the /shutdown endpoint. It deliberately uses the base
// context from plugin creation instead of the request context; the request
// context is cancelled mid-shutdown and would abort the drain.
func (p *Plugin) Shutdown(w http.ResponseWriter, _ *http.Request) {
	p.logger.InfoContext(p.baseCtx, "shutting down plugin", "id", p.Config.ID)
	w.WriteHeader(http.StatusOK)
	if err := p.GracefulShutdown(p.baseCtx); err != nil {
		p.logger.ErrorContext(p.baseCtx, "error shutting down plugin", "error", err)
	}
}
