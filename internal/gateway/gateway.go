// ABOUTME: Gateway orchestrator wiring the webhook HTTP server to all components
// ABOUTME: Manages session store, task registry, history, and shutdown lifecycle

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/line-gateway/internal/config"
	"github.com/2389/line-gateway/internal/dedupe"
	"github.com/2389/line-gateway/internal/engine"
	"github.com/2389/line-gateway/internal/history"
	"github.com/2389/line-gateway/internal/ingest"
	"github.com/2389/line-gateway/internal/line"
	"github.com/2389/line-gateway/internal/router"
	"github.com/2389/line-gateway/internal/session"
	"github.com/2389/line-gateway/internal/signature"
	"github.com/2389/line-gateway/internal/task"
)

// maxWebhookBody caps the size of a webhook delivery we will read.
const maxWebhookBody = 1 << 20

// Gateway orchestrates the line-gateway server components. It owns the
// HTTP server for the webhook plus health endpoints and the stores the
// router depends on.
type Gateway struct {
	config     *config.Config
	sessions   *session.Store
	tasks      *task.Registry
	history    *history.Store // nil when no database path is configured
	router     *router.Router
	httpServer *http.Server
	logger     *slog.Logger

	// dedupe skips redelivered webhook events
	dedupe *dedupe.Cache
}

// initHistory opens the research history store, or returns nil when no
// database path is configured. The /history command then reports no
// records instead of failing.
func initHistory(cfg *config.Config, logger *slog.Logger) (*history.Store, error) {
	if cfg.Database.Path == "" {
		logger.Warn("database.path not set - research history disabled")
		return nil, nil
	}
	hist, err := history.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing history store: %w", err)
	}
	return hist, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	sessions := session.NewStore(cfg.Sessions.TTL, cfg.Sessions.SweepInterval, logger)
	eng := engine.NewHTTPEngine(cfg.Engine.BaseURL, cfg.Engine.Timeout)
	tasks := task.NewRegistry(eng, cfg.Tasks.TTL, cfg.Sessions.SweepInterval, logger)

	hist, err := initHistory(cfg, logger)
	if err != nil {
		sessions.Close()
		tasks.Close()
		return nil, err
	}
	var histLog router.HistoryLog
	if hist != nil {
		histLog = hist
	}

	var ingestor ingest.Processor
	if cfg.Ingest.BaseURL != "" {
		ingestor = ingest.NewHTTPProcessor(cfg.Ingest.BaseURL)
	} else {
		logger.Warn("ingest.base_url not set - file ingestion disabled")
	}

	lineClient := line.NewClient(cfg.Line.APIBase, cfg.Line.ChannelAccessToken)
	rt := router.New(sessions, tasks, lineClient, ingestor, histLog, logger)

	g := &Gateway{
		config:   cfg,
		sessions: sessions,
		tasks:    tasks,
		history:  hist,
		router:   rt,
		logger:   logger.With("component", "gateway"),
		dedupe:   dedupe.New(5*time.Minute, 100_000), // TTL 5min, max 100k entries
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", g.handleRoot)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/webhook", g.handleWebhook)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := g.startServer()
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// startServer starts the HTTP server in a goroutine, returning its error channel.
func (g *Gateway) startServer() chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.sessions.Close()
	g.tasks.Close()
	g.dedupe.Close()
	if g.history != nil {
		errs = appendCloseError(errs, "history close", g.history.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleWebhook receives webhook deliveries from the LINE platform,
// authenticates them, and dispatches each event in the batch. The
// platform retries non-200 responses, so event handling failures never
// change the status code; only transport-level problems do.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if !g.config.Line.Configured() {
		g.logger.Warn("webhook received but LINE credentials are not configured")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "LINE bot not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}

	if !signature.Verify(body, r.Header.Get("X-Line-Signature"), g.config.Line.ChannelSecret) {
		g.logger.Warn("webhook signature verification failed")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	delivery, err := line.ParseWebhookBody(body)
	if err != nil {
		g.logger.Warn("malformed webhook body", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
		return
	}

	for _, ev := range delivery.Events {
		if ev.WebhookEventID != "" && g.dedupe.CheckAndMark(ev.WebhookEventID) {
			g.logger.Info("skipping redelivered event", "event_id", ev.WebhookEventID)
			continue
		}
		g.dispatch(r.Context(), ev)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// dispatch routes one event, containing any handler panic so one bad
// event cannot take down the delivery batch or the server.
func (g *Gateway) dispatch(ctx context.Context, ev line.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("panic handling event", "type", ev.Type, "panic", rec)
		}
	}()
	g.router.Route(ctx, ev)
}

// handleRoot reports basic service identity.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "line-gateway",
		"status":  "running",
	})
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "healthy",
		"line_configured": fmt.Sprintf("%t", g.config.Line.Configured()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
