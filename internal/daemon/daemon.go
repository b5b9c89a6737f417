// Package daemon wires the moose process: one database handle, the points
// and bank services, their dispatchers and the HTTP server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/moose-rewards/moose/internal/api"
	"github.com/moose-rewards/moose/internal/app/bank"
	"github.com/moose-rewards/moose/internal/app/dispatch"
	"github.com/moose-rewards/moose/internal/app/rewards"
	"github.com/moose-rewards/moose/internal/infra/observability"
	"github.com/moose-rewards/moose/internal/infra/sqlite"
)

// Daemon holds every long-lived component of the process.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Points *rewards.Service
	Bank   *bank.Service
	Views  *dispatch.ViewRegistry
	Tracer *observability.Tracer

	PointsDispatcher *dispatch.Dispatcher
	BankDispatcher   *dispatch.Dispatcher

	logger *slog.Logger
}

// New opens the database and builds services and dispatchers from cfg.
func New(cfg Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = NewLogger(cfg.Log, os.Stderr)
	}

	dir := cfg.DatabaseDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sqlite.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Daemon{
		Config: cfg,
		DB:     db,
		logger: logger.With("component", "daemon"),
	}

	defPoints := rewards.DefaultConfig()
	d.Points = rewards.New(db, rewards.Config{
		Validity:      parseDuration(cfg.Points.Validity, defPoints.Validity),
		ReferralBonus: cfg.Points.ReferralBonus,
		ReferralQuota: int(cfg.Points.ReferralQuota),
		SweepInterval: parseDuration(cfg.Points.SweepInterval, defPoints.SweepInterval),
	}, logger)
	d.Bank = bank.New(db, bank.Config{PageSize: cfg.Bank.PageSize}, logger)

	d.Views = dispatch.NewViewRegistry(parseDuration(cfg.Bank.ViewTTL, 15*time.Minute))
	d.Tracer = observability.NewTracer(observability.TracerConfig{
		Enabled:  cfg.Dispatch.MaxSpans > 0,
		MaxSpans: cfg.Dispatch.MaxSpans,
	})

	dcfg := dispatch.Config{ReplyTimeout: parseDuration(cfg.Dispatch.ReplyTimeout, dispatch.DefaultConfig().ReplyTimeout)}
	if cfg.Points.Enabled {
		d.PointsDispatcher = dispatch.New(dispatch.VariantPoints, dcfg, dispatch.PointsCommands(d.Points),
			dispatch.WithTracer(d.Tracer), dispatch.WithLogger(logger))
	}
	if cfg.Bank.Enabled {
		d.BankDispatcher = dispatch.New(dispatch.VariantBank, dcfg, dispatch.BankCommands(d.Bank),
			dispatch.WithViews(d.Views), dispatch.WithTracer(d.Tracer), dispatch.WithLogger(logger))
	}
	return d, nil
}

// Dispatcher returns the dispatcher of variant, or nil when it is disabled.
func (d *Daemon) Dispatcher(variant string) *dispatch.Dispatcher {
	switch variant {
	case dispatch.VariantPoints:
		return d.PointsDispatcher
	case dispatch.VariantBank:
		return d.BankDispatcher
	}
	return nil
}

// Handler builds the HTTP handler.
func (d *Daemon) Handler() http.Handler {
	srv := api.NewServer(d.PointsDispatcher, d.BankDispatcher, d.Points, d.DB, d.logger)
	if d.Config.API.Metrics {
		srv.EnableMetrics()
	}
	srv.SetTracer(d.Tracer)
	srv.SetRequestTimeout(parseDuration(d.Config.API.RequestTimeout, 30*time.Second))
	return srv.Handler()
}

// Serve runs the HTTP server and the background loops until ctx is
// cancelled, then shuts down gracefully.
func (d *Daemon) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.Config.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.Config.Addr(), err)
	}
	return d.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (d *Daemon) ServeListener(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.PointsDispatcher != nil {
		go d.Points.RunSweeper(ctx)
	}
	go d.pruneViews(ctx)

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("moose listening", "addr", ln.Addr().String(),
			"points", d.PointsDispatcher != nil, "bank", d.BankDispatcher != nil)
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	d.logger.Info("moose stopped")
	return nil
}

// pruneViews drops idle statement views once a minute.
func (d *Daemon) pruneViews(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Views.Prune()
		}
	}
}

// Close releases the database.
func (d *Daemon) Close() error {
	return d.DB.Close()
}
