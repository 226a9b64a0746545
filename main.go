package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/config"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	baseLogger, err := zaplogger.New(
		zaplogger.Options{Level: cfg.LogLevel, File: cfg.LogFile},
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
		observability.F("role", string(cfg.Role)),
	)
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Sync() }()

	oteltrace.InstallPropagator()
	tel := telemetry.New(
		oteltrace.New(cfg.ServiceName),
		baseLogger,
		prometrics.Instruments(prometrics.New(prometheus.DefaultRegisterer, "")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := assemble(ctx, cfg, tel)
	if err != nil {
		baseLogger.Error("startup_failed", observability.F("error", err.Error()))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range p.servers {
		g.Go(func() error {
			baseLogger.Info("http_server_start",
				observability.F("addr", srv.Addr),
				observability.F("server", srv.name),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", srv.name, err)
			}
			return nil
		})
	}
	if p.events.start != nil {
		p.events.start(gctx)
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range p.servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				baseLogger.Error("http_server_shutdown_error",
					observability.F("server", srv.name),
					observability.F("error", err.Error()),
				)
				errs = append(errs, err)
			}
		}
		p.close(shutdownCtx)
		baseLogger.Info("http_server_stopped")
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		baseLogger.Error("process_failed", observability.F("error", err.Error()))
		return err
	}
	return nil
}

// namedServer keeps the role name next to its server for logs.
type namedServer struct {
	*http.Server
	name string
}

func newServer(name, addr string, h http.Handler) namedServer {
	return namedServer{
		name: name,
		Server: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}
