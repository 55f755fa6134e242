package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rvndrmann/mannmediaagency-sub000/server"
)

// Run starts the HTTP service and blocks until SIGINT or SIGTERM.
func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		cctx, cancel := shutdownContext(cfg)
		defer cancel()

		if err := a.close(cctx); err != nil {
			a.logger.Error("app.close.error", "error", err.Error())
		}
	}()

	sys := a.system

	srv := server.New(sys.Registry(), sys.Executor(), func(o *server.Options) {
		o.Sessions = sys.Sessions()
		o.Credits = sys.Credits()
		o.DefaultCredits = cfg.Runner.DefaultCredits
		o.Bus = a.bus
		o.RunnerOptions = sys.RunnerOptions()
		o.StartAgent = a.start
		o.ServiceName = cfg.Telemetry.ServiceName
		o.Logger = a.logger
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		a.logger.Info("server.start", "addr", cfg.Server.Addr)

		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	grp.Go(func() error {
		<-gctx.Done()
		a.logger.Info("server.shutdown")

		sctx, cancel := shutdownContext(cfg)
		defer cancel()

		return httpSrv.Shutdown(sctx)
	})

	return grp.Wait()
}
