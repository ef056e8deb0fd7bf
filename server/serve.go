package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/sqlstore"
	"github.com/janelia-flyem/catvol/storage"

	// engines available to [store] engine
	_ "github.com/janelia-flyem/catvol/storage/badger"
	_ "github.com/janelia-flyem/catvol/storage/blobstore"
)

const (
	// ReadTimeout is the max time for reading a request including its body.
	ReadTimeout = 60 * time.Second

	// WriteTimeout bounds a response, including a full volume build.
	WriteTimeout = 10 * time.Minute

	shutdownGrace = 30 * time.Second
)

// Serve opens the stores given by the configuration and serves the HTTP API until
// the process receives SIGINT or SIGTERM.
func Serve(cfg *Config) error {
	cfg.Logging.SetLogger()
	defer catvol.Shutdown()

	if err := cfg.Kafka.Initialize(cfg.Host()); err != nil {
		return fmt.Errorf("could not initialize kafka: %v", err)
	}
	defer storage.KafkaShutdown()

	kv, err := storage.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer kv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	db, err := sqlstore.Open(ctx, sqlstore.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	cancel()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := NewService(db, kv, Options{
		Workers:         cfg.Volume.Workers,
		TileCacheBytes:  cfg.TileCacheBytes(),
		BuildsPerMinute: cfg.Ratelimit.BuildPerMinute,
		Workspace:       cfg.Classification.Workspace,
		CorsDomains:     cfg.Server.CorsDomains,
		Host:            cfg.Host(),
		Note:            cfg.Server.Note,
	})
	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddress,
		Handler:      svc,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		catvol.Infof("Web server listening at %s (%s)\n", cfg.Server.HTTPAddress, cfg.Host())
		errc <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)
	select {
	case err := <-errc:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case sig := <-stop:
		catvol.Infof("Received signal %v, shutting down web server.\n", sig)
	}
	ctx, cancel = context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}
