package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/growth.report/internal/config"
	"github.com/banshee-data/growth.report/internal/jobs"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume chat jobs from AMQP without serving HTTP",
		Args:  cobra.NoArgs,
		RunE:  runWorkerCmd,
	}
	cmd.Flags().String("db", "", "SQLite session database")
	cmd.Flags().String("chart-dir", "", "directory for rendered charts")
	return cmd
}

func runWorkerCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.GetAMQPURL() == "" {
		return errors.New("worker needs amqp_url or " + config.EnvAMQPURL)
	}
	if cfg.GetDBPath() == "" {
		log.Print("warning: worker without db_path keeps sessions in memory; they are not shared with other workers")
	}

	a, err := newApp(cfg, devMode)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runAMQPWorker(ctx, cfg, a.processor.Handle); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("worker stopped")
	return nil
}

// runAMQPWorker consumes until ctx is done, redialling the broker after
// connection loss.
func runAMQPWorker(ctx context.Context, cfg *config.ServerConfig, h jobs.Handler) error {
	for {
		q, err := jobs.DialAMQP(cfg.GetAMQPURL(), cfg.GetAMQPQueue(), cfg.GetWorkers())
		if err != nil {
			log.Printf("amqp dial failed: %v; retrying in %s", err, jobs.ReconnectDelay)
		} else {
			log.Printf("consuming %s with %d workers", cfg.GetAMQPQueue(), cfg.GetWorkers())
			err = q.Consume(ctx, h)
			q.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("amqp consumer stopped: %v; reconnecting in %s", err, jobs.ReconnectDelay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jobs.ReconnectDelay):
		}
	}
}
