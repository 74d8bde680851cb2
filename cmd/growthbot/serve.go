package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/growth.report/internal/api"
	"github.com/banshee-data/growth.report/internal/config"
	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/jobs"
	"github.com/banshee-data/growth.report/internal/timeutil"
)

const chartPruneInterval = time.Hour

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat webhook and its workers",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().String("listen", ":8080", "listen address")
	cmd.Flags().String("db", "", "SQLite session database (default: in memory)")
	cmd.Flags().String("queue", config.QueueMemory, "job queue: memory or amqp")
	cmd.Flags().String("chart-dir", "", "directory for rendered charts")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, devMode)
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := a.openQueue()
	if err != nil {
		return err
	}
	defer q.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// workers
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		if cfg.GetQueue() == config.QueueAMQP {
			err = runAMQPWorker(ctx, cfg, a.processor.Handle)
		} else {
			err = q.Consume(ctx, a.processor.Handle)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("job consumer stopped: %v", err)
		}
		log.Print("worker routine terminated")
	}()

	reaper := growth.NewSessionReaper(a.store, cfg.GetSessionTTL(), timeutil.RealClock{})
	reaper.Start()
	defer reaper.Stop()

	if ttl := cfg.GetSessionTTL(); ttl > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pruneCharts(ctx, a.charts, ttl)
		}()
	}

	server := api.NewServer(q, a.processor)
	if a.db != nil {
		server.AdminRoutes = a.db.AttachAdminRoutes
	}
	mux, err := server.ServeMux()
	if err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		srv := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
	return nil
}

// pruneCharts removes chart files older than maxAge until ctx is done.
func pruneCharts(ctx context.Context, charts *jobs.ChartStore, maxAge time.Duration) {
	timeutil.Every(ctx, charts.Clock, chartPruneInterval, func(time.Time) {
		n, err := charts.Prune(maxAge)
		if err != nil {
			log.Printf("chart prune error: %v", err)
		} else if n > 0 {
			log.Printf("pruned %d charts older than %s", n, maxAge)
		}
	})
}
