// Command demo-backend runs one or more ShopNow shop servers for exercising
// the load balancer locally.
//
// Usage:
//
//	go run ./cmd/demo-backend --ports 3001,3002,3003
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/shopnow-lb/pkg/logger"
)

func main() {
	ports := flag.IntSlice("ports", []int{3001, 3002, 3003}, "ports to listen on, one shop server per port")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	log := logger.New(*level, false, "dev")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, port := range *ports {
		id := fmt.Sprintf("Server-%d", port)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newShop(id, log).routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info("Shop server online", slog.String("server", id), slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s: %w", id, err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Shop servers stopped", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Shop servers stopped")
}
