// Command dashboard-stub serves a fake team dashboard API for local load tests.
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

	"github.com/spf13/cobra"

	"github.com/luckeyseven/dashload/internal/logger"
	"github.com/luckeyseven/dashload/internal/stub"
)

func main() {
	cmd := &cobra.Command{
		Use:           "dashboard-stub",
		Short:         "Serve GET /api/team/{teamId}/dashboard for local load tests",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Duration("latency", 0, "Delay added to each dashboard response")
	cmd.Flags().Float64("error-rate", 0, "Fraction of dashboard requests answered with 500")
	cmd.Flags().String("log-level", "info", "Log level")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	latency, _ := cmd.Flags().GetDuration("latency")
	errorRate, _ := cmd.Flags().GetFloat64("error-rate")
	level, _ := cmd.Flags().GetString("log-level")

	logger.Init(level, "text")
	log := logger.GetLogger()

	s := stub.NewServer(stub.Config{Latency: latency, ErrorRate: errorRate})
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5*time.Second + latency,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("dashboard stub listening", "addr", addr, "latency", latency, "error_rate", errorRate)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("dashboard stub stopped", "requests", s.Requests())
	return nil
}
