package cli

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

	"github.com/adslot/leasekeeper/internal/journal"
	"github.com/adslot/leasekeeper/pkg/metrics"
)

var metricsAddr string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Expose lease metrics",
}

var metricsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve metrics replayed from the journal on /metrics",
	Long: `Replay the event journal into a Prometheus registry and serve it on
/metrics until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cmd, cfg)

		addr := metricsAddr
		if addr == "" {
			addr = cfg.Metrics.Listen
		}
		reg := metrics.NewRegistry()
		replayed, err := replayJournal(reg, cfg.Journal.Path)
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()
		log.Info("serving metrics", map[string]any{"addr": addr, "replayed": replayed})
		fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on http://%s/metrics\n", addr)

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	},
}

// replayJournal feeds every journaled event to reg. A missing or disabled
// journal replays nothing.
func replayJournal(reg *metrics.Registry, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	records, err := journal.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	for _, r := range records {
		reg.Emit(r.Event)
	}
	return len(records), nil
}

func init() {
	metricsServeCmd.Flags().StringVar(&metricsAddr, "addr", "", "listen address (default metrics.listen)")
	metricsCmd.AddCommand(metricsServeCmd)
	rootCmd.AddCommand(metricsCmd)
}
