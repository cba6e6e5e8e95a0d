package main

import (
	"os"
	"os/signal"
	"syscall"

	"briefer/internal/api"
	"briefer/internal/config"
	"briefer/internal/logging"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the brief API over HTTP",
		Long: `Starts the HTTP API (POST /brief, GET /history/{user}, GET /healthz).
The config file is watched; log level changes apply without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.logUsage()

			w, err := config.NewWatcher(configPath, func(next *config.Config) {
				level := next.Logging.Level
				if verbose {
					level = "debug"
				}
				if err := logging.SetLevel(level); err != nil {
					logging.Get(logging.CategoryBoot).Warn("config reload: %v", err)
					return
				}
				logging.Boot("config reloaded: log level %s", logging.Level())
			})
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				logging.Get(logging.CategoryBoot).Warn("config watcher disabled: %v", err)
			} else {
				defer w.Stop()
			}

			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := api.NewServer(api.Config{
				Addr:         addr,
				ReadTimeout:  cfg.GetReadTimeout(),
				WriteTimeout: cfg.GetWriteTimeout(),
			}, a.pipeline, a.history)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
