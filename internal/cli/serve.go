package cli

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/johnbchron/kith/internal/carddav"
	"github.com/johnbchron/kith/internal/config"
	"github.com/johnbchron/kith/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the CardDAV server",
		Long: `Open the SQLite store named in the config file and serve the CardDAV
protocol over HTTP until interrupted.

Example:
  kith serve --config /etc/kith/config.toml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "config.toml", "path to TOML config file")

	return cmd
}

func runServe(opts *ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.StorePath, err)
	}
	defer st.Close()

	srv := carddav.NewServer(st, carddav.Options{
		BaseURL:     cfg.BaseURL,
		Addressbook: cfg.Addressbook,
		Credentials: carddav.Credentials{
			Username:     cfg.AuthUsername,
			PasswordHash: cfg.AuthPasswordHash,
		},
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	slog.Info("listening", "addr", addr, "base_url", cfg.BaseURL, "store", cfg.StorePath)

	if err := http.ListenAndServe(addr, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
