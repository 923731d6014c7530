package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lead-intake/pkg/catalog"
	"lead-intake/pkg/config"
	"lead-intake/pkg/logger"
	"lead-intake/pkg/server"
	"lead-intake/pkg/services"
	"lead-intake/pkg/telemetry"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lead-intake",
		Short:        "Contact form intake that forwards leads to WhatsApp and email",
		SilenceUsage: true,
	}
	serveCmd := newServeCmd()
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd, newPreviewCmd(), newCatalogCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			if port != "" {
				cfg.Port = port
			}
			logger.Init(cfg.LogLevel)
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing)
			if err != nil {
				return err
			}
			defer func() { _ = shutdownTracing(context.Background()) }()

			handler, err := server.New(cfg)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Server starting on port %s", cfg.Port)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("error starting server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Validate a lead JSON and print what would be sent, without sending it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			logger.Init("error")

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			dec := json.NewDecoder(in)
			dec.UseNumber()
			raw := map[string]any{}
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("error parsing lead JSON: %w", err)
			}

			lead, err := services.NewNormalizer(cfg.Validation).Normalize(raw)
			if err != nil {
				return err
			}

			svc, err := server.NewLeadService(cfg)
			if err != nil {
				return err
			}
			preview, err := svc.Preview(lead)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(preview)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "lead JSON file, - for stdin")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the session and package catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(config.LoadConfig().CatalogFile)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPRICE")
			for _, e := range cat.Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Name, cat.FormatPrice(e.Price))
			}
			return w.Flush()
		},
	}
}
