package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haniff/arena/internal/broadcast"
	"github.com/haniff/arena/internal/catalog"
	"github.com/haniff/arena/internal/config"
	"github.com/haniff/arena/internal/engine"
	"github.com/haniff/arena/internal/export"
	"github.com/haniff/arena/internal/gateway"
	"github.com/haniff/arena/internal/store"
	"github.com/haniff/arena/web/handlers"
)

var (
	dbPath string
	debug  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "AI debate orchestration server",
	Long: `arena runs turn-based debates between AI agents on any topic,
scores them with a judge agent, and streams progress in real time.

Start the server with "arena serve" and drive it over the HTTP API.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: in-memory store)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
}

func openStore() (store.Store, error) {
	if dbPath != "" {
		return store.NewSQLiteStore(dbPath)
	}
	return store.NewMemoryStore(), nil
}

// serve command - run the HTTP server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the arena server",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		config.LoadDotenv()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}
		if dbPath != "" {
			cfg.Storage = config.StorageConfig{Driver: "sqlite", Path: dbPath}
		}

		st, err := cfg.CreateStore()
		if err != nil {
			return err
		}
		defer st.Close()

		manager := engine.New(st, gateway.New(), broadcast.New())
		h := handlers.New(manager)

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		server := &http.Server{
			Addr:    addr,
			Handler: h.Routes(),
		}

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh
			slog.Info("Shutting down...")
			server.Close()
		}()

		slog.Info("Starting arena server", "url", fmt.Sprintf("http://localhost%s", addr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

// providers command - list the provider catalog
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List known providers and models",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\tMAX OUTPUT\tTIER\tRECOMMENDED")
		for _, p := range catalog.Providers() {
			for _, m := range p.Models {
				recommended := ""
				if m.Recommended {
					recommended = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
					p.ProviderID, m.ModelID, m.ContextWindow, m.MaxOutputTokens, m.PricingTier, recommended)
			}
		}
		return w.Flush()
	},
}

// export command - export a stored debate
var exportCmd = &cobra.Command{
	Use:   "export [debate-id]",
	Short: "Export a debate transcript",
	Long: `Export a debate from a SQLite database to json, markdown, text or pdf.
Reads the database given by --db, or the default database path when --db
is not set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			dbPath = config.DefaultDBPath()
		}

		st, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		state, err := st.Get(args[0])
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		exporter, err := export.GetExporter(export.Format(format))
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = export.GenerateFilename(state, exporter.FileExtension())
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		if err := exporter.Export(state, f); err != nil {
			return err
		}

		fmt.Printf("Exported debate %s to %s\n", state.DebateID, output)
		return nil
	},
}

// config command - configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.GenerateExample())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Server port (default: from config, 8182)")
	exportCmd.Flags().String("format", "json", "Export format: json, markdown, text, pdf")
	exportCmd.Flags().String("output", "", "Output file (default: derived from topic)")
	configCmd.AddCommand(configExampleCmd)
}
