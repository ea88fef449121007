package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"chatgraph/internal/config"
	"chatgraph/internal/db"
	"chatgraph/internal/embed"
	"chatgraph/internal/vector"
)

var (
	cfgFile string
	dbPath  string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chatgraph",
	Short: "Index and search AI chat exports as a knowledge graph",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DB.Path = dbPath
		}
		setupLogging(cfg.Log.Level)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the knowledge store database")
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// openDatabase opens the configured knowledge store.
func openDatabase() (*db.DB, error) {
	d, err := db.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DB.Path, err)
	}
	return d, nil
}

// openVectors builds the configured vector store and embedding provider.
func openVectors() (vector.Store, embed.Provider, error) {
	provider, err := embed.New(embed.Config{
		Provider:   cfg.Embed.Provider,
		Model:      cfg.Embed.Model,
		Dimensions: cfg.Vector.Dimensions,
		APIKey:     cfg.Embed.APIKey,
		BaseURL:    cfg.Embed.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}
	store, err := vector.New(cfg.Vector.Backend, cfg.Vector.Path, provider.Dimensions())
	if err != nil {
		return nil, nil, err
	}
	return store, provider, nil
}
