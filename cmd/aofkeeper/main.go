// aofkeeper archives League of Legends spectator replays in the AOF
// container format. It serves a REST API over the archive, prunes old
// replays on a schedule, publishes archive events over MQTT and offers
// one-shot commands to inspect and validate replay files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aof-gg/aofkeeper/internal/config"
	"github.com/aof-gg/aofkeeper/internal/db"
	"github.com/aof-gg/aofkeeper/internal/events"
	"github.com/aof-gg/aofkeeper/internal/storage"
	"github.com/aof-gg/aofkeeper/internal/util"
)

const (
	AppName    = "aofkeeper"
	AppVersion = "1.0.0"
)

var (
	configDir string
	logLevel  string
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "aofkeeper",
	Short:         "aofkeeper - AOF replay archive",
	Version:       AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `aofkeeper stores spectator replays as .aof files, keeps a catalog of
them and serves them over a REST API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// One-shot commands log to the console only.
		if err := util.InitLogger(util.LogConfig{Level: "warn", Console: true}); err != nil {
			return err
		}

		loaded, err := config.Load(configDir)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded

		logCfg := cfg.GetLogging()
		if cmd.Name() != "serve" {
			logCfg.Directory = ""
			logCfg.Level = "warn"
		}
		if logLevel != "" {
			logCfg.Level = logLevel
		}
		return util.InitLogger(logCfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", config.DefaultConfigDir, "Configuration directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

// archiveHandle bundles the storage layer opened from the configuration.
type archiveHandle struct {
	store   *storage.FileStorage
	catalog *db.Catalog
	archive *storage.Archive
}

func (h *archiveHandle) Close() {
	if err := h.catalog.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close catalog")
	}
}

func openArchive(bus events.Emitter) (*archiveHandle, error) {
	sc := cfg.GetStorage()

	store, err := storage.NewFileStorage(sc.ReplayDirectory)
	if err != nil {
		return nil, err
	}

	if err := util.EnsureDir(filepath.Dir(sc.CatalogPath)); err != nil {
		return nil, err
	}
	catalog, err := db.NewCatalog(sc.CatalogPath)
	if err != nil {
		return nil, err
	}

	return &archiveHandle{
		store:   store,
		catalog: catalog,
		archive: storage.NewArchive(store, catalog, bus),
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
