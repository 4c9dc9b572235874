// Command geobridge moves scene collections into an engine session and
// reads cooked parts back out as scene assets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/spf13/cobra"

	"geobridge/internal/config"
	"geobridge/internal/content"
	"geobridge/internal/engine/sqlite"
	"geobridge/internal/service"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "geobridge",
	Short: "Attribute interchange between scene collections and an engine session",
	Long: `geobridge uploads scene collections as engine input nodes and
retrieves committed engine parts as scene assets.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search "+config.EnvConfigPath+" and standard locations)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds everything a command needs
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *sqlite.Session
	store   *content.Store
	bus     *service.EventBus
	bridge  *service.Bridge
}

func loadConfig() (*config.Config, string, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// openApp loads config, opens the session and builds the bridge. The
// returned context carries the configured logger.
func openApp(ctx context.Context) (*app, context.Context, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, ctx, err
	}

	logger := cfg.Logging.NewLogger(os.Stderr)
	ctx = logging.NewContextWithLogger(ctx, logger, "service", "geobridge")
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}

	session, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, ctx, fmt.Errorf("open session: %w", err)
	}

	bus := service.NewEventBus()
	store := content.NewStore(cfg.Content.Dir, bus)

	bridge, err := service.NewBridge(session, session, store, bus, bridgeOptions(cfg))
	if err != nil {
		session.Close()
		return nil, ctx, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		session: session,
		store:   store,
		bus:     bus,
		bridge:  bridge,
	}, ctx, nil
}

func (a *app) Close() {
	if err := a.session.Close(); err != nil {
		a.logger.Error("close session", "err", err.Error())
	}
}

func bridgeOptions(cfg *config.Config) service.Options {
	return service.Options{
		PositionScale: cfg.Conversion.PositionScale,
		Prefix:        cfg.Attributes.Prefix,
		Include:       cfg.Attributes.Include,
		Exclude:       cfg.Attributes.Exclude,
		Operator:      cfg.Input.Operator,
		Upload: service.UploadOptions{
			ImportRotAndScale: cfg.Input.ImportRotAndScale,
			MarkOutput:        cfg.Input.MarkOutput,
		},
		Retrieve: service.RetrieveOptions{
			CookFolder:  cfg.Output.CookFolder,
			AssetPrefix: cfg.Output.AssetPrefix,
			Meshes:      cfg.MeshesEnabled(),
		},
	}
}
