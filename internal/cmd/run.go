package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sk2233/spineview/internal/assets"
	"github.com/sk2233/spineview/internal/character"
	"github.com/sk2233/spineview/internal/config"
	"github.com/sk2233/spineview/internal/control"
	"github.com/sk2233/spineview/internal/host"
	"github.com/sk2233/spineview/internal/logging"
	"github.com/sk2233/spineview/internal/sched"
	"github.com/sk2233/spineview/internal/viewer"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the viewer window (default)",
	Args:  cobra.NoArgs,
	RunE:  runViewer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runViewer(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}
	if err := bindFlags(cmd, v); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.Info("starting viewer", "config", v.ConfigFileUsed(), "characters", len(cfg.Characters))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := sched.New(time.Now())
	fetcher := assets.NewFetcher(cfg.Assets.Root)
	registry := &host.Registry{}
	registry.PublishAnimation(host.NewAnimation(fetcher.Fetch))

	feed := logging.NewFeed(cfg.Logging.FeedLimit)
	hub := control.NewHub(logger)
	var notifiers []character.Notifier
	if cfg.Control.Enabled {
		notifiers = append(notifiers, hub)
	}
	controller := viewer.NewController(cfg, viewer.Options{
		Scheduler:   s,
		Libraries:   registry,
		Shared:      &character.SharedRuntime{},
		Logger:      logger,
		Feed:        feed,
		Notifiers:   notifiers,
		DeviceScale: cfg.Window.DeviceScale,
	})

	if cfg.Control.Enabled {
		server := control.NewServer(hub, s, controller, cfg.Control.AllowedOrigins, logger)
		go func() {
			if err := server.ListenAndServe(ctx, cfg.Control.Addr); err != nil {
				logger.Error("control server stopped", "error", err)
			}
		}()
	}

	if v.ConfigFileUsed() != "" {
		config.Watch(v, func(next *config.Config) {
			logger.Info("config reloaded", "characters", len(next.Characters))
			s.Post(func() { controller.ApplyConfig(next) })
		}, func(err error) {
			logger.Warn("config reload rejected", "error", err)
			feed.Add("config: " + err.Error())
		})
	}

	controller.Start()

	ebiten.SetWindowSize(cfg.Window.Width, cfg.Window.Height)
	ebiten.SetWindowTitle(cfg.Window.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	if err := ebiten.RunGame(viewer.NewGame(controller, s, registry, cfg.Window, ctx.Done())); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	logger.Info("viewer stopped")
	return nil
}
