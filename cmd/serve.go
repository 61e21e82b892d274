package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/modseek/modseek/pkg/blocklist"
	"github.com/modseek/modseek/pkg/bot"
	"github.com/modseek/modseek/pkg/catalog"
	"github.com/modseek/modseek/pkg/config"
	"github.com/modseek/modseek/pkg/dispatch"
	"github.com/modseek/modseek/pkg/engine"
	"github.com/modseek/modseek/pkg/gateway"
	"github.com/modseek/modseek/pkg/log"
	"github.com/modseek/modseek/pkg/nexus"
	"github.com/modseek/modseek/pkg/present"
	"github.com/modseek/modseek/pkg/store"
	"github.com/urfave/cli/v3"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Connect to the gateway and answer searches",
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"))
		},
	}
}

// serve runs the bot until interrupted. SIGHUP or a change to the config
// file tears the whole stack down and rebuilds it from the file.
func serve(ctx context.Context, configPath string) error {
	logger := log.ForService("serve")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
		watcher = nil
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
		}
	}

	for {
		reload, err := serveOnce(ctx, configPath, sigCh, watcher)
		if err != nil || !reload {
			return err
		}
		logger.Infof("reloading configuration from %s", configPath)
	}
}

// serveOnce builds the full stack from the config file and runs it until a
// shutdown signal, a reload trigger or parent cancellation. It reports
// whether the caller should rebuild and go again.
func serveOnce(parent context.Context, configPath string, sigCh <-chan os.Signal, watcher *fsnotify.Watcher) (bool, error) {
	logger := log.ForService("serve")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return false, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Gateway.URL == "" || cfg.Gateway.Token == "" {
		return false, errors.New("gateway url and token must be configured (see 'modseek init')")
	}

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return false, fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warnf("failed to close store: %v", err)
		}
	}()

	if err := s.SetDefaultPrefix(cfg.DefaultPrefix); err != nil {
		return false, fmt.Errorf("applying default prefix: %w", err)
	}

	if err := s.Migrate(); err != nil {
		return false, fmt.Errorf("applying migrations: %w", err)
	}

	bl := blocklist.New(s, cfg.OwnerID)
	if err := bl.Load(parent); err != nil {
		return false, fmt.Errorf("loading block list: %w", err)
	}

	client := nexus.NewClient(cfg)
	builder := &present.Builder{
		MaxBatches: cfg.MaxResultBatches,
		AdultCheck: client.CheckAdult,
		IconURL:    client.ProfileIconURL,
	}

	gw := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Token)
	dispatcher := dispatch.New(gw, engine.New(client), builder)

	b, err := bot.New(cfg, s, bl, gw, dispatcher, client)
	if err != nil {
		return false, fmt.Errorf("creating bot: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	gw.OnReady(func(ev gateway.ReadyEvent) { b.HandleReady(ctx, ev) })
	gw.OnMessage(func(ev gateway.MessageEvent) { b.HandleMessage(ctx, ev) })
	gw.OnCommunity(func(ev gateway.CommunityEvent) { b.HandleCommunity(ctx, ev) })

	go catalog.NewRefresher(client, s, cfg.CatalogRefreshInterval.Duration).Run(ctx)

	gatewayDone := make(chan error, 1)
	go func() {
		gatewayDone <- gw.Run(ctx)
	}()
	// Wait for the gateway loop to unwind before the store closes.
	defer func() {
		cancel()
		<-gatewayDone
	}()

	logger.Infof("connected stack ready; Ctrl+C stops, SIGHUP or a config change reloads")

	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if watcher != nil {
		watchEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	for {
		select {
		case <-parent.Done():
			return false, parent.Err()
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				return true, nil
			}
			fmt.Println("\nShutting down...")
			return false, nil
		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			// Editors often replace the file atomically, so the watch has to
			// be re-armed after rename and remove events.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("config file removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-add config file to watcher: %v", err)
				}
			}
			logger.Infof("config file changed (%s)", event.Op)
			return true, nil
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("config file watcher error: %v", err)
		}
	}
}
