package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aof-gg/aofkeeper/internal/api"
	"github.com/aof-gg/aofkeeper/internal/cli"
	"github.com/aof-gg/aofkeeper/internal/config"
	"github.com/aof-gg/aofkeeper/internal/events"
	"github.com/aof-gg/aofkeeper/internal/health"
	"github.com/aof-gg/aofkeeper/internal/scheduler"
	"github.com/aof-gg/aofkeeper/internal/telemetry"
	"github.com/aof-gg/aofkeeper/internal/util"
)

var (
	interactive bool
	debugAPI    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API, the replay cleaner and MQTT telemetry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read console commands from stdin")
	serveCmd.Flags().BoolVar(&debugAPI, "debug-api", false, "Run the HTTP router in debug mode")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting aofkeeper")

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		return fmt.Errorf("configuration validation failed, please fix the errors in %s", cfg.Path())
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()
	eventBus.Subscribe(events.EventShutdown, "main", func(context.Context, events.Event) error {
		cancel()
		return nil
	})

	h, err := openArchive(eventBus)
	if err != nil {
		return err
	}
	defer h.Close()

	var mqttHandler *telemetry.MQTTHandler
	if mc := cfg.GetMQTT(); mc.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(mc, eventBus, AppVersion)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	sched := scheduler.NewScheduler(cfg.GetReplayCleaner(), h.archive, h.store, eventBus)

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	if apiCfg := cfg.GetAPI(); apiCfg.Enabled {
		apiServer := api.NewServer(apiCfg, h.archive, h.store.Dir(), AppVersion, debugAPI)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", apiCfg.Port).Msg("starting REST API server")
			if err := startWithRetry(ctx, "API server", apiServer.Start, 5); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	healthMgr := health.NewManager(cfg.GetHealth(), h.archive, h.store.Dir(), eventBus)
	wg.Add(1)
	go func() {
		defer wg.Done()
		healthMgr.Start(ctx)
	}()

	if interactive {
		console := cli.NewCLI(cfg, h.archive, sched, eventBus, os.Stdin, os.Stdout)
		go console.Start(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("critical error, initiating shutdown")
	case <-ctx.Done():
		log.Info().Msg("shutdown requested from console")
	}

	log.Info().Msg("initiating graceful shutdown...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	eventBus.Stop()
	log.Info().Msg("aofkeeper stopped")
	return runErr
}

// startWithRetry attempts to start a server with retry on bind errors.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}
