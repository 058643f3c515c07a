// Package app wires otahub-server's subsystems together: the broker,
// the OTA catalog, the MQTT adapter, the admin WebSocket adapter, the
// firmware image server, the telemetry stub, the optional backup
// mirror, and the metrics endpoint. Grounded on the teacher's
// internal/cloudhub/server/manager.go errgroup-joined Manager.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nimbic-io/otahub/cmd/otahub-server/app/options"
	"github.com/nimbic-io/otahub/internal/adminadapter"
	"github.com/nimbic-io/otahub/internal/backup"
	"github.com/nimbic-io/otahub/internal/broker"
	"github.com/nimbic-io/otahub/internal/catalog"
	"github.com/nimbic-io/otahub/internal/catalog/store"
	"github.com/nimbic-io/otahub/internal/config"
	"github.com/nimbic-io/otahub/internal/imageserver"
	"github.com/nimbic-io/otahub/internal/metrics"
	"github.com/nimbic-io/otahub/internal/mqttadapter"
	"github.com/nimbic-io/otahub/internal/telemetry"
	applog "github.com/nimbic-io/otahub/pkg/app"
	"github.com/nimbic-io/otahub/pkg/log"
	"github.com/nimbic-io/otahub/pkg/mqtt"
	pkgoptions "github.com/nimbic-io/otahub/pkg/options"
)

const (
	commandName = "otahub-server"
	commandDesc = `otahub-server runs the IoT device-management broker: an MQTT adapter
for devices, an authenticated WebSocket admin control plane, an
embedded-KV OTA catalog, and a static HTTP firmware image server.`
)

// NewApp builds the otahub-server command.
func NewApp() *applog.App {
	opts := options.NewServerOptions()
	return applog.NewApp(
		commandName,
		"Run the otahub IoT device-management broker",
		applog.WithDescription(commandDesc),
		applog.WithOptions(opts),
		applog.WithDefaultValidArgs(),
		applog.WithRunFunc(run(opts)),
	)
}

func run(opts *options.ServerOptions) applog.RunFunc {
	return func() error {
		ctx := setupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to resolve configuration: %w", err)
		}

		// Init seeds the package-level std logger pkg/mqtt/client.go logs
		// through directly; without it those internal MQTT client logs
		// (connect/reconnect/subscribe) are silently dropped.
		log.Init(&cfg.Log)
		logger := log.Std().Logr()
		return runServer(ctx, cfg, opts.ConfigFile, logger)
	}
}

// runServer constructs every subsystem, registers each with the broker,
// and joins them under a single errgroup — ctx cancellation (SIGINT/
// SIGTERM) brings every task down together.
func runServer(ctx context.Context, cfg *config.Config, configFile string, logger logr.Logger) error {
	st, err := store.Open(cfg.Ota.DBPath, logger.WithName("store"))
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer st.Close()

	b := broker.New(logger.WithName("broker"))

	cat := catalog.New(st, catalog.Config{
		ImagePath: cfg.Ota.ImagePath,
		BaseURL:   cfg.Ota.URL,
	}, b.Inbox(), logger.WithName("catalog"))

	mqttCfg := cfg.Mqtt.ToClientConfig()
	mqttClient, err := mqtt.NewClient(mqttCfg)
	if err != nil {
		return fmt.Errorf("create mqtt client: %w", err)
	}
	mqttCfg.OnReconnectAttempt = metrics.MQTTReconnectsTotal.Inc
	mqttAdapter := mqttadapter.New(mqttClient, b.Inbox(), logger.WithName("mqtt"))

	admin := adminadapter.New(&cfg.Admin, b.Inbox(), logger.WithName("admin"))
	images := imageserver.New(&cfg.Ota, logger.WithName("imageserver"))
	influx := telemetry.New(logger.WithName("telemetry"))

	g, ctx := errgroup.WithContext(ctx)

	b.Register(ctx, "ota", cat.Inbox())
	b.Register(ctx, "mqtt", mqttAdapter.Inbox())
	b.Register(ctx, "admin", admin.Inbox())
	b.Register(ctx, "influx", influx.Inbox())

	goSafe(g, func() error { return b.Run(ctx) })
	goSafe(g, func() error { return st.RunFlushLoop(ctx) })
	goSafe(g, func() error { return cat.Run(ctx) })
	goSafe(g, func() error { return mqttAdapter.Run(ctx) })
	goSafe(g, func() error { return admin.Run(ctx) })
	goSafe(g, func() error { return images.Run(ctx) })
	goSafe(g, func() error { return influx.Run(ctx) })

	if cfg.Backup.Enabled {
		mirror, err := backup.New(&cfg.Backup.S3Options, logger.WithName("backup"))
		if err != nil {
			return fmt.Errorf("create backup mirror: %w", err)
		}
		b.Register(ctx, "backup", mirror.Inbox())
		goSafe(g, func() error { return mirror.Run(ctx) })
	}

	if cfg.Metrics.Enabled {
		goSafe(g, func() error { return runMetricsServer(ctx, &cfg.Metrics) })
	}

	if configFile != "" {
		onChange := func(newCfg *config.Config) {
			admin.UpdateOptions(&newCfg.Admin)
			cat.UpdateBaseURL(newCfg.Ota.URL)
		}
		if err := config.Watch(configFile, logger.WithName("config"), onChange); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
	}

	logger.Info("otahub-server started")
	return g.Wait()
}

// goSafe runs fn as an errgroup task, recovering any panic and
// converting it into an error returned to the group instead of letting
// it cross the goroutine boundary and crash the process.
func goSafe(g *errgroup.Group, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	})
}

func runMetricsServer(ctx context.Context, opts *pkgoptions.MetricsOptions) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: opts.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// setupSignalContext returns a context cancelled on SIGINT/SIGTERM,
// replacing the teacher's k8s.io/apiserver/pkg/server.SetupSignalContext
// (no Kubernetes apiserver dependency is carried into this module).
func setupSignalContext() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx
}
