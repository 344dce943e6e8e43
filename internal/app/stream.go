// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/dot_bridge/internal/ble"
	"github.com/relabs-tech/dot_bridge/internal/config"
	"github.com/relabs-tech/dot_bridge/internal/control"
	"github.com/relabs-tech/dot_bridge/internal/dot"
	"github.com/relabs-tech/dot_bridge/internal/sink"
	"github.com/relabs-tech/dot_bridge/internal/stream"
)

// mockAddresses stand in for DOT_ADDRESSES when mock mode has none.
var mockAddresses = []string{"D4:22:CD:00:00:01", "D4:22:CD:00:00:02"}

// RunStream connects to every configured DOT (or mock sensors) and streams
// until ctx is cancelled or STREAM_DURATION elapses.
func RunStream(ctx context.Context, mock bool) error {
	cfg := config.Get()

	addresses := cfg.DOTAddresses
	var dialer ble.Dialer
	if mock {
		log.Info("using mock DOT sensors")
		if len(addresses) == 0 {
			addresses = mockAddresses
		}
		dialer = &ble.MockDialer{
			Variant:        cfg.PayloadVariant,
			MalformedEvery: cfg.MockMalformedEvery,
			Battery:        dot.Battery{Level: 87},
		}
	} else {
		if len(addresses) == 0 {
			return errors.New("no sensors configured, set DOT_ADDRESSES")
		}
		dialer = ble.NewAdapter(bluetooth.DefaultAdapter, cfg.ScanTimeout)
		if err := cfg.CheckPayload(); err != nil {
			log.Warn(err)
		}
	}

	out, closeSinks, err := buildSinks(cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := stream.NewMetrics(reg)
	registry := stream.NewRegistry()

	opts := stream.Options{
		Mode:           cfg.PayloadMode,
		Characteristic: cfg.Characteristic(),
		Variant:        cfg.PayloadVariant,
		NotifyBuffer:   cfg.NotifyBuffer,
		VarianceWindow: cfg.VarianceWindow,
		Duration:       cfg.StreamDuration,
	}
	log.Infof("streaming %d sensor(s): mode=%s variant=%s (%d bytes)",
		len(addresses), cfg.PayloadMode, cfg.PayloadVariant, cfg.PayloadVariant.Size())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return stream.NewStreamer(dialer, out, opts, metrics, registry).Run(ctx, stream.Sensors(addresses))
	})

	if cfg.OSCListenAddr != "" {
		srv := control.NewBatteryServer(cfg.OSCListenAddr, registry, out)
		g.Go(func() error {
			return srv.Serve(ctx)
		})
	}

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.MetricsAddr, reg)
		})
	}

	return g.Wait()
}

// buildSinks assembles the enabled sinks. The returned func releases them.
func buildSinks(cfg *config.Config) (sink.Sink, func(), error) {
	var (
		out     sink.Multi
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.ConsoleEnabled {
		out = append(out, sink.NewConsole(os.Stdout))
	}
	if cfg.OSCEnabled {
		log.Infof("sending OSC to %s:%d (%s)", cfg.OSCHost, cfg.OSCPort, cfg.OSCPrefix)
		out = append(out, sink.NewOSC(cfg.OSCHost, cfg.OSCPort, cfg.OSCPrefix, cfg.OSCAccPath))
	}
	if cfg.MQTTEnabled {
		client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDStreamer)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Disconnect(250) })
		m := sink.NewMQTT(client, sink.Topics{
			Readings: cfg.TopicReadings,
			Variance: cfg.TopicVariance,
			Battery:  cfg.TopicBattery,
		})
		log.WithField("session", m.Session()).Infof("publishing readings on %s", cfg.TopicReadings)
		out = append(out, m)
	}
	if len(out) == 0 {
		log.Warn("all sinks disabled, readings are only counted")
	}
	return out, closeAll, nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics listening on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
