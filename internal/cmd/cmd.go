// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package cmd wires the dotbridge subcommands.
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/dot_bridge/internal/app"
	"github.com/relabs-tech/dot_bridge/internal/config"
)

const (
	DefaultConfig = "dot_config.txt"
	// ConfigEnv names the config file when --config is not given.
	ConfigEnv = "DOT_CONFIG"
)

var RootCmd = &cobra.Command{
	Use:   "dotbridge",
	Short: "stream Xsens DOT sensors to OSC and MQTT",
	Long: `dotbridge connects to Xsens DOT inertial sensors over Bluetooth LE,
decodes their measurement notifications and forwards the readings to OSC,
MQTT and the console. The configuration file is located by:
1. path specified in --config flag
2. path defined in the DOT_CONFIG environment variable
3. dot_config.txt in the current directory (defaults are used if absent)
Every key can be overridden by an environment variable prefixed with DOT_.
`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func loadConfig(cmd *cobra.Command, args []string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		path = DefaultConfig
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Warnf("%s not found, using defaults", path)
			path = ""
		}
	}
	if err := config.InitGlobal(path); err != nil {
		return err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	if debug || config.Get().Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	log.Debugf("using config file: %q", path)
	return nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

var ScanCmd = &cobra.Command{
	Use:     "scan",
	Short:   "list nearby Xsens DOT sensors",
	Example: `  dotbridge scan --timeout 10s --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		if timeout <= 0 {
			timeout = config.Get().ScanTimeout
		}
		all, _ := cmd.Flags().GetBool("all")
		return app.RunScan(ctx, cmd.OutOrStdout(), timeout, all)
	},
}

var BatteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "print battery level and measurement state of each configured sensor",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		mock, _ := cmd.Flags().GetBool("mock")
		return app.RunBattery(ctx, cmd.OutOrStdout(), mock)
	},
}

var StreamCmd = &cobra.Command{
	Use:   "stream",
	Short: "stream measurements from the configured sensors",
	Long: `stream connects to every sensor in DOT_ADDRESSES, starts the configured
payload mode and forwards decoded readings to the enabled sinks until
interrupted or STREAM_DURATION elapses.`,
	Example: `  dotbridge stream --config dot_config.txt
  DOT_STREAM_DURATION=30s dotbridge stream`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		mock, _ := cmd.Flags().GetBool("mock")
		return app.RunStream(ctx, mock)
	},
}

var MockCmd = &cobra.Command{
	Use:   "mock",
	Short: "stream synthetic readings without Bluetooth hardware",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		return app.RunStream(ctx, true)
	},
}

var ConsoleCmd = &cobra.Command{
	Use:   "console",
	Short: "print the readings published on MQTT",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		dashboard, _ := cmd.Flags().GetBool("dashboard")
		return app.RunConsoleMQTT(ctx, cmd.OutOrStdout(), dashboard)
	},
}

var WebCmd = &cobra.Command{
	Use:   "web",
	Short: "serve the latest readings over HTTP and websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		return app.RunWeb(ctx)
	},
}

func getRootCmd() *cobra.Command {
	RootCmd.PersistentFlags().String("config", "", "configuration file path")
	RootCmd.PersistentFlags().Bool("debug", false, "toggle debug logging")

	ScanCmd.Flags().Duration("timeout", 0, "scan duration (default SCAN_TIMEOUT)")
	ScanCmd.Flags().Bool("all", false, "list every advertising device, not only DOTs")
	RootCmd.AddCommand(ScanCmd)

	BatteryCmd.Flags().Bool("mock", false, "use synthetic sensors")
	RootCmd.AddCommand(BatteryCmd)

	StreamCmd.Flags().Bool("mock", false, "use synthetic sensors")
	RootCmd.AddCommand(StreamCmd)
	RootCmd.AddCommand(MockCmd)

	ConsoleCmd.Flags().Bool("dashboard", false, "render a live table instead of a line per message")
	RootCmd.AddCommand(ConsoleCmd)

	RootCmd.AddCommand(WebCmd)
	return RootCmd
}

func Execute() {
	if err := getRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
