// Command picoflash builds the firmware, converts it to UF2, flashes it to
// a Pico in bootsel mode and generates the Wokwi simulator project.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"picodemo/internal/toolchain"
)

// app is the state shared by every command after PersistentPreRunE.
type app struct {
	configPath string
	verbose    bool

	log    *zap.Logger
	cfg    toolchain.Config
	runner *toolchain.Runner
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "picoflash",
		Short:         "Build, convert and flash the Pico demo firmware",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zc := zap.NewProductionConfig()
			zc.Encoding = "console"
			zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			if a.verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			log, err := zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.log = log
			a.cfg, err = toolchain.Load(a.configPath)
			if err != nil {
				return err
			}
			a.runner = toolchain.NewRunner(log)
			log.Debug("config", zap.String("path", a.configPath), zap.String("target", a.cfg.Target))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", toolchain.DefaultConfigFile, "config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.doctorCmd(),
		a.buildCmd(),
		a.uf2Cmd(),
		a.deployCmd(),
		a.loadCmd(),
		a.flashCmd(),
		a.infoCmd(),
		a.simCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "picoflash:", err)
		stop()
		os.Exit(1)
	}
}
