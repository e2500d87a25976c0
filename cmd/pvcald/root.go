package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/logger"
)

// rootOptions are the flags shared by every subcommand
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "pvcald",
		Short: "PV correction-factor calibration engine and service",
		Long: `pvcald calibrates the multiplicative correction factors of a PV power model
against a measured power value.

Environment Variables:
  PVCAL_LOG_LEVEL, PVCAL_LOG_FORMAT     Logging (debug|info|warn|error, text|json)
  PVCAL_GRPC_ADDR, PVCAL_HTTP_ADDR      Listen addresses for serve
  PVCAL_MAX_CONCURRENT_RUNS             Asynchronous runs executing at once
  PVCAL_MAX_WORKERS                     Cap on search.workers
  PVCAL_RATE_LIMIT_ENABLED, PVCAL_RATE_LIMIT_RPM
  PVCAL_CALLBACK_SECRET, PVCAL_CALLBACK_MAX_RETRIES`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "service config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading PVCAL_* variables")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (text, json); overrides config")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newCalibrateCmd(opts))
	cmd.AddCommand(newCalculateCmd(opts))
	return cmd
}

// loadConfig resolves the effective configuration (defaults, file, .env, environment, flags)
// and installs the logger. Logs go to stderr so stdout stays machine-readable.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}

	logger.SetDefault(logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stderr))
	return cfg, nil
}
