package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/improvement"
	"github.com/GoSim-25-26J-441/pv-calibration/internal/simd"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

type calculateOptions struct {
	file       string
	measured   float64
	calibrate  bool
	jsonOutput bool
}

func newCalculateCmd(root *rootOptions) *cobra.Command {
	opts := &calculateOptions{}
	cmd := &cobra.Command{
		Use:   "calculate -f module.yaml",
		Short: "Compute module outputs and optionally calibrate its loss factors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			spec, err := config.LoadModuleSpec(opts.file)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("measured") {
				spec.MeasuredPower = models.Float(opts.measured)
			}

			out, err := spec.Calculate()
			if err != nil {
				return err
			}
			report := simd.ModuleResponse{Outputs: out}

			if opts.calibrate {
				runSpec, err := spec.RunSpec()
				if err != nil {
					return describe(err)
				}
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				resolved, err := runSpec.Resolve(cfg.Defaults)
				if err != nil {
					return describe(err)
				}
				report.Calibration, err = improvement.Calibrate(ctx, resolved.Problem, resolved.Search, nil)
				if err != nil {
					return err
				}
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printModule(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "module spec file (YAML or .json)")
	cmd.Flags().Float64Var(&opts.measured, "measured", 0, "measured module power in watts; overrides measured_power")
	cmd.Flags().BoolVar(&opts.calibrate, "calibrate", false, "calibrate mismatch, cleaning and shading against the measured power")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
