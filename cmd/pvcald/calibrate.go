package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/improvement"
	"github.com/GoSim-25-26J-441/pv-calibration/internal/simd"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

type calibrateOptions struct {
	file       string
	seed       int64
	jsonOutput bool
	remote     string
}

func newCalibrateCmd(root *rootOptions) *cobra.Command {
	opts := &calibrateOptions{}
	cmd := &cobra.Command{
		Use:   "calibrate -f run.yaml",
		Short: "Calibrate the tunable factors of a run spec",
		Long: `Calibrate runs one search for the run spec in --file and prints the best factors.

With --remote the run is submitted to a pvcald gRPC endpoint instead of executing locally.
Interrupting a local run prints the best result found so far.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			spec, err := config.LoadRunSpec(opts.file)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				spec.Search.Seed = opts.seed
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var res *models.OptimizationResult
			if opts.remote != "" {
				res, err = calibrateRemote(ctx, opts.remote, spec)
			} else {
				res, err = calibrateLocal(ctx, spec, cfg.Defaults)
			}
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "run spec file (YAML or .json)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "override search.seed")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&opts.remote, "remote", "", "gRPC address of a pvcald service")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func calibrateLocal(ctx context.Context, spec *config.RunSpec, defaults config.SearchSpec) (*models.OptimizationResult, error) {
	resolved, err := spec.Resolve(defaults)
	if err != nil {
		return nil, describe(err)
	}
	return improvement.Calibrate(ctx, resolved.Problem, resolved.Search, nil)
}

func calibrateRemote(ctx context.Context, addr string, spec *config.RunSpec) (*models.OptimizationResult, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	in, err := simd.ToStruct(map[string]any{"spec": spec})
	if err != nil {
		return nil, err
	}
	out, err := simd.NewCalibrationServiceClient(conn).Call(ctx, "Calibrate", in)
	if err != nil {
		return nil, fmt.Errorf("remote calibration failed: %w", err)
	}

	data, err := json.Marshal(out.AsMap()["result"])
	if err != nil {
		return nil, err
	}
	var res models.OptimizationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode remote result: %w", err)
	}
	return &res, nil
}

// describe expands a missing-precondition error into one line per key
func describe(err error) error {
	var mp *models.MissingPreconditionError
	if !errors.As(err, &mp) {
		return err
	}
	msg := "run spec is missing required values:"
	for _, key := range mp.Missing {
		msg += "\n  - " + key
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
