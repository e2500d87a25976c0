package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/simd"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

func printResult(w io.Writer, res *models.OptimizationResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Strategy:\t%s (%s)\n", res.Strategy, res.Objective)
	fmt.Fprintf(tw, "Iterations:\t%d\n", res.Iterations)
	fmt.Fprintf(tw, "Seed:\t%d\n", res.Seed)
	if res.Cancelled {
		fmt.Fprintf(tw, "Status:\tinterrupted, best so far\n")
	}
	fmt.Fprintf(tw, "Baseline error:\t%.6f\n", res.BaselineError)
	fmt.Fprintf(tw, "Best error:\t%.6f\n", res.BestError)
	c := res.Comparison
	fmt.Fprintf(tw, "Power:\t%.3f W -> %.3f W (measured %.3f W)\n", c.BaselinePower, c.OptimizedPower, c.MeasuredPower)
	fmt.Fprintf(tw, "Improvement:\t%.2f%%\n", c.ImprovementPercent)
	if d := res.Diagnostics; d.Converged {
		fmt.Fprintf(tw, "Converged:\titeration %d (%s)\n", d.ConvergedAtIteration, d.ConvergenceReason)
	}
	_ = tw.Flush()

	fmt.Fprintln(w, "\nFactors:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range res.Factors {
		fmt.Fprintf(tw, "  %s\t%.6f\n", f.Name, f.Value)
	}
	_ = tw.Flush()

	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

func printModule(w io.Writer, report simd.ModuleResponse) {
	out := report.Outputs
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Pmax:\t%.3f W\n", out.Pmax)
	fmt.Fprintf(tw, "Vmp:\t%.3f V\n", out.Vmp)
	fmt.Fprintf(tw, "Imp:\t%.3f A\n", out.Imp)
	fmt.Fprintf(tw, "Voc:\t%.3f V\n", out.Voc)
	fmt.Fprintf(tw, "Isc:\t%.3f A\n", out.Isc)
	f := out.Factors
	fmt.Fprintf(tw, "Irradiance:\t%.1f W/m2 front+rear, Fg %.4f\n", f.TotalIrradiance, f.Irradiance)
	fmt.Fprintf(tw, "Fclean / Fage:\t%.4f / %.4f\n", f.Cleaning, f.Aging)
	fmt.Fprintf(tw, "Ftemp (I/V/P):\t%.4f / %.4f / %.4f\n", f.TempCurrent, f.TempVoltage, f.TempPower)
	_ = tw.Flush()

	if report.Calibration != nil {
		fmt.Fprintln(w, "\nCalibration:")
		printResult(w, report.Calibration)
	}
}
