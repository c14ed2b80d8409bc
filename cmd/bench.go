package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/inkseal/internal/bench"
	"github.com/PolarWolf314/inkseal/internal/ui"
)

var (
	benchSizes   []int
	benchRepeats int
)

func init() {
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", bench.DefaultSizes, "payload sizes in KiB")
	benchCmd.Flags().IntVar(&benchRepeats, "repeats", 5, "timed runs per operation")
}

// resetBenchCommandState resets the bench command's global state for testing.
func resetBenchCommandState() {
	benchSizes = bench.DefaultSizes
	benchRepeats = 5
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measures key generation, keystore, encryption and signing costs",
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Running benchmarks...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		report, err := bench.Run(ctx, bench.Options{
			Sizes:         benchSizes,
			Repeats:       benchRepeats,
			Bits:          Config.Keys.DefaultBits,
			KDFIterations: Config.Keystore.KDFIterations,
			Logger:        Logger,
		})
		if err != nil {
			return failure(spinner, "Benchmark failed", err)
		}

		var b strings.Builder
		b.WriteString(color.GreenString("✓") + fmt.Sprintf(" RSA %d, %d KDF iterations\n", report.Bits, report.KDFIterations))
		for _, r := range report.Results {
			label := r.Operation
			if r.SizeKB > 0 {
				label = fmt.Sprintf("%s (%d KiB)", r.Operation, r.SizeKB)
			}
			b.WriteString(fmt.Sprintf("    %-32s %12s %s\n", label, r.Mean.Round(time.Microsecond), ui.Muted.Sprintf("x%d", r.Count)))
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}
