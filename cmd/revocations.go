package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/inkseal/internal/ui"
	"github.com/PolarWolf314/inkseal/internal/workflows"
)

var revocationsCmd = &cobra.Command{
	Use:   "revocations",
	Short: "Lists the shared certificate revocation ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withContext()
		defer cancel()
		entries, err := workflows.ListRevocations(ctx, workflows.IdentityOptions{Config: Config, Logger: Logger})
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read revocation ledger: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println(color.GreenString("✓") + " No certificates have been revoked")
			return nil
		}

		var b strings.Builder
		b.WriteString(color.CyanString("→") + " Revoked certificates " + ui.Muted.Sprint(Config.Paths.RevocationLedger) + "\n")
		for _, e := range entries {
			b.WriteString("    " + ui.Serial.Sprint(e.Serial) + " by " + ui.Highlight.Sprint(e.RevokedBy) + " at " + e.Timestamp + "\n")
		}
		fmt.Print(b.String())
		return nil
	},
}
