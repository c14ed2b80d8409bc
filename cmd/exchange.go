package cmd

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/inkseal/internal/secrets"
	"github.com/PolarWolf314/inkseal/internal/ui"
	"github.com/PolarWolf314/inkseal/internal/workflows"
)

var (
	exportOut   string
	importAdopt bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "package file to write (defaults to <record-id>.pkg)")
	importCmd.Flags().BoolVar(&importAdopt, "adopt", false, "decrypt packages addressed to you and save them as new records")
}

// resetExchangeCommandState resets the export and import commands' global state for testing.
func resetExchangeCommandState() {
	exportOut = ""
	importAdopt = false
}

var exportCmd = &cobra.Command{
	Use:   "export <record-id>",
	Short: "Writes a record as a signed package with your certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Exporting record...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		result, err := workflows.ExportRecord(ctx, workflows.ExportOptions{
			IdentityOptions: opts,
			RecordID:        args[0],
			OutputPath:      exportOut,
		})
		if err != nil {
			return failure(spinner, "Failed to export record "+ui.Code.Sprint(args[0]), err)
		}

		msg := color.GreenString("✓") + " Package written to " + ui.Path.Sprint(result.OutputPath)
		if !result.Signed {
			msg += "\n" + color.YellowString("⚠") + " The record is unsigned; importers cannot verify it"
		}
		spinner.FinalMSG = msg
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <package|dir|glob>...",
	Short: "Checks packages against their embedded certificate and the revocation ledger",
	Long: `Reads one or more packages and reports, for each, whether the signature
verifies against the embedded certificate and whether that certificate has
been revoked. Patterns may be files, directories or globs like "inbox/**/*.pkg".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Importing packages...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		result, err := workflows.ImportPackages(ctx, workflows.ImportOptions{
			IdentityOptions: opts,
			Patterns:        args,
			Adopt:           importAdopt,
		})
		if err != nil {
			return failure(spinner, "Failed to import packages", err)
		}

		var b strings.Builder
		for _, p := range result.Packages {
			if p.Result == nil {
				b.WriteString(color.RedString("✗") + " " + ui.Path.Sprint(p.Path) + "\n" + describeError(p.Err) + "\n")
				continue
			}
			r := p.Result
			b.WriteString(color.GreenString("✓") + " " + ui.Highlight.Sprint(r.Metadata.Title) + " " + ui.Muted.Sprint(p.Path) + "\n")
			b.WriteString("    from:      " + r.Metadata.ImportedFrom + " " + ui.Serial.Sprint(r.Envelope.CertSerial) + "\n")
			b.WriteString(verdictLines(r.Envelope.Signed(), secrets.Verdict{Valid: r.SignatureValid, Revoked: r.Revoked, Stale: r.Stale}))
			if r.Expired {
				b.WriteString("    " + color.YellowString("⚠") + " Signer certificate is outside its validity period\n")
			}
			if !r.SelfSigned {
				b.WriteString("    " + color.YellowString("⚠") + " Signer certificate is not self-signed\n")
			}
			switch {
			case p.RecordID != "":
				b.WriteString("    " + color.CyanString("→") + " Saved as " + ui.Code.Sprint(p.RecordID) + "\n")
			case p.Err != nil:
				b.WriteString("    " + color.YellowString("⚠") + " Not adopted: " + p.Err.Error() + "\n")
			}
		}
		if importAdopt {
			b.WriteString(color.CyanString("→") + " Adopted " + ui.Info.Sprintf("%d", result.Adopted) + " of " + ui.Info.Sprintf("%d", len(result.Packages)) + " packages")
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}
