package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/inkseal/internal/secrets"
	"github.com/PolarWolf314/inkseal/internal/ui"
	"github.com/PolarWolf314/inkseal/internal/utils"
	"github.com/PolarWolf314/inkseal/internal/workflows"
)

var (
	recordTitle string
	recordBody  string
	recordFile  string
	recordTags  []string
	recordForce bool
	recordQuery string
	recordOut   string
)

func init() {
	for _, c := range []*cobra.Command{recordSealCmd, recordUpdateCmd} {
		c.Flags().StringVarP(&recordTitle, "title", "t", "", "record title")
		c.Flags().StringVar(&recordBody, "body", "", "record contents")
		c.Flags().StringVarP(&recordFile, "file", "f", "", "read record contents from a file")
		c.Flags().StringSliceVar(&recordTags, "tag", nil, "tag the record (repeatable)")
		c.Flags().BoolVar(&recordForce, "force", false, "seal even if your certificate is revoked")
	}
	_ = recordSealCmd.MarkFlagRequired("title")
	recordListCmd.Flags().StringVarP(&recordQuery, "query", "q", "", "only list records whose title or tags match")
	recordOpenCmd.Flags().StringVarP(&recordOut, "out", "o", "", "write the contents to a file instead of stdout")

	recordCmd.AddCommand(recordSealCmd)
	recordCmd.AddCommand(recordOpenCmd)
	recordCmd.AddCommand(recordUpdateCmd)
	recordCmd.AddCommand(recordListCmd)
	recordCmd.AddCommand(recordDeleteCmd)
}

// resetRecordCommandState resets the record commands' global state for testing.
func resetRecordCommandState() {
	recordTitle = ""
	recordBody = ""
	recordFile = ""
	recordTags = nil
	recordForce = false
	recordQuery = ""
	recordOut = ""
}

// recordContents returns the body from --body or --file. ok is false when
// neither was given.
func recordContents() (body []byte, ok bool, err error) {
	if recordBody != "" && recordFile != "" {
		return nil, false, fmt.Errorf("use either --body or --file, not both")
	}
	if recordFile != "" {
		data, err := os.ReadFile(recordFile)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read %s: %w", recordFile, err)
		}
		return data, true, nil
	}
	if recordBody != "" {
		return []byte(recordBody), true, nil
	}
	return nil, false, nil
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Seal, open and manage encrypted records",
}

var recordSealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Encrypts and signs a new record",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, ok, err := recordContents()
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		if !ok {
			return Logger.ErrorfAndReturn("nothing to seal: pass --body or --file")
		}
		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Sealing record...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		result, err := workflows.SealRecord(ctx, workflows.SealOptions{
			IdentityOptions: opts,
			Title:           recordTitle,
			Body:            body,
			Tags:            recordTags,
			Force:           recordForce,
		})
		if err != nil {
			return failure(spinner, "Failed to seal record", err)
		}
		spinner.FinalMSG = color.GreenString("✓") + " Sealed " + ui.Highlight.Sprint(recordTitle) + " as " + ui.Code.Sprint(result.RecordID) + "\n" +
			"    signed by " + ui.Serial.Sprint(result.Serial)
		return nil
	},
}

var recordOpenCmd = &cobra.Command{
	Use:   "open <record-id>",
	Short: "Verifies and decrypts a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Opening record...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		result, err := workflows.OpenRecord(ctx, workflows.OpenOptions{IdentityOptions: opts, RecordID: args[0]})
		if err != nil {
			return failure(spinner, "Failed to open record "+ui.Code.Sprint(args[0]), err)
		}

		var b strings.Builder
		b.WriteString(color.GreenString("✓") + " " + ui.Highlight.Sprint(result.Metadata.Title) + " " + ui.Muted.Sprint(result.Metadata.Modified) + "\n")
		if len(result.Metadata.Tags) > 0 {
			b.WriteString("    tags:      " + strings.Join(result.Metadata.Tags, ", ") + "\n")
		}
		b.WriteString(verdictLines(result.Signed, result.Verdict))

		if recordOut != "" {
			if err := utils.WriteFileAtomic(recordOut, result.Plaintext, 0600); err != nil {
				return failure(spinner, "Failed to write record contents", err)
			}
			b.WriteString(color.CyanString("→") + " Contents written to " + ui.Path.Sprint(recordOut))
		} else {
			b.WriteString("\n" + string(result.Plaintext))
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}

// verdictLines renders a signature verdict the same way for records and packages.
func verdictLines(signed bool, v secrets.Verdict) string {
	if !signed {
		return "    signature: " + ui.Warning.Sprint("⚠ Unsigned") + "\n"
	}
	s := "    signature: " + ui.SignatureStatus(v.Valid) + "\n" +
		"    signer:    " + ui.CertificateStatus(v.Revoked) + "\n"
	if v.Stale {
		s += "    " + ui.Warning.Sprint("⚠ Signature is older than verification.max_age_days") + "\n"
	}
	return s
}

var recordUpdateCmd = &cobra.Command{
	Use:   "update <record-id>",
	Short: "Changes a record's title, tags or contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, ok, err := recordContents()
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		update := workflows.UpdateOptions{RecordID: args[0], Force: recordForce}
		if ok {
			update.Body = body
		}
		if cmd.Flags().Changed("title") {
			update.Title = &recordTitle
		}
		if cmd.Flags().Changed("tag") {
			update.Tags = &recordTags
		}
		if update.Body == nil && update.Title == nil && update.Tags == nil {
			return Logger.ErrorfAndReturn("nothing to update: pass --title, --tag, --body or --file")
		}

		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}
		update.IdentityOptions = opts

		spinner, cleanup := startSpinner("Updating record...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		if err := workflows.UpdateRecord(ctx, update); err != nil {
			return failure(spinner, "Failed to update record "+ui.Code.Sprint(args[0]), err)
		}
		spinner.FinalMSG = color.GreenString("✓") + " Updated " + ui.Code.Sprint(args[0])
		return nil
	},
}

var recordListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists your records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := currentUser()
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		ctx, cancel := withContext()
		defer cancel()
		list, err := workflows.ListRecords(ctx, workflows.ListRecordsOptions{
			IdentityOptions: workflows.IdentityOptions{Config: Config, Username: name, Logger: Logger},
			Query:           recordQuery,
		})
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to list records: %v", err)
		}
		if len(list) == 0 {
			fmt.Println(color.YellowString("⚠") + " No records found")
			return nil
		}

		var b strings.Builder
		for _, meta := range list {
			b.WriteString(ui.Code.Sprint(meta.ID) + "  " + ui.Highlight.Sprint(meta.Title) + "  " + ui.Muted.Sprint(meta.Created))
			if len(meta.Tags) > 0 {
				b.WriteString("  " + ui.Info.Sprint(strings.Join(meta.Tags, ",")))
			}
			b.WriteString("\n")
		}
		fmt.Print(b.String())
		return nil
	},
}

var recordDeleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Deletes a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Deleting record...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		if err := workflows.DeleteRecord(ctx, workflows.DeleteOptions{IdentityOptions: opts, RecordID: args[0]}); err != nil {
			return failure(spinner, "Failed to delete record "+ui.Code.Sprint(args[0]), err)
		}
		spinner.FinalMSG = color.GreenString("✓") + " Deleted " + ui.Code.Sprint(args[0])
		return nil
	},
}
