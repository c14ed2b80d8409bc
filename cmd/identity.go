package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/PolarWolf314/inkseal/internal/ui"
	"github.com/PolarWolf314/inkseal/internal/utils"
	"github.com/PolarWolf314/inkseal/internal/workflows"
)

var (
	createBits         int
	createValidityDays int
	showOutput         string
	revokeSerial       string
	exportKeyOut       string
	exportKeyPlain     bool
)

func init() {
	identityCreateCmd.Flags().IntVar(&createBits, "bits", 0, "RSA key size (defaults to keys.default_bits)")
	identityCreateCmd.Flags().IntVar(&createValidityDays, "validity-days", 0, "certificate lifetime (defaults to keys.validity_days)")
	identityShowCmd.Flags().StringVarP(&showOutput, "output", "o", "text", "output format: text, yaml or json")
	identityRevokeCmd.Flags().StringVar(&revokeSerial, "serial", "", "certificate serial to revoke (defaults to your own)")
	identityExportKeyCmd.Flags().StringVar(&exportKeyOut, "out", "", "file to write the private key to")
	identityExportKeyCmd.Flags().BoolVar(&exportKeyPlain, "plain", false, "write the key without a transport password")
	_ = identityExportKeyCmd.MarkFlagRequired("out")

	identityCmd.AddCommand(identityCreateCmd)
	identityCmd.AddCommand(identityShowCmd)
	identityCmd.AddCommand(identityPasswdCmd)
	identityCmd.AddCommand(identityRevokeCmd)
	identityCmd.AddCommand(identityExportKeyCmd)
	identityCmd.AddCommand(identityListCmd)
}

// resetIdentityCommandState resets the identity commands' global state for testing.
func resetIdentityCommandState() {
	createBits = 0
	createValidityDays = 0
	showOutput = "text"
	revokeSerial = ""
	exportKeyOut = ""
	exportKeyPlain = false
}

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Create and manage your signing identity",
}

var identityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generates a key pair and self-signed certificate protected by a password",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting identity create command")
		name, err := currentUser()
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		if !utils.IsValidUsername(name) {
			return Logger.ErrorfAndReturn("invalid identity name %q: use at least 3 lowercase letters, digits, '-', '_' or '.'", name)
		}
		pw, err := readPassword("New password for "+name+": ", true)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Generating identity...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		result, err := workflows.CreateIdentity(ctx, workflows.CreateIdentityOptions{
			IdentityOptions: workflows.IdentityOptions{Config: Config, Username: name, Password: pw, Logger: Logger},
			Bits:            createBits,
			ValidityDays:    createValidityDays,
		})
		if err != nil {
			return failure(spinner, "Failed to create identity "+ui.Highlight.Sprint(name), err)
		}

		spinner.FinalMSG = color.GreenString("✓") + " Identity " + ui.Highlight.Sprint(result.Username) + " created\n" +
			"    serial:  " + ui.Serial.Sprint(result.Serial) + "\n" +
			"    key:     RSA " + fmt.Sprint(result.Bits) + "\n" +
			"    expires: " + result.NotAfter.Format("2006-01-02") + "\n" +
			"The following files were created:" + utils.FormatPaths([]string{result.KeystorePath, result.CertificatePath}) +
			color.CyanString("→") + " Seal your first record with " + ui.Code.Sprint("inkseal record seal --title <title>")
		return nil
	},
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Shows your certificate, public key and revocation status",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(showOutput)
		if format != "text" && format != "yaml" && format != "json" {
			return Logger.ErrorfAndReturn("unknown output format %q", showOutput)
		}
		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Unlocking identity...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		shown, err := workflows.ShowIdentity(ctx, opts)
		if err != nil {
			return failure(spinner, "Failed to unlock identity "+ui.Highlight.Sprint(opts.Username), err)
		}

		switch format {
		case "yaml":
			out, err := yaml.Marshal(shown)
			if err != nil {
				return Logger.ErrorfAndReturn("Failed to render YAML: %v", err)
			}
			spinner.FinalMSG = string(out)
		case "json":
			out, err := json.MarshalIndent(shown, "", "  ")
			if err != nil {
				return Logger.ErrorfAndReturn("Failed to render JSON: %v", err)
			}
			spinner.FinalMSG = string(out)
		default:
			c := shown.Certificate
			spinner.FinalMSG = color.GreenString("✓") + " Identity " + ui.Highlight.Sprint(shown.Username) + "\n" +
				"    subject:      " + c.Subject + "\n" +
				"    issuer:       " + c.Issuer + "\n" +
				"    serial:       " + ui.Serial.Sprint(c.SerialNumber) + "\n" +
				"    valid:        " + c.NotValidBefore.Format("2006-01-02") + " to " + c.NotValidAfter.Format("2006-01-02") + "\n" +
				"    key:          " + c.KeyAlgorithm + " (e=" + fmt.Sprint(shown.PublicKey.PublicExponent) + ")\n" +
				"    signature:    " + c.SignatureAlgorithm + "\n" +
				"    organization: " + c.Organization + "\n" +
				"    status:       " + ui.CertificateStatus(shown.Revoked)
		}
		return nil
	},
}

var identityPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Re-encrypts your keystore under a new password",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}
		newPw, err := readPassword("New password: ", true)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read new password: %v", err)
		}

		spinner, cleanup := startSpinner("Changing password...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		if err := workflows.ChangePassword(ctx, workflows.ChangePasswordOptions{IdentityOptions: opts, NewPassword: newPw}); err != nil {
			return failure(spinner, "Failed to change password", err)
		}
		spinner.FinalMSG = color.GreenString("✓") + " Password changed for " + ui.Highlight.Sprint(opts.Username)
		return nil
	},
}

var identityRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Adds a certificate to the shared revocation ledger",
	Long: `Adds a certificate serial to the revocation ledger. Without --serial your
own certificate is revoked. Records it signed still decrypt, but every
signature check will report the signer as revoked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Revoking certificate...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		result, err := workflows.RevokeIdentity(ctx, workflows.RevokeOptions{IdentityOptions: opts, Serial: revokeSerial})
		if err != nil {
			return failure(spinner, "Failed to revoke certificate", err)
		}
		if result.AlreadyRevoked {
			spinner.FinalMSG = color.YellowString("⚠") + " Certificate " + ui.Serial.Sprint(result.Serial) + " was already revoked"
			return nil
		}
		spinner.FinalMSG = color.GreenString("✓") + " Certificate " + ui.Serial.Sprint(result.Serial) + " revoked"
		return nil
	},
}

var identityExportKeyCmd = &cobra.Command{
	Use:   "export-key",
	Short: "Writes your private key as PKCS#8 PEM",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := unlockOptions()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}
		transport := ""
		if !exportKeyPlain {
			if transport, err = readPassword("Transport password: ", true); err != nil {
				return Logger.ErrorfAndReturn("Failed to read transport password: %v", err)
			}
		}

		spinner, cleanup := startSpinner("Exporting private key...")
		defer cleanup()

		ctx, cancel := withContext()
		defer cancel()
		result, err := workflows.ExportPrivateKey(ctx, workflows.ExportPrivateKeyOptions{
			IdentityOptions:   opts,
			TransportPassword: transport,
			OutputPath:        exportKeyOut,
		})
		if err != nil {
			return failure(spinner, "Failed to export private key", err)
		}

		msg := color.GreenString("✓") + " Private key written to " + ui.Path.Sprint(result.OutputPath)
		if !result.Encrypted {
			msg += "\n" + color.YellowString("⚠") + " The key is not encrypted. Anyone with this file can open your records"
		}
		spinner.FinalMSG = msg
		return nil
	},
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists identities in the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := workflows.ListIdentities(Config)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to list identities: %v", err)
		}
		if len(names) == 0 {
			fmt.Println(color.YellowString("⚠") + " No identities in " + ui.Path.Sprint(Config.UsersDir()))
			return nil
		}
		var b strings.Builder
		b.WriteString(color.GreenString("✓") + " Identities:\n")
		for _, name := range names {
			b.WriteString("    - " + ui.Highlight.Sprint(name) + "\n")
		}
		fmt.Print(b.String())
		return nil
	},
}
