package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/PolarWolf314/inkseal/internal/configs"
	logger "github.com/PolarWolf314/inkseal/internal/logging"
)

var (
	verbose       bool
	debug         bool
	username      string
	passwordStdin bool
	configPath    string

	Logger logger.Logger
	Config *configs.Config

	RootCmd = &cobra.Command{
		Use:   "inkseal",
		Short: "inkseal - sealed personal records with signed, revocable identities",
		Long: `inkseal stores personal records encrypted for an RSA identity and signed
with a timestamp, so tampering, stale copies and revoked signers are detected.

Features:
  - Create password-protected identities with self-signed certificates
  - Seal, open, update and search encrypted records
  - Share records as signed packages and check them on import
  - Revoke compromised certificates on a shared ledger

Run 'inkseal help <command>' for more details on a specific command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing inkseal with verbose=%t, debug=%t", verbose, debug)

			if Config != nil {
				return nil
			}
			path := configPath
			if path == "" {
				var err error
				if path, err = configs.DefaultConfigPath(); err != nil {
					return Logger.ErrorfAndReturn("Failed to locate config: %v", err)
				}
			}
			cfg, err := configs.Load(path)
			if err != nil {
				return Logger.ErrorfAndReturn("Failed to load config: %v", err)
			}
			Logger.Debugf("Loaded config from %s (data dir %s)", path, cfg.Paths.DataDir)
			Config = cfg
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	RootCmd.PersistentFlags().StringVarP(&username, "user", "u", "", "identity to act as (defaults to the system username)")
	RootCmd.PersistentFlags().BoolVar(&passwordStdin, "password-stdin", false, "read passwords from stdin, one per line")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml")

	RootCmd.AddCommand(identityCmd)
	RootCmd.AddCommand(revocationsCmd)
	RootCmd.AddCommand(recordCmd)
	RootCmd.AddCommand(exportCmd)
	RootCmd.AddCommand(importCmd)
	RootCmd.AddCommand(benchCmd)
	RootCmd.AddCommand(configCmd)
}

// Helper functions for testing

// GetRootCmd returns the RootCmd for testing.
func GetRootCmd() *cobra.Command {
	return RootCmd
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	username = ""
	passwordStdin = false
	configPath = ""
	Config = nil
	resetStdinPasswords()
	resetIdentityCommandState()
	resetRecordCommandState()
	resetExchangeCommandState()
	resetBenchCommandState()
	resetCobraFlagState(RootCmd)
}

// resetCobraFlagState clears the Changed mark on every flag so one test's
// flags do not leak into the next.
func resetCobraFlagState(cmd *cobra.Command) {
	reset := func(flag *pflag.Flag) {
		flag.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetCobraFlagState(sub)
	}
}

// SetConfig injects a configuration for testing.
func SetConfig(c *configs.Config) {
	Config = c
}

// SetLogger sets the logger for testing.
func SetLogger(l logger.Logger) {
	Logger = l
}
