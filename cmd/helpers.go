package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/ui"
	"github.com/PolarWolf314/inkseal/internal/utils"
	"github.com/PolarWolf314/inkseal/internal/workflows"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// IMPORTANT: spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// automatically calls ui.EnsureNewline() on the final message before printing it.
func startSpinner(message string) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	quiet := !verbose && !debug
	if quiet {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if quiet {
			log.SetOutput(os.Stdout)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		if quiet {
			s.Stop()
		}

		// Print final message to stdout (for tests to capture).
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

var (
	stdinPasswords []string
	stdinLoaded    bool
)

func resetStdinPasswords() {
	stdinPasswords = nil
	stdinLoaded = false
}

// setStdinPasswords preloads the lines --password-stdin would read.
func setStdinPasswords(lines ...string) {
	stdinPasswords = lines
	stdinLoaded = true
}

// readPassword returns the next password from stdin when --password-stdin
// is set, otherwise prompts on the terminal. The spinner must not be running.
func readPassword(prompt string, confirm bool) (string, error) {
	if passwordStdin {
		if !stdinLoaded {
			lines, err := utils.ReadPasswordStdin()
			if err != nil {
				return "", err
			}
			stdinPasswords = lines
			stdinLoaded = true
		}
		if len(stdinPasswords) == 0 {
			return "", fmt.Errorf("not enough passwords on stdin (wanted %s)", strings.TrimSuffix(strings.ToLower(prompt), ": "))
		}
		pw := stdinPasswords[0]
		stdinPasswords = stdinPasswords[1:]
		return pw, nil
	}

	if !utils.IsTerminal() {
		return "", fmt.Errorf("stdin is not a terminal (hint: pipe passwords with --password-stdin)")
	}
	var (
		pw  []byte
		err error
	)
	if confirm {
		pw, err = utils.ReadNewPassphrase(prompt)
	} else {
		pw, err = utils.ReadPassphrase(prompt)
	}
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// currentUser resolves --user or falls back to the system username.
func currentUser() (string, error) {
	if username != "" {
		return username, nil
	}
	name, err := utils.GetUsername()
	if err != nil {
		return "", fmt.Errorf("failed to determine username (use --user): %w", err)
	}
	return utils.SanitizeUsername(name), nil
}

// unlockOptions resolves the identity and reads its password.
func unlockOptions() (workflows.IdentityOptions, error) {
	name, err := currentUser()
	if err != nil {
		return workflows.IdentityOptions{}, err
	}
	opts := workflows.IdentityOptions{Config: Config, Username: name, Logger: Logger}
	pw, err := readPassword("Password for "+name+": ", false)
	if err != nil {
		return opts, err
	}
	opts.Password = pw
	return opts, nil
}

// failure renders err as a final spinner message. Errors that mean the data
// could not be trusted or read are also returned so the process exits
// non-zero.
func failure(s *spinner.Spinner, action string, err error) error {
	s.FinalMSG = color.RedString("✗") + " " + action + "\n" + describeError(err)
	Logger.Debugf("%s: %v", action, err)
	for _, fatal := range []error{
		kerrors.ErrAuthentication,
		kerrors.ErrDecryption,
		kerrors.ErrCorruptStore,
		kerrors.ErrNoCertificate,
	} {
		if errors.Is(err, fatal) {
			return err
		}
	}
	return nil
}

func describeError(err error) string {
	arrow := color.CyanString("→") + " "
	switch {
	case errors.Is(err, kerrors.ErrAuthentication):
		return arrow + "Wrong password, or the keystore was modified"
	case errors.Is(err, kerrors.ErrDecryption):
		return arrow + "The record could not be decrypted with this identity"
	case errors.Is(err, kerrors.ErrCorruptStore):
		return arrow + "Stored data is damaged: " + err.Error()
	case errors.Is(err, kerrors.ErrNoCertificate):
		return arrow + "This identity has no certificate"
	case errors.Is(err, kerrors.ErrIdentityNotFound):
		return arrow + "Create one with " + ui.Code.Sprint("inkseal identity create")
	case errors.Is(err, kerrors.ErrIdentityExists):
		return arrow + "Pick another name with " + ui.Flag.Sprint("--user")
	case errors.Is(err, kerrors.ErrCertificateRevoked):
		return arrow + "Your certificate is revoked. Create a new identity or pass " + ui.Flag.Sprint("--force")
	case errors.Is(err, kerrors.ErrRecordNotFound):
		return arrow + "List records with " + ui.Code.Sprint("inkseal record list")
	case errors.Is(err, kerrors.ErrAborted):
		return arrow + "Timed out; raise the limits in the [timeouts] config section"
	default:
		return color.RedString("Error: ") + err.Error()
	}
}

// withContext returns a context cancelled on interrupt.
func withContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
