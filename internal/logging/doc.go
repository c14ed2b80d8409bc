// Package logger provides leveled console logging for inkseal.
//
// The logger supports two verbosity switches controlled by command-line
// flags:
//
//   - --verbose: Shows info messages
//   - --debug: Shows info and debug messages
//
// Warnings and errors are always written to stderr.
//
// # Usage
//
//	log := Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Loaded keystore for %s", username)
//
// The zero value is a valid logger that only prints warnings and errors,
// which is what the core packages use when no logger is injected.
package logger
