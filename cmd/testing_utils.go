// Package cmd contains testing utilities shared between command tests.
// This file provides common functions for setting up an isolated data
// directory, capturing output, and running the CLI in-process.
package cmd

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/PolarWolf314/inkseal/internal/configs"
)

// setupTestConfig points the CLI at a fresh data directory and restores
// global state afterwards.
func setupTestConfig(t *testing.T) *configs.Config {
	t.Helper()
	dataDir := t.TempDir()
	cfg := configs.Default()
	cfg.Paths.DataDir = dataDir
	cfg.Paths.RevocationLedger = filepath.Join(dataDir, "revoked_certificates.json")

	ResetGlobalState()
	SetConfig(cfg)
	t.Cleanup(ResetGlobalState)
	return cfg
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	outputChan := make(chan string, 2)
	copyAll := func(r io.Reader) {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, r); err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		outputChan <- buf.String()
	}
	go copyAll(stdoutReader)
	go copyAll(stderrReader)

	err := fn()

	stdoutWriter.Close()
	stderrWriter.Close()

	os.Stdout = originalStdout
	os.Stderr = originalStderr

	stdout := <-outputChan
	stderr := <-outputChan

	return stdout + stderr, err
}

// runCLI executes the root command with args, feeding passwords as if they
// were piped with --password-stdin.
func runCLI(t *testing.T, passwords []string, args ...string) (string, error) {
	t.Helper()
	verbose, debug, username, passwordStdin = false, false, "", false
	resetCobraFlagState(RootCmd)
	resetIdentityCommandState()
	resetRecordCommandState()
	resetExchangeCommandState()
	resetBenchCommandState()
	resetStdinPasswords()
	if passwords != nil {
		setStdinPasswords(passwords...)
		args = append(args, "--password-stdin")
	}

	RootCmd.SetArgs(args)
	return captureOutput(func() error {
		RootCmd.SetOut(os.Stdout)
		RootCmd.SetErr(os.Stderr)
		return RootCmd.Execute()
	})
}
