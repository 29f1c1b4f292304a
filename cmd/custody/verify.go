// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/custodyworks/custody/cmd/custody/cli"
	"github.com/custodyworks/custody/lib/casework"
	"github.com/custodyworks/custody/lib/vault"
)

func verifyCommand() *cli.Command {
	var iterations int
	return &cli.Command{
		Name:    "verify",
		Summary: "Check a sealed workspace against its ledger",
		Description: `Check that the final hashes.txt entry matches the encrypted archive,
that metadata.json counts the remaining entries, and that every
ledger entry matches the archived file. The archive is decrypted in
memory; no plaintext is written.`,
		Usage: "custody verify <workspace> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flagSet.IntVar(&iterations, "iterations", vault.MinIterations, "PBKDF2 iterations when the key file does not record them")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("verify takes exactly one workspace path")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := casework.Verify(ctx, args[0], iterations)
			if result == nil {
				return err
			}
			for _, path := range result.Mismatched {
				fmt.Printf("MISMATCH  %s\n", path)
			}
			for _, path := range result.Missing {
				fmt.Printf("MISSING   %s\n", path)
			}
			if err != nil {
				fmt.Printf("FAILED    %d of %d entries differ\n", len(result.Mismatched)+len(result.Missing), result.Checked)
				return &cli.ExitError{Code: 1}
			}
			fmt.Printf("OK        %d entries match %s\n", result.Checked, result.Encrypted)
			return nil
		},
	}
}
