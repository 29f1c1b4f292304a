// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// custody acquires evidence from an attached Android device and seals
// it into an encrypted, hash-ledgered workspace.
package main

import (
	"errors"
	"os"

	"github.com/custodyworks/custody/cmd/custody/cli"
	"github.com/custodyworks/custody/lib/process"
)

func main() {
	err := root().Execute(os.Args[1:])
	// Commands that print their own report return an ExitError; no
	// extra "error:" line for those.
	var exitError *cli.ExitError
	if errors.As(err, &exitError) {
		os.Exit(exitError.ExitCode())
	}
	os.Exit(process.Report(os.Stderr, err))
}

func root() *cli.Command {
	return &cli.Command{
		Name:    "custody",
		Summary: "Android evidence acquisition and chain-of-custody sealing",
		Description: `custody acquires data from an attached Android device into a case
workspace, records a SHA-256 integrity ledger and a custody record,
then packs, encrypts and destroys the plaintext. A completed workspace
holds only the encrypted archive, its key file, hashes.txt,
metadata.json and acquisition.log.`,
		Subcommands: []*cli.Command{
			acquireCommand(),
			decryptCommand(),
			verifyCommand(),
			versionCommand(),
		},
	}
}
