// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/custodyworks/custody/cmd/custody/cli"
	"github.com/custodyworks/custody/lib/vault"
)

type decryptFlags struct {
	keyPath    string
	output     string
	iterations int
}

func decryptCommand() *cli.Command {
	var flags decryptFlags
	return &cli.Command{
		Name:    "decrypt",
		Summary: "Decrypt a sealed evidence archive",
		Description: `Decrypt an evidence archive with its key file. The cipher is detected
from the archive header. The PBKDF2 iteration count is taken from the
key file banner when present.

The OpenSSL format can equally be decrypted with stock openssl; the
key file banner carries the exact command.`,
		Usage: "custody decrypt <archive.enc> [flags]",
		Examples: []cli.Example{
			{
				Description: "Decrypt next to the archive, finding the key file by timestamp",
				Command:     "custody decrypt evidence_20260501_100000.tar.gz.enc",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("decrypt", pflag.ContinueOnError)
			flagSet.StringVarP(&flags.keyPath, "key", "k", "", "key file (default: decryption_key_<timestamp>.txt beside the archive)")
			flagSet.StringVarP(&flags.output, "output", "o", "", "plaintext output (default: archive name without .enc)")
			flagSet.IntVar(&flags.iterations, "iterations", vault.MinIterations, "PBKDF2 iterations when the key file does not record them")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("decrypt takes exactly one archive path")
			}
			return runDecrypt(args[0], flags)
		},
	}
}

// keyFileFor maps evidence_<ts>.tar.gz.enc to decryption_key_<ts>.txt
// in the same directory.
func keyFileFor(archive string) (string, error) {
	name := filepath.Base(archive)
	stamp, ok := strings.CutPrefix(name, "evidence_")
	if !ok {
		return "", fmt.Errorf("cannot derive key file from %s; pass --key", name)
	}
	stamp, ok = strings.CutSuffix(stamp, ".tar.gz.enc")
	if !ok {
		return "", fmt.Errorf("cannot derive key file from %s; pass --key", name)
	}
	return filepath.Join(filepath.Dir(archive), "decryption_key_"+stamp+".txt"), nil
}

func runDecrypt(archive string, flags decryptFlags) (err error) {
	keyPath := flags.keyPath
	if keyPath == "" {
		if keyPath, err = keyFileFor(archive); err != nil {
			return err
		}
	}
	output := flags.output
	if output == "" {
		output = strings.TrimSuffix(archive, ".enc")
		if output == archive {
			return fmt.Errorf("%s has no .enc suffix; pass --output", archive)
		}
	}

	keyFile, err := vault.ReadKeyFile(keyPath)
	if err != nil {
		return fmt.Errorf("reading key file: %w", err)
	}
	defer keyFile.Key.Close()
	iterations := flags.iterations
	if keyFile.Iterations > 0 {
		iterations = keyFile.Iterations
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(output)
		}
	}()

	writer := bufio.NewWriterSize(file, 256*1024)
	if err := vault.Decrypt(ctx, archive, writer, keyFile.Key, iterations); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "decrypted %s -> %s\n", archive, output)
	return nil
}
