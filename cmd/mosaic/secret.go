// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mosaic-dev/mosaic/internal/provider"
	"github.com/mosaic-dev/mosaic/internal/secrets"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage API keys stored in the OS keyring",
		Long: "Store, list and delete secrets kept in the operating system keyring.\n" +
			"Reference a stored key from mosaic.yaml as keyring://<service>/<name>.",
	}
	cmd.PersistentFlags().String("service", secrets.DefaultService, "keyring service name")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <provider|name>",
			Short: "Store a secret read from stdin",
			Long:  "Store a secret. A provider name stores its API key as <provider>.api_key.",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretSet,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored secret names",
			RunE:  runSecretList,
		},
		&cobra.Command{
			Use:   "delete <provider|name>",
			Short: "Delete a stored secret",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretDelete,
		},
	)
	return cmd
}

func secretStore(cmd *cobra.Command) secrets.Store {
	service, _ := cmd.Flags().GetString("service")
	return secretOpener(service)
}

// secretKey maps a provider name or alias to its API key entry and leaves
// other names alone.
func secretKey(name string) string {
	if canonical, err := provider.CanonicalName(name); err == nil {
		return secrets.ProviderKey(canonical)
	}
	return name
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	key := secretKey(args[0])
	store := secretStore(cmd)

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Enter value for %s: ", key)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	value := strings.TrimSpace(line)
	if value == "" {
		if err != nil && !errors.Is(err, io.EOF) {
			return mosaicerr.Errorf(mosaicerr.CodeCLIInputInvalid, "reading secret: %w", err)
		}
		return mosaicerr.New(mosaicerr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	if err := store.Set(key, value); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nStored %s. Reference it as: %s\n", key, secrets.KeyringURI(store.Service(), key))
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStore(cmd).List()
	if err != nil {
		return mosaicerr.Errorf(mosaicerr.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	key := secretKey(args[0])
	if err := secretStore(cmd).Delete(key); err != nil {
		if mosaicerr.HasCode(err, mosaicerr.CodeSecretNotFound) {
			return mosaicerr.Errorf(mosaicerr.CodeSecretNotFound, "secret %q not found", key)
		}
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", key)
	return nil
}
