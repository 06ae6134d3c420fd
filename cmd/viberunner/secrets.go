package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"viberunner/pkg/config"
)

func newSecretsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted secrets file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Store a secret in <state_dir>/secrets.json.enc",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			password, err := config.ResolvePassword(os.Getenv, config.TerminalPrompt)
			if err != nil {
				return err
			}
			if err := config.SetSecretInFile(cfg.StateDir, password, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Stored %s in %s\n", args[0], config.SecretsPath(cfg.StateDir))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List secret names stored in the secrets file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			secrets, err := config.LoadSecrets(cfg.StateDir, os.Getenv, config.TerminalPrompt)
			if err != nil {
				return err
			}
			for _, name := range secrets.FileNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	return cmd
}
