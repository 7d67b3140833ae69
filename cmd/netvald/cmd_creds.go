package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
	"github.com/netval-app/netval/pkg/vault"
)

var (
	credsUsername string
	credsKeyPath  string
)

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage device credentials in the OS secret store",
	Long: `Manage SSH credentials for devices.

Credential material lives in the host OS secret store; the topology
database only holds an opaque reference.

Examples:
  netvald creds set <device-id> --username admin
  netvald creds set <device-id> --username admin --key ~/.ssh/lab_ed25519
  netvald creds delete <device-id>`,
}

var credsSetCmd = &cobra.Command{
	Use:   "set <device-id>",
	Short: "Store credentials for a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if credsUsername == "" {
			return fmt.Errorf("--username is required")
		}
		ctx := context.Background()
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		d, err := st.GetDevice(ctx, args[0])
		if err != nil {
			return err
		}

		m := vault.Material{Username: credsUsername, KeyPath: credsKeyPath}
		if credsKeyPath == "" {
			fmt.Fprintf(os.Stderr, "Password for %s@%s: ", credsUsername, d.Hostname)
			pw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			m.Password = strings.TrimSpace(string(pw))
		}

		v := vault.New()
		if d.CredentialRef != "" {
			if err := v.Delete(d.CredentialRef); err != nil {
				util.Warnf("revoking old credential: %v", err)
			}
		}
		ref, err := v.Store(d.ProjectID, d.ID, m)
		if err != nil {
			return err
		}
		if err := st.SetDeviceCredentialRef(ctx, d.ID, ref); err != nil {
			return err
		}
		fmt.Printf("Stored credentials for %s\n", d.Hostname)
		return nil
	},
}

var credsDeleteCmd = &cobra.Command{
	Use:   "delete <device-id>",
	Short: "Remove a device's stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		d, err := st.GetDevice(ctx, args[0])
		if err != nil {
			return err
		}
		if d.CredentialRef == "" {
			fmt.Printf("No credentials stored for %s\n", d.Hostname)
			return nil
		}
		if err := vault.New().Delete(d.CredentialRef); err != nil {
			return err
		}
		if err := st.SetDeviceCredentialRef(ctx, d.ID, ""); err != nil {
			return err
		}
		fmt.Printf("Removed credentials for %s\n", d.Hostname)
		return nil
	},
}

func init() {
	credsSetCmd.Flags().StringVarP(&credsUsername, "username", "u", "", "SSH username")
	credsSetCmd.Flags().StringVarP(&credsKeyPath, "key", "k", "", "Path to SSH private key (skips password prompt)")
	credsCmd.AddCommand(credsSetCmd)
	credsCmd.AddCommand(credsDeleteCmd)
}
