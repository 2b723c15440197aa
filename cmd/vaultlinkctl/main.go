// vaultlinkctl is the operator companion to the vaultlink daemon: it manages
// the out-of-band pairing secret, inspects the pairing store, and speaks the
// real wire protocol for diagnostics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	keyringService       = "VaultLink"
	keyringPairingSecret = "pairingSharedSecret"
	keyringStoreKey      = "store-key"
)

var (
	flagAddr      string
	flagStore     string
	flagStorePath string
)

var rootCmd = &cobra.Command{
	Use:           "vaultlinkctl",
	Short:         "Manage and exercise the VaultLink bridge",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "127.0.0.1:19455", "bridge address")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "sqlite", "pairing store backend (sqlite or file)")
	rootCmd.PersistentFlags().StringVar(&flagStorePath, "store-path", "", "pairing store path (defaults per backend)")

	rootCmd.AddCommand(handshakeCmd)
	rootCmd.AddCommand(associateCmd)
	rootCmd.AddCommand(getLoginsCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(pairingsCmd)
	rootCmd.AddCommand(secretCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
