package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OsbornePro/VaultLink/internal/pairing"
	"github.com/OsbornePro/VaultLink/internal/store"
)

// openStore opens the daemon's pairing store directly. The daemon should be
// stopped (file backend) or idle (sqlite) while mutating.
func openStore() (store.KV, error) {
	path := flagStorePath
	switch flagStore {
	case "sqlite":
		if path == "" {
			path = "vaultlink.db"
		}
		return store.OpenSQLite(path)
	case "file":
		if path == "" {
			path = "pairings.sealed"
		}
		key, err := store.KeyFromKeyring(keyringService, keyringStoreKey)
		if err != nil {
			return nil, fmt.Errorf("sealing key: %w", err)
		}
		return store.OpenSealedFile(path, key)
	default:
		return nil, fmt.Errorf("unknown store backend %q (use sqlite or file)", flagStore)
	}
}

func openPairings() (*pairing.Store, store.KV, error) {
	kv, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	secrets := pairing.KeyringSecret{Service: keyringService, Account: keyringPairingSecret}
	return pairing.NewStore(kv, secrets), kv, nil
}

var pairingsCmd = &cobra.Command{
	Use:   "pairings",
	Short: "Inspect and revoke pairings",
}

var pairingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pairings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		pairings, kv, err := openPairings()
		if err != nil {
			return err
		}
		defer kv.Close()

		recs, err := pairings.List()
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("no pairings")
			return nil
		}
		for _, r := range recs {
			fmt.Printf("%s  %-24s  %s\n", r.PairingID, r.DeviceName, r.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var pairingsRemoveCmd = &cobra.Command{
	Use:   "remove <pairing-id>",
	Short: "Revoke a pairing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairings, kv, err := openPairings()
		if err != nil {
			return err
		}
		defer kv.Close()

		if pairings.Remove(args[0]) {
			fmt.Println("revoked", args[0])
		} else {
			fmt.Println("no such pairing", args[0])
		}
		return nil
	},
}

func init() {
	pairingsCmd.AddCommand(pairingsListCmd)
	pairingsCmd.AddCommand(pairingsRemoveCmd)
}
