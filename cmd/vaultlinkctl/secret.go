package main

import (
	"encoding/base64"
	"fmt"
	"net"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/OsbornePro/VaultLink/internal/pairing"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the out-of-band pairing secret",
	Long: `The pairing secret lives in the OS keyring and never crosses the
wire. The browser extension must learn it out of band: show it here and enter
it during extension setup, or render it as a QR image.`,
}

var secretShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the pairing secret (provisioning one if missing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		src := pairing.KeyringSecret{Service: keyringService, Account: keyringPairingSecret}
		secret, err := src.SharedSecret()
		if err != nil {
			return err
		}
		fmt.Println(base64.StdEncoding.EncodeToString(secret))
		return nil
	},
}

var secretRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Replace the pairing secret with a fresh one",
	Long: `Existing pairings stay valid; only future pairing attempts must
prove the new secret. Re-run extension setup afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src := pairing.KeyringSecret{Service: keyringService, Account: keyringPairingSecret}
		secret, err := src.Rotate()
		if err != nil {
			return err
		}
		fmt.Println(base64.StdEncoding.EncodeToString(secret))
		return nil
	},
}

var flagQROut string

var secretQRCmd = &cobra.Command{
	Use:   "qr",
	Short: "Write the pairing payload as a QR PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		src := pairing.KeyringSecret{Service: keyringService, Account: keyringPairingSecret}
		secret, err := src.SharedSecret()
		if err != nil {
			return err
		}

		host, portStr, err := net.SplitHostPort(flagAddr)
		if err != nil {
			return fmt.Errorf("bad --addr %q: %w", flagAddr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("bad port in --addr %q: %w", flagAddr, err)
		}

		payload, err := pairing.BuildPayload(secret, host, port)
		if err != nil {
			return err
		}
		if err := qrcode.WriteFile(string(payload), qrcode.Medium, 512, flagQROut); err != nil {
			return fmt.Errorf("write qr png: %w", err)
		}
		fmt.Println("wrote", flagQROut)
		return nil
	},
}

func init() {
	secretQRCmd.Flags().StringVar(&flagQROut, "out", "vaultlink_pairing.png", "output PNG path")
	secretCmd.AddCommand(secretShowCmd)
	secretCmd.AddCommand(secretRotateCmd)
	secretCmd.AddCommand(secretQRCmd)
}
