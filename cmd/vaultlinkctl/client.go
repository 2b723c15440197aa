package main

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/OsbornePro/VaultLink/internal/pairing"
	"github.com/OsbornePro/VaultLink/internal/protocol"
)

// roundTrip sends one request line to the daemon and reads the single
// response line, mirroring the one-request-per-connection wire contract.
func roundTrip(req protocol.Message) (protocol.Message, error) {
	conn, err := net.DialTimeout("tcp", flagAddr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", flagAddr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	b, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(b); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return protocol.Decode(line)
}

func printMessage(m protocol.Message) error {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newRequestID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Probe the bridge and print its identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := roundTrip(&protocol.Handshake{
			RequestID:     newRequestID(),
			ClientName:    "vaultlinkctl",
			ClientVersion: "1.0",
			Protocol:      protocol.ProtocolName,
			ProtocolVer:   protocol.ProtocolVersion,
		})
		if err != nil {
			return err
		}
		return printMessage(resp)
	},
}

var (
	flagDeviceName string
	flagSecretB64  string
)

var associateCmd = &cobra.Command{
	Use:   "associate",
	Short: "Create a pairing using the shared secret",
	Long: `Generates a fresh client key, proves knowledge of the shared secret
(from the OS keyring, or --secret) via HMAC-SHA256, and prints the pairing id
the daemon assigns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := sharedSecret()
		if err != nil {
			return err
		}

		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("rand client key: %w", err)
		}
		clientKey := base64.StdEncoding.EncodeToString(key)

		mac := hmac.New(sha256.New, secret)
		mac.Write([]byte(clientKey))

		resp, err := roundTrip(&protocol.TestAssociate{
			RequestID:  newRequestID(),
			Key:        clientKey,
			KeyHash:    hex.EncodeToString(mac.Sum(nil)),
			DeviceName: flagDeviceName,
		})
		if err != nil {
			return err
		}
		return printMessage(resp)
	},
}

var (
	flagURL       string
	flagPairingID string
)

var getLoginsCmd = &cobra.Command{
	Use:   "get-logins",
	Short: "Request credentials matching a URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := roundTrip(&protocol.GetLogins{
			RequestID: newRequestID(),
			URL:       flagURL,
			ID:        flagPairingID,
		})
		if err != nil {
			return err
		}
		return printMessage(resp)
	},
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Signal the vault to lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := roundTrip(&protocol.Lock{
			RequestID: newRequestID(),
			ID:        flagPairingID,
		})
		if err != nil {
			return err
		}
		return printMessage(resp)
	},
}

func init() {
	associateCmd.Flags().StringVar(&flagDeviceName, "device-name", hostnameOr("vaultlinkctl"), "device label for the pairing")
	associateCmd.Flags().StringVar(&flagSecretB64, "secret", "", "shared secret (base64; default: OS keyring)")
	getLoginsCmd.Flags().StringVar(&flagURL, "url", "", "requested URL")
	getLoginsCmd.Flags().StringVar(&flagPairingID, "id", "", "pairing id")
	_ = getLoginsCmd.MarkFlagRequired("url")
	_ = getLoginsCmd.MarkFlagRequired("id")
	lockCmd.Flags().StringVar(&flagPairingID, "id", "", "pairing id")
	_ = lockCmd.MarkFlagRequired("id")
}

func sharedSecret() ([]byte, error) {
	if flagSecretB64 != "" {
		b, err := base64.StdEncoding.DecodeString(flagSecretB64)
		if err != nil {
			return nil, fmt.Errorf("--secret is not valid base64: %w", err)
		}
		return b, nil
	}
	return pairing.KeyringSecret{Service: keyringService, Account: keyringPairingSecret}.SharedSecret()
}

func hostnameOr(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
}
