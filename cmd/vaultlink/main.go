// cmd/vaultlink/main.go
// VaultLink – loopback companion-device bridge for the vault application.
// Serves stored credentials to a paired browser extension over a
// one-request-per-connection JSON line protocol on 127.0.0.1.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"

	"github.com/OsbornePro/VaultLink/internal/bridge"
	"github.com/OsbornePro/VaultLink/internal/pairing"
	"github.com/OsbornePro/VaultLink/internal/store"
	"github.com/OsbornePro/VaultLink/internal/vault"
)

const (
	keyringService       = "VaultLink"
	keyringPairingSecret = "pairingSharedSecret"
	keyringStoreKey      = "store-key"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    true,
		QuoteEmptyFields: true,
	})
}

func openStore() (store.KV, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return store.OpenSQLite(cfg.StorePath)
	case "file":
		key, err := store.KeyFromKeyring(keyringService, keyringStoreKey)
		if err != nil {
			return nil, fmt.Errorf("sealing key: %w", err)
		}
		return store.OpenSealedFile(cfg.StorePath, key)
	default:
		return nil, fmt.Errorf("unknown store_backend %q (use sqlite or file)", cfg.StoreBackend)
	}
}

// Service wrapper
type program struct {
	quit   chan struct{}
	server *bridge.Server
	kv     store.KV
}

func (p *program) Start(s service.Service) error {
	p.quit = make(chan struct{})
	go p.run()
	return nil
}

func (p *program) run() {
	if err := loadConfig(); err != nil {
		logrus.Fatalf("Config load failed: %v", err)
	}
	if cfg.LogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	kv, err := openStore()
	if err != nil {
		logrus.Fatalf("Store init failed: %v", err)
	}
	p.kv = kv

	secrets := pairing.KeyringSecret{Service: keyringService, Account: keyringPairingSecret}
	pairings := pairing.NewStore(kv, secrets)

	creds := vault.NewFileSource(cfg.CredentialsFile)
	dispatcher := bridge.NewDispatcher(
		pairings,
		creds,
		vault.DomainMatcher{},
		creds,
		bridge.AppIdentity{Name: cfg.AppName, Version: cfg.AppVersion},
	)

	p.server = bridge.NewServer(bridge.Config{
		ListenAddr:  cfg.ListenAddr,
		IOTimeout:   readTimeout(),
		MaxSessions: cfg.MaxSessions,
	}, dispatcher)

	if err := p.server.Start(); err != nil {
		logrus.Fatalf("Bridge start failed: %v", err)
	}
	logrus.Infof("VaultLink %s started on %s", version, p.server.Addr())

	<-p.quit

	p.server.Stop()
	if err := p.kv.Close(); err != nil {
		logrus.WithError(err).Warn("store close")
	}
	logrus.Info("VaultLink stopped")
}

func (p *program) Stop(s service.Service) error {
	close(p.quit)
	return nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("VaultLink %s (built %s)\n", version, buildDate)
		os.Exit(0)
	}

	svcConfig := &service.Config{
		Name:        "VaultLink",
		DisplayName: "VaultLink Bridge",
		Description: "Loopback bridge that serves vault credentials to a paired browser extension.",
	}

	prg := &program{}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		logrus.Fatal(err)
	}

	if len(os.Args) > 1 {
		if err := service.Control(s, os.Args[1]); err != nil {
			logrus.Fatalf("Service command failed: %v", err)
		}
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() { <-c; _ = s.Stop() }()

	if err := s.Run(); err != nil {
		logrus.Fatal(err)
	}
}
