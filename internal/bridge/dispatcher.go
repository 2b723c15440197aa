// Package bridge is the network-facing half of the companion-device service:
// the loopback acceptor, the per-connection session handler, and the stateless
// request dispatcher that ties the wire protocol to the pairing store and the
// vault collaborators.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OsbornePro/VaultLink/internal/pairing"
	"github.com/OsbornePro/VaultLink/internal/protocol"
	"github.com/OsbornePro/VaultLink/internal/totp"
	"github.com/OsbornePro/VaultLink/internal/vault"
)

// CredentialSource is the bridge's read-only view of the decrypted vault.
// An error (vault.ErrLocked or otherwise unreadable) surfaces as
// DATABASE_LOCKED.
type CredentialSource interface {
	FetchAll(ctx context.Context) ([]vault.Credential, error)
}

// Matcher decides which credentials apply to a requested URL or package.
// Matching order and deduplication are entirely the matcher's business; the
// dispatcher keeps the source's natural iteration order.
type Matcher interface {
	IsMatch(c vault.Credential, requestURL, requestPackage string) bool
}

// Locker receives the lock-intent signal from an authorized Lock request.
// Locking itself is the vault application's job.
type Locker interface {
	RequestLock()
}

// LockerFunc adapts a plain function to Locker.
type LockerFunc func()

func (f LockerFunc) RequestLock() { f() }

// AppIdentity is what HandshakeResponse advertises.
type AppIdentity struct {
	Name    string
	Version string
}

// Dispatcher routes one decoded request to its handler. It holds no per-
// session state; every request is self-describing and independently
// validated against the pairing store.
type Dispatcher struct {
	pairings *pairing.Store
	creds    CredentialSource
	matcher  Matcher
	locker   Locker
	app      AppIdentity
	log      *logrus.Entry

	// test seam for TOTP step determinism
	now func() time.Time
}

func NewDispatcher(pairings *pairing.Store, creds CredentialSource, matcher Matcher, locker Locker, app AppIdentity) *Dispatcher {
	return &Dispatcher{
		pairings: pairings,
		creds:    creds,
		matcher:  matcher,
		locker:   locker,
		app:      app,
		log:      logrus.WithField("component", "dispatch"),
		now:      time.Now,
	}
}

// Dispatch handles one request and always produces exactly one response,
// echoing the request's id.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Message) protocol.Message {
	switch m := req.(type) {
	case *protocol.Handshake:
		return d.handleHandshake(m)
	case *protocol.TestAssociate:
		return d.handleAssociate(m)
	case *protocol.GetLogins:
		return d.handleGetLogins(ctx, m)
	case *protocol.Lock:
		return d.handleLock(m)
	default:
		// Response variants arriving as requests are a client bug.
		d.log.WithField("messageType", req.Kind()).Warn("unexpected request kind")
		return protocol.NewError(req.ReqID(), protocol.ErrProtocol, "unexpected message kind")
	}
}

func (d *Dispatcher) handleHandshake(m *protocol.Handshake) protocol.Message {
	d.log.WithFields(logrus.Fields{
		"client":  m.ClientName,
		"version": m.ClientVersion,
	}).Debug("handshake")

	return &protocol.HandshakeResponse{
		RequestID:    m.RequestID,
		AppName:      d.app.Name,
		AppVersion:   d.app.Version,
		Protocol:     protocol.ProtocolName,
		ProtocolVer:  protocol.ProtocolVersion,
		ServerIDHash: d.pairings.ServerIdentityHash(),
	}
}

func (d *Dispatcher) handleAssociate(m *protocol.TestAssociate) protocol.Message {
	id, err := d.pairings.Create(m.Key, m.KeyHash, m.DeviceName)
	if errors.Is(err, pairing.ErrSecretMismatch) {
		d.log.WithField("device", m.DeviceName).Warn("pairing rejected: bad key hash")
		return &protocol.AssociateResponse{
			RequestID: m.RequestID,
			Success:   false,
			ErrorMsg:  "Invalid shared secret",
		}
	}
	if err != nil {
		d.log.WithError(err).Error("pairing create failed")
		return protocol.NewError(m.RequestID, protocol.ErrInternal, "pairing store failure")
	}
	return &protocol.AssociateResponse{
		RequestID: m.RequestID,
		ID:        id,
		Success:   true,
	}
}

func (d *Dispatcher) handleGetLogins(ctx context.Context, m *protocol.GetLogins) protocol.Message {
	if !d.pairings.Validate(m.ID) {
		return protocol.NewError(m.RequestID, protocol.ErrNotPaired, "unknown or revoked pairing")
	}

	creds, err := d.creds.FetchAll(ctx)
	if err != nil {
		d.log.WithError(err).Warn("credential source unavailable")
		return protocol.NewError(m.RequestID, protocol.ErrDatabaseLocked, "credential database is locked")
	}

	entries := make([]protocol.Entry, 0)
	for _, c := range creds {
		if !d.matcher.IsMatch(c, m.URL, "") {
			continue
		}
		entries = append(entries, protocol.Entry{
			Name:     c.Title,
			Login:    c.Username,
			Password: c.Password,
			TOTP:     d.codeFor(c),
		})
	}

	d.log.WithFields(logrus.Fields{"url": m.URL, "count": len(entries)}).Debug("logins served")
	return &protocol.LoginResponse{
		RequestID: m.RequestID,
		Entries:   entries,
		Count:     len(entries),
	}
}

// codeFor derives the credential's current one-time code. A credential with
// no secret, or an undecodable one, simply yields no code.
func (d *Dispatcher) codeFor(c vault.Credential) string {
	if c.OTPSecret == "" {
		return ""
	}
	code, err := totp.Generate(c.OTPSecret, d.now().Unix())
	if err != nil {
		d.log.WithError(err).WithField("credential", c.Title).Warn("totp generation failed")
		return ""
	}
	return code
}

func (d *Dispatcher) handleLock(m *protocol.Lock) protocol.Message {
	if !d.pairings.Validate(m.ID) {
		return protocol.NewError(m.RequestID, protocol.ErrNotPaired, "unknown or revoked pairing")
	}
	d.locker.RequestLock()
	return &protocol.AssociateResponse{
		RequestID: m.RequestID,
		Success:   true,
	}
}
