// Package protocol defines the bridge wire format: one UTF-8 JSON object per
// line, tagged by messageType, with a requestId that every response echoes
// unchanged.
package protocol

// Kind is the messageType wire discriminant.
type Kind string

const (
	KindHandshake         Kind = "Handshake"
	KindHandshakeResponse Kind = "HandshakeResponse"
	KindTestAssociate     Kind = "TestAssociate"
	KindAssociateResponse Kind = "AssociateResponse"
	KindGetLogins         Kind = "GetLogins"
	KindLoginResponse     Kind = "LoginResponse"
	KindLock              Kind = "Lock"
	KindError             Kind = "Error"
)

// Fixed identity advertised in HandshakeResponse.
const (
	ProtocolName    = "vaultlink-bridge"
	ProtocolVersion = "1"

	// Port is the documented loopback port the daemon binds.
	Port = 19455
)

// Message is the closed set of bridge messages. Every variant carries its
// messageType tag (set by Encode) and a caller-supplied opaque requestId.
type Message interface {
	Kind() Kind
	ReqID() string
}

// Handshake is the client's opening capability probe. No pairing required.
type Handshake struct {
	MessageType   Kind   `json:"messageType"`
	RequestID     string `json:"requestId"`
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	Protocol      string `json:"protocol"`
	ProtocolVer   string `json:"protocolVersion"`
}

type HandshakeResponse struct {
	MessageType  Kind   `json:"messageType"`
	RequestID    string `json:"requestId"`
	AppName      string `json:"appName"`
	AppVersion   string `json:"appVersion"`
	Protocol     string `json:"protocol"`
	ProtocolVer  string `json:"protocolVersion"`
	ServerIDHash string `json:"serverIdHash"`
}

// TestAssociate asks the server to create a pairing. KeyHash must be the hex
// HMAC-SHA256 of Key under the out-of-band shared secret.
type TestAssociate struct {
	MessageType Kind   `json:"messageType"`
	RequestID   string `json:"requestId"`
	Key         string `json:"key"`
	KeyHash     string `json:"keyHash"`
	DeviceName  string `json:"deviceName"`
}

// AssociateResponse answers TestAssociate and (with only Success set) Lock.
// Hash is reserved and currently always empty.
type AssociateResponse struct {
	MessageType Kind   `json:"messageType"`
	RequestID   string `json:"requestId"`
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMessage"`
}

type GetLogins struct {
	MessageType Kind   `json:"messageType"`
	RequestID   string `json:"requestId"`
	URL         string `json:"url"`
	ID          string `json:"id"`
}

// Entry is the response-only projection of one stored credential. TOTP is ""
// when the credential has no one-time secret configured.
type Entry struct {
	Name     string `json:"name"`
	Login    string `json:"login"`
	Password string `json:"password"`
	TOTP     string `json:"totp"`
}

type LoginResponse struct {
	MessageType Kind    `json:"messageType"`
	RequestID   string  `json:"requestId"`
	Entries     []Entry `json:"entries"`
	Hash        string  `json:"hash"`
	Count       int     `json:"count"`
}

type Lock struct {
	MessageType Kind   `json:"messageType"`
	RequestID   string `json:"requestId"`
	ID          string `json:"id"`
}

// ErrorMessage is the universal failure variant.
type ErrorMessage struct {
	MessageType Kind      `json:"messageType"`
	RequestID   string    `json:"requestId"`
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
}

func (m *Handshake) Kind() Kind         { return KindHandshake }
func (m *HandshakeResponse) Kind() Kind { return KindHandshakeResponse }
func (m *TestAssociate) Kind() Kind     { return KindTestAssociate }
func (m *AssociateResponse) Kind() Kind { return KindAssociateResponse }
func (m *GetLogins) Kind() Kind         { return KindGetLogins }
func (m *LoginResponse) Kind() Kind     { return KindLoginResponse }
func (m *Lock) Kind() Kind              { return KindLock }
func (m *ErrorMessage) Kind() Kind      { return KindError }

func (m *Handshake) ReqID() string         { return m.RequestID }
func (m *HandshakeResponse) ReqID() string { return m.RequestID }
func (m *TestAssociate) ReqID() string     { return m.RequestID }
func (m *AssociateResponse) ReqID() string { return m.RequestID }
func (m *GetLogins) ReqID() string         { return m.RequestID }
func (m *LoginResponse) ReqID() string     { return m.RequestID }
func (m *Lock) ReqID() string              { return m.RequestID }
func (m *ErrorMessage) ReqID() string      { return m.RequestID }
