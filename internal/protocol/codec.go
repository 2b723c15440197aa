package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the first decode pass: just enough to pick the variant and
// recover the requestId for error correlation.
type envelope struct {
	MessageType Kind   `json:"messageType"`
	RequestID   string `json:"requestId"`
}

// Decode parses one wire line (trailing newline optional) into its typed
// variant. Unknown or absent messageType fails with *ParseError; the
// dispatcher maps that to PROTOCOL_ERROR.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, &ParseError{Reason: "empty message"}
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("malformed json: %v", err)}
	}
	if env.MessageType == "" {
		return nil, &ParseError{RequestID: env.RequestID, Reason: "missing messageType"}
	}

	var msg Message
	switch env.MessageType {
	case KindHandshake:
		msg = &Handshake{}
	case KindHandshakeResponse:
		msg = &HandshakeResponse{}
	case KindTestAssociate:
		msg = &TestAssociate{}
	case KindAssociateResponse:
		msg = &AssociateResponse{}
	case KindGetLogins:
		msg = &GetLogins{}
	case KindLoginResponse:
		msg = &LoginResponse{}
	case KindLock:
		msg = &Lock{}
	case KindError:
		msg = &ErrorMessage{}
	default:
		return nil, &ParseError{
			RequestID: env.RequestID,
			Reason:    fmt.Sprintf("unknown messageType %q", env.MessageType),
		}
	}

	if err := json.Unmarshal(line, msg); err != nil {
		return nil, &ParseError{RequestID: env.RequestID, Reason: fmt.Sprintf("bad %s: %v", env.MessageType, err)}
	}
	return msg, nil
}

// Encode serializes msg as one newline-terminated JSON line, stamping the
// messageType tag so callers cannot emit a mistagged variant.
func Encode(msg Message) ([]byte, error) {
	switch v := msg.(type) {
	case *Handshake:
		v.MessageType = KindHandshake
	case *HandshakeResponse:
		v.MessageType = KindHandshakeResponse
	case *TestAssociate:
		v.MessageType = KindTestAssociate
	case *AssociateResponse:
		v.MessageType = KindAssociateResponse
	case *GetLogins:
		v.MessageType = KindGetLogins
	case *LoginResponse:
		v.MessageType = KindLoginResponse
	case *Lock:
		v.MessageType = KindLock
	case *ErrorMessage:
		v.MessageType = KindError
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", msg)
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s: %w", msg.Kind(), err)
	}
	return append(b, '\n'), nil
}
