package protocol

// ErrorCode is the structured failure taxonomy surfaced in ErrorMessage.Code.
// UNAUTHORIZED, PAIRING_EXISTS and URL_NOT_MATCHED are reserved: defined for
// clients but not currently emitted.
type ErrorCode string

const (
	ErrProtocol            ErrorCode = "PROTOCOL_ERROR"
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrNotPaired           ErrorCode = "NOT_PAIRED"
	ErrInvalidSharedSecret ErrorCode = "INVALID_SHARED_SECRET"
	ErrPairingExists       ErrorCode = "PAIRING_EXISTS"
	ErrDatabaseLocked      ErrorCode = "DATABASE_LOCKED"
	ErrURLNotMatched       ErrorCode = "URL_NOT_MATCHED"
	ErrInternal            ErrorCode = "INTERNAL_ERROR"
)

// NewError builds the ErrorMessage response for a request, echoing its id.
func NewError(requestID string, code ErrorCode, msg string) *ErrorMessage {
	return &ErrorMessage{RequestID: requestID, Code: code, Message: msg}
}

// ParseError reports an unparseable or unrecognized inbound line. RequestID
// is the id recovered from the envelope, if any, so the error response can
// still correlate.
type ParseError struct {
	RequestID string
	Reason    string
}

func (e *ParseError) Error() string { return "protocol: " + e.Reason }
