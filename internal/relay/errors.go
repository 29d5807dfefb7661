package relay

// Error codes for protocol-visible failures. Expected business conditions
// (chat not found, admin message without a target) are returned as values
// and translated to error frames; they never unwind a connection handler.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeForbidden      = "forbidden"
	ErrCodeUnknownType    = "unknown_type"
	ErrCodeMessageTooLong = "message_too_long"
	ErrCodeNoChatSelected = "no_chat_selected"
	ErrCodeChatNotFound   = "chat_not_found"
	ErrCodeStoreFailure   = "store_failure"
)

// Error is a recoverable per-frame failure reported to the sender only.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func relayError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}
