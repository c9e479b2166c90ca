package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage 返回带具体信息的副本，Code 不变
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Payroll Errors (30000+)
var (
	ErrEndpointUnreachable = Errno{Code: 30001, Message: "RPC endpoint unreachable"}
	ErrMalformedBatch      = Errno{Code: 30002, Message: "Malformed batch payload"}
	ErrInvalidRecipient    = Errno{Code: 30003, Message: "Invalid recipient entry"}
	ErrSigning             = Errno{Code: 30004, Message: "Signing key unavailable"}
	ErrRunInProgress       = Errno{Code: 30005, Message: "Another payroll run is in progress for this sender"}
	ErrRunCancelled        = Errno{Code: 30006, Message: "Payroll run cancelled"}
	ErrLedgerRead          = Errno{Code: 30007, Message: "Ledger unreadable"}
	ErrRosterUnavailable   = Errno{Code: 30008, Message: "Roster unavailable"}
)
