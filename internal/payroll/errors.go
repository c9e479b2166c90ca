package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrEndpointUnreachable = errors.New("payroll: endpoint unreachable")
	ErrMalformedBatch      = errors.New("payroll: malformed batch")
	ErrInvalidRecipient    = errors.New("payroll: invalid recipient")
	ErrSigning             = errors.New("payroll: signing failed")
	ErrSubmission          = errors.New("payroll: submission failed")
	ErrConfirmationTimeout = errors.New("payroll: confirmation timeout")
	ErrLedgerWrite         = errors.New("payroll: ledger write failed")
	ErrRunCancelled        = errors.New("payroll: run cancelled")
	ErrRunInProgress       = errors.New("payroll: run already in progress for sender")
)

// RecipientError 批次中某一条记录无效
type RecipientError struct {
	Index     int
	Recipient string
	Reason    string
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("%v: entry %d (%q): %s", ErrInvalidRecipient, e.Index, e.Recipient, e.Reason)
}

func (e *RecipientError) Unwrap() error {
	return ErrInvalidRecipient
}
