package core

import (
	"errors"
	"strings"
)

// Ledger errors. The message of each error is its protocol code, so a wrapped
// error such as "bid: ALREADY_CLOSED" still carries the code a caller matches on.
var (
	ErrForbidden          = errors.New("FORBIDDEN")
	ErrInvalidProductCode = errors.New("BAD_PCODE")
	ErrNotAuthorized      = errors.New("NOT_AUTHORIZED")
	ErrAlreadyClosed      = errors.New("ALREADY_CLOSED")
	ErrBidNotFound        = errors.New("BID_NOT_FOUND")
	ErrNotStarted         = errors.New("NOT_STARTED")
	ErrProductNotLive     = errors.New("PRODUCT_NOT_LIVE")
	ErrInvalidAmount      = errors.New("BAD_AMOUNT")
	ErrInvalidPrice       = errors.New("BAD_PRICE")
	ErrInvalidWindow      = errors.New("BAD_WINDOW")
	ErrIndexOutOfRange    = errors.New("INDEX_OUT_OF_RANGE")
)

var ledgerErrors = []error{
	ErrForbidden,
	ErrInvalidProductCode,
	ErrNotAuthorized,
	ErrAlreadyClosed,
	ErrBidNotFound,
	ErrNotStarted,
	ErrProductNotLive,
	ErrInvalidAmount,
	ErrInvalidPrice,
	ErrInvalidWindow,
	ErrIndexOutOfRange,
}

// ErrorCode returns the protocol code of a ledger error, or "" if err is not
// (and does not wrap) one of the ledger errors.
func ErrorCode(err error) string {
	for _, ledgerErr := range ledgerErrors {
		if errors.Is(err, ledgerErr) {
			return ledgerErr.Error()
		}
	}
	return ""
}

// ErrorFromCode maps a protocol code back to its ledger error. Unknown codes
// return nil.
func ErrorFromCode(code string) error {
	code = strings.TrimSpace(code)
	for _, ledgerErr := range ledgerErrors {
		if ledgerErr.Error() == code {
			return ledgerErr
		}
	}
	return nil
}
