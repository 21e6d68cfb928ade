package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrNotFound                = errors.New("resource not found")
	ErrRunInProgress           = errors.New("run already in progress for contract")
	ErrAlreadySettled          = errors.New("contract already settled")
	ErrMalformedOracleResponse = errors.New("malformed oracle response")
	ErrOracleUnavailable       = errors.New("decision oracle unavailable")
	ErrTransferNotConfigured   = errors.New("transfer executor not configured")
	ErrStorageUnavailable      = errors.New("storage unavailable")
	ErrNeedsReconciliation     = errors.New("settlement outcome unknown, reconcile on-chain before retrying")
	ErrNegotiationClosed       = errors.New("negotiation already closed for contract")
)

// TransferError is returned by transfer executors when a transfer did not
// confirm. TxHash is set when the transaction was submitted before the
// failure, so an operator can reconcile on-chain state.
type TransferError struct {
	TxHash string
	Err    error
}

func (e *TransferError) Error() string {
	if e.TxHash == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (tx %s)", e.Err, e.TxHash)
}

func (e *TransferError) Unwrap() error { return e.Err }
