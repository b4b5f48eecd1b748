package errors

import (
	"errors"
)

type Code string

const (
	CodeParameterNotFound Code = "parameter_not_found"
	CodeParameterInvalid  Code = "parameter_invalid"
	CodeProviderNotFound  Code = "provider_not_found"
	CodeProviderConflict  Code = "provider_conflict"
	CodeTransactionState  Code = "transaction_state"
	CodeNotInitialized    Code = "not_initialized"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
)

const (
	CodeUnknown            Code = "unknown"
	CodeStorageUnavailable Code = "storage_unavailable"
)

var (
	ErrNotInitialized = New(CodeNotInitialized, "modeltest: session factory is not initialized", nil)
	ErrNilSession     = errors.New("modeltest: session is nil")
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}

	if e.Err != nil {
		return e.Err.Error()
	}

	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(code Code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsCode(err error, code Code) bool {
	var typed *Error
	if !errors.As(err, &typed) {
		return false
	}
	return typed.Code == code
}

func IsInternalCode(err error) bool {
	return IsCode(err, CodeUnknown) || IsCode(err, CodeStorageUnavailable)
}
