package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type AppError struct {
	Code      string
	Message   string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewConfigError(msg string) *AppError {
	return &AppError{
		Code:      "E100",
		Message:   msg,
		Severity:  SeverityCritical,
		Retryable: false,
		cause:     nil,
	}
}

func NewStoreError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:      "E200",
		Message:   fmt.Sprintf("Store error: %s", underlyingMsg),
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

func NewTransportError(botID string, cause error) *AppError {
	return &AppError{
		Code:      "E300",
		Message:   fmt.Sprintf("Telegram transport error for bot %s", botID),
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewTraversalError(msg string) *AppError {
	return &AppError{
		Code:      "E400",
		Message:   msg,
		Severity:  SeverityMedium,
		Retryable: false,
		cause:     nil,
	}
}
