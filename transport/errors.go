package transport

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorTransportBadInput = "TRANSPORT_BAD_INPUT"
	ErrorTransportFailed   = "TRANSPORT_FAILED"
	ErrorTransportTimeout  = "TRANSPORT_TIMEOUT"
	ErrorTransportInternal = "TRANSPORT_INTERNAL_ERROR"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	textCode := transportTextCode(category)
	if IsTimeout(source) {
		textCode = ErrorTransportTimeout
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Timeout()
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == ErrorTransportTimeout
	}
	return false
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorTransportBadInput
	case goerrors.CategoryExternal:
		return ErrorTransportFailed
	default:
		return ErrorTransportInternal
	}
}
