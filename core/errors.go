package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput                 = "CONSENT_BAD_INPUT"
	ErrorOriginRejected           = "CONSENT_ORIGIN_REJECTED"
	ErrorMethodNotAllowed         = "CONSENT_METHOD_NOT_ALLOWED"
	ErrorEndpointDisabled         = "CONSENT_ENDPOINT_DISABLED"
	ErrorConfigurationMissing     = "CONSENT_CONFIGURATION_MISSING"
	ErrorPayloadTooLarge          = "CONSENT_PAYLOAD_TOO_LARGE"
	ErrorUpstreamAuthFailed       = "CONSENT_UPSTREAM_AUTH_FAILED"
	ErrorUpstreamOperationFailed  = "CONSENT_UPSTREAM_OPERATION_FAILED"
	ErrorUpstreamShapeInvalid     = "CONSENT_UPSTREAM_SHAPE_INVALID"
	ErrorInternal                 = "CONSENT_INTERNAL_ERROR"
	MetadataDetails               = "details"
	MetadataUpstreamStatus        = "upstream_status"
	MessageInvalidJSON            = "Invalid JSON body"
	MessageMissingFields          = "Missing required fields"
	MessageRegisterFieldsRequired = "name, email and phone are required"
	MessageProfileIDRequired      = "consentProfileId is required"
	MessagePrincipalIDRequired    = "principalId is required for update"
	MessageInvalidAction          = "Invalid action. Use 'register' or 'update'."
	MessageBodyTooLarge           = "Request body too large"
	MessageMethodNotAllowed       = "Method not allowed"
	MessageOriginNotAllowed       = "Origin not allowed"
	MessageCredentialsMissing     = "Client credentials are missing."
	MessageTokenFailed            = "Failed to obtain access token"
	MessageTokenEndpointDisabled  = "Token endpoint is disabled"
	MessageNoConsentCollectURL    = "No consentCollectUrl returned"
	MessageNoPrivacyCenterURL     = "No privacyCenterUrl returned"
	DetailUpstreamUnreachable     = "upstream unreachable"
	DetailUpstreamTimedOut        = "upstream timed out"
	DetailUpstreamCancelled       = "upstream request cancelled"
	OperationRegister             = "Consent registration"
	OperationUpdate               = "Consent update"
)

func newGatewayError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	details any,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	merged := make(map[string]any, len(metadata)+1)
	for key, value := range metadata {
		merged[key] = value
	}
	if details != nil {
		merged[MetadataDetails] = details
	}
	if len(merged) > 0 {
		err.WithMetadata(merged)
	}
	return err
}

func BadRequestError(message string, details any) error {
	return newGatewayError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput, details, nil)
}

func OriginRejectedError(origin string) error {
	return newGatewayError(MessageOriginNotAllowed, goerrors.CategoryAuthz, http.StatusForbidden, ErrorOriginRejected, nil,
		map[string]any{"origin": origin})
}

func MethodNotAllowedError(method string) error {
	return newGatewayError(MessageMethodNotAllowed, goerrors.CategoryBadInput, http.StatusMethodNotAllowed, ErrorMethodNotAllowed, nil,
		map[string]any{"method": method})
}

func PayloadTooLargeError(limit int64) error {
	return newGatewayError(MessageBodyTooLarge, goerrors.CategoryBadInput, http.StatusRequestEntityTooLarge, ErrorPayloadTooLarge, nil,
		map[string]any{"limit_bytes": limit})
}

func EndpointDisabledError(message string) error {
	return newGatewayError(message, goerrors.CategoryNotFound, http.StatusNotFound, ErrorEndpointDisabled, nil, nil)
}

func ConfigurationMissingError() error {
	return newGatewayError(MessageCredentialsMissing, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorConfigurationMissing, nil, nil)
}

func UpstreamAuthError(status int, body []byte) error {
	return newGatewayError(MessageTokenFailed, goerrors.CategoryExternal, http.StatusInternalServerError, ErrorUpstreamAuthFailed,
		DetailsFromBody(body), map[string]any{MetadataUpstreamStatus: status})
}

func WrapUpstreamAuthError(source error) error {
	if source == nil {
		return UpstreamAuthError(0, nil)
	}
	err := newGatewayError(MessageTokenFailed, goerrors.CategoryExternal, http.StatusInternalServerError, ErrorUpstreamAuthFailed,
		upstreamFailureDetail(source), nil)
	err.Source = source
	return err
}

// UpstreamOperationError keeps the downstream status so callers can tell
// validation failures from provider outages.
func UpstreamOperationError(operation string, status int, body []byte) error {
	code := status
	if code < http.StatusBadRequest || code > 599 {
		code = http.StatusBadGateway
	}
	return newGatewayError(operation+" failed", goerrors.CategoryExternal, code, ErrorUpstreamOperationFailed,
		DetailsFromBody(body), map[string]any{MetadataUpstreamStatus: status})
}

func WrapUpstreamOperationError(source error, operation string) error {
	if source == nil {
		return UpstreamOperationError(operation, http.StatusBadGateway, nil)
	}
	err := newGatewayError(operation+" failed", goerrors.CategoryExternal, http.StatusBadGateway, ErrorUpstreamOperationFailed,
		upstreamFailureDetail(source), nil)
	err.Source = source
	return err
}

// upstreamFailureDetail describes a failed call without its URL or the
// transport error text. The source stays on the error for logs.
func upstreamFailureDetail(source error) string {
	switch {
	case errors.Is(source, context.Canceled):
		return DetailUpstreamCancelled
	case isTimeout(source):
		return DetailUpstreamTimedOut
	default:
		return DetailUpstreamUnreachable
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

func UpstreamShapeError(message string, body []byte) error {
	return newGatewayError(message, goerrors.CategoryExternal, http.StatusInternalServerError, ErrorUpstreamShapeInvalid,
		DetailsFromBody(body), nil)
}

func InternalError(message string) error {
	return newGatewayError(message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorInternal, nil, nil)
}

// MapError converts any error into a rich envelope. Plain errors become
// internal errors carrying their own message.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryInternal).WithTextCode(ErrorInternal))
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatusForCategory(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuthz:
		return ErrorOriginRejected
	case goerrors.CategoryExternal:
		return ErrorUpstreamOperationFailed
	default:
		return ErrorInternal
	}
}

func httpStatusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorDetails returns the client-safe details attached to err, if any.
func ErrorDetails(err error) any {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil || len(richErr.Metadata) == 0 {
		return nil
	}
	return richErr.Metadata[MetadataDetails]
}

// DetailsFromBody decodes a downstream body for relaying to the client.
// Sensitive keys are dropped, invalid JSON is relayed as trimmed text.
func DetailsFromBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return string(trimmed)
	}
	return StripSensitiveValue(decoded)
}
