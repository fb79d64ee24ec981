package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ActionRegister = "register"
	ActionUpdate   = "update"
	ActionToken    = "token"
)

const (
	HeaderOrigin                    = "Origin"
	HeaderAllow                     = "Allow"
	HeaderContentType               = "Content-Type"
	HeaderAuthorization             = "Authorization"
	HeaderRequestID                 = "X-Request-Id"
	HeaderAccessControlAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowHeaders = "Access-Control-Allow-Headers"
	HeaderAccessControlAllowMethods = "Access-Control-Allow-Methods"
	HeaderVary                      = "Vary"

	ContentTypeJSON = "application/json"
)

type IncomingRequest struct {
	Method    string
	Path      string
	Origin    string
	Body      []byte
	HasBody   bool
	RequestID string
	// BodyError is set by transports that failed to read the body. It is
	// rendered after the method and origin checks.
	BodyError error
}

type OutgoingResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       any
}

// EncodeBody renders the response body. A nil body encodes to no bytes.
func (r OutgoingResponse) EncodeBody() ([]byte, error) {
	switch typed := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return typed, nil
	case json.RawMessage:
		return typed, nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil, fmt.Errorf("core: encode response body: %w", err)
		}
		return encoded, nil
	}
}

type ConsentAction interface {
	ActionName() string
	Validate() error
	consentAction()
}

type RegisterAction struct {
	Name                  string
	Email                 string
	Phone                 string
	ConsentProfileID      string
	ConsentProfileVersion int
	PublicURLExpiry       int
	SessionExpiry         int
	// ProfileFromRequest marks a consentProfileId supplied by the caller.
	ProfileFromRequest bool
}

func (RegisterAction) ActionName() string { return ActionRegister }

func (RegisterAction) consentAction() {}

func (a RegisterAction) Validate() error {
	if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Email) == "" || strings.TrimSpace(a.Phone) == "" {
		return BadRequestError(MessageMissingFields, MessageRegisterFieldsRequired)
	}
	if strings.TrimSpace(a.ConsentProfileID) == "" {
		return BadRequestError(MessageProfileIDRequired, nil)
	}
	return nil
}

type UpdateAction struct {
	PrincipalID       string
	PreferenceURLType string
	PublicURLExpiry   int
	SessionExpiry     int
}

func (UpdateAction) ActionName() string { return ActionUpdate }

func (UpdateAction) consentAction() {}

func (a UpdateAction) Validate() error {
	if strings.TrimSpace(a.PrincipalID) == "" {
		return BadRequestError(MessagePrincipalIDRequired, nil)
	}
	return nil
}

type RawTokenAction struct{}

func (RawTokenAction) ActionName() string { return ActionToken }

func (RawTokenAction) consentAction() {}

func (RawTokenAction) Validate() error { return nil }

type OAuthToken struct {
	AccessToken string
	TokenType   string
	Scope       string
	ExpiresAt   time.Time
}

func (t OAuthToken) ExpiresAtEpochSeconds() int64 {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	return t.ExpiresAt.Unix()
}

// Valid reports whether the token is usable at now with margin to spare.
func (t OAuthToken) Valid(now time.Time, margin time.Duration) bool {
	if strings.TrimSpace(t.AccessToken) == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type RegisterRequest struct {
	ConsentProfileID      string    `json:"consentProfileId"`
	ConsentProfileVersion int       `json:"consentProfileVersion"`
	Principal             Principal `json:"principal"`
	PublicURLExpiry       int       `json:"publicUrlExpiry"`
	SessionExpiry         int       `json:"sessionExpiry"`
}

type UpdateRequest struct {
	PrincipalID       string `json:"principalId"`
	PreferenceURLType string `json:"preferenceUrlType"`
	PublicURLExpiry   int    `json:"publicUrlExpiry"`
	SessionExpiry     int    `json:"sessionExpiry"`
}

type RegisterResult struct {
	ConsentURL     string `json:"consentUrl"`
	CPID           string `json:"cpid"`
	ProfileID      string `json:"profileId,omitempty"`
	ProfileVersion int    `json:"profileVersion,omitempty"`
}

type UpdateResult struct {
	PrivacyCenterURL string `json:"privacyCenterUrl"`
	PrincipalID      string `json:"principalId"`
}

type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

func NewRequestID() string {
	return uuid.NewString()
}

// NewCPID builds the principal identifier sent to the provider. The suffix is
// appended only when non-empty.
func NewCPID(email string, at time.Time, suffix string) string {
	cpid := fmt.Sprintf("%s-%d", email, at.UnixMilli())
	if suffix = strings.TrimSpace(suffix); suffix != "" {
		cpid += "-" + suffix
	}
	return cpid
}
