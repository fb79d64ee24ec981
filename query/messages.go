package query

import (
	"strings"

	"github.com/goliatone/go-consent-gateway/core"
)

const (
	TypeRegisterConsent   = "consent.query.register"
	TypeUpdatePreferences = "consent.query.update"
	TypeIssueToken        = "consent.query.token"
)

type RegisterConsentMessage struct {
	Action core.RegisterAction
}

func (RegisterConsentMessage) Type() string { return TypeRegisterConsent }

// Validate checks the caller supplied fields. The consent profile may still
// come from configuration, so it is checked once defaults are applied.
func (m RegisterConsentMessage) Validate() error {
	if strings.TrimSpace(m.Action.Name) == "" {
		return queryValidationError("name", core.MessageRegisterFieldsRequired)
	}
	if strings.TrimSpace(m.Action.Email) == "" {
		return queryValidationError("email", core.MessageRegisterFieldsRequired)
	}
	if strings.TrimSpace(m.Action.Phone) == "" {
		return queryValidationError("phone", core.MessageRegisterFieldsRequired)
	}
	return nil
}

type UpdatePreferencesMessage struct {
	Action core.UpdateAction
}

func (UpdatePreferencesMessage) Type() string { return TypeUpdatePreferences }

func (m UpdatePreferencesMessage) Validate() error {
	if strings.TrimSpace(m.Action.PrincipalID) == "" {
		return queryValidationError("principalId", core.MessagePrincipalIDRequired)
	}
	return nil
}

type IssueTokenMessage struct{}

func (IssueTokenMessage) Type() string { return TypeIssueToken }

func (IssueTokenMessage) Validate() error { return nil }
