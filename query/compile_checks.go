package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-consent-gateway/core"
)

var (
	_ gocmd.Querier[RegisterConsentMessage, core.RegisterResult] = (*RegisterConsentQuery)(nil)
	_ gocmd.Querier[UpdatePreferencesMessage, core.UpdateResult] = (*UpdatePreferencesQuery)(nil)
	_ gocmd.Querier[IssueTokenMessage, core.TokenResult]         = (*IssueTokenQuery)(nil)
	_ gocmd.Message                                              = RegisterConsentMessage{}
	_ gocmd.Message                                              = UpdatePreferencesMessage{}
	_ gocmd.Message                                              = IssueTokenMessage{}
)
