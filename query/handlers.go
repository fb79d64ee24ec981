package query

import (
	"context"

	"github.com/goliatone/go-consent-gateway/core"
)

type RegisterConsentQuery struct {
	operations core.Operations
}

func NewRegisterConsentQuery(operations core.Operations) *RegisterConsentQuery {
	return &RegisterConsentQuery{operations: operations}
}

func (q *RegisterConsentQuery) Query(ctx context.Context, msg RegisterConsentMessage) (core.RegisterResult, error) {
	if q == nil || q.operations == nil {
		return core.RegisterResult{}, queryDependencyError("query: consent operations are required")
	}
	return q.operations.RegisterConsent(ctx, msg.Action)
}

type UpdatePreferencesQuery struct {
	operations core.Operations
}

func NewUpdatePreferencesQuery(operations core.Operations) *UpdatePreferencesQuery {
	return &UpdatePreferencesQuery{operations: operations}
}

func (q *UpdatePreferencesQuery) Query(ctx context.Context, msg UpdatePreferencesMessage) (core.UpdateResult, error) {
	if q == nil || q.operations == nil {
		return core.UpdateResult{}, queryDependencyError("query: consent operations are required")
	}
	return q.operations.UpdatePreferences(ctx, msg.Action)
}

type IssueTokenQuery struct {
	operations core.Operations
}

func NewIssueTokenQuery(operations core.Operations) *IssueTokenQuery {
	return &IssueTokenQuery{operations: operations}
}

func (q *IssueTokenQuery) Query(ctx context.Context, _ IssueTokenMessage) (core.TokenResult, error) {
	if q == nil || q.operations == nil {
		return core.TokenResult{}, queryDependencyError("query: consent operations are required")
	}
	return q.operations.IssueToken(ctx)
}

// Set bundles the three queries the request handler dispatches to.
type Set struct {
	Register *RegisterConsentQuery
	Update   *UpdatePreferencesQuery
	Token    *IssueTokenQuery
}

func NewSet(operations core.Operations) Set {
	return Set{
		Register: NewRegisterConsentQuery(operations),
		Update:   NewUpdatePreferencesQuery(operations),
		Token:    NewIssueTokenQuery(operations),
	}
}
