package gateway

import (
	"bytes"
	"strings"

	"github.com/goliatone/go-consent-gateway/core"
	"github.com/tidwall/gjson"
)

// route is what the request path pins the action to. routeMultiplex defers
// to the body's action field.
type route string

const (
	routeMultiplex route = ""
	routeRegister  route = core.ActionRegister
	routeUpdate    route = core.ActionUpdate
	routeToken     route = core.ActionToken
)

// Token routes answer 404 unless token.expose_endpoint is set, and then return
// the cached token with its remaining lifetime rather than the raw upstream JSON.
var routeAliases = map[string]route{
	"register":         routeRegister,
	"consent-register": routeRegister,
	"update":           routeUpdate,
	"token":            routeToken,
	"gettoken":         routeToken,
	"get-token":        routeToken,
}

// resolveRoute reduces any prefix (/.netlify/functions/x, /api/x) to its last
// segment. Unknown segments multiplex on the body.
func resolveRoute(path string) route {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if forced, ok := routeAliases[strings.ToLower(trimmed)]; ok {
		return forced
	}
	return routeMultiplex
}

func normalizeBody(req core.IncomingRequest) []byte {
	if !req.HasBody {
		return []byte("{}")
	}
	trimmed := bytes.TrimSpace(req.Body)
	if len(trimmed) == 0 {
		return []byte("{}")
	}
	return trimmed
}

func parseAction(r route, body []byte) (core.ConsentAction, error) {
	if !gjson.ValidBytes(body) {
		return nil, core.BadRequestError(core.MessageInvalidJSON, nil)
	}
	name := string(r)
	if r == routeMultiplex {
		name = strings.ToLower(strings.TrimSpace(gjson.GetBytes(body, "action").String()))
		if name == "" {
			name = core.ActionRegister
		}
	}
	switch name {
	case core.ActionRegister:
		return parseRegister(body), nil
	case core.ActionUpdate:
		return parseUpdate(body), nil
	case core.ActionToken:
		return core.RawTokenAction{}, nil
	default:
		return nil, core.BadRequestError(core.MessageInvalidAction, nil)
	}
}

func parseRegister(body []byte) core.RegisterAction {
	fields := gjson.GetManyBytes(body,
		"name",
		"email",
		"phone",
		"consentProfileId",
		"consentProfileVersion",
		"publicUrlExpiry",
		"sessionExpiry",
	)
	profileID := strings.TrimSpace(scalar(fields[3]))
	return core.RegisterAction{
		Name:                  strings.TrimSpace(scalar(fields[0])),
		Email:                 strings.TrimSpace(scalar(fields[1])),
		Phone:                 strings.TrimSpace(scalar(fields[2])),
		ConsentProfileID:      profileID,
		ConsentProfileVersion: positiveInt(fields[4]),
		PublicURLExpiry:       positiveInt(fields[5]),
		SessionExpiry:         positiveInt(fields[6]),
		ProfileFromRequest:    profileID != "",
	}
}

func parseUpdate(body []byte) core.UpdateAction {
	fields := gjson.GetManyBytes(body,
		"principalId",
		"preferenceUrlType",
		"publicUrlExpiry",
		"sessionExpiry",
	)
	return core.UpdateAction{
		PrincipalID:       strings.TrimSpace(scalar(fields[0])),
		PreferenceURLType: strings.TrimSpace(scalar(fields[1])),
		PublicURLExpiry:   positiveInt(fields[2]),
		SessionExpiry:     positiveInt(fields[3]),
	}
}

// scalar accepts strings and numbers; objects, arrays and null count as absent.
func scalar(value gjson.Result) string {
	switch value.Type {
	case gjson.String, gjson.Number:
		return value.String()
	default:
		return ""
	}
}

func positiveInt(value gjson.Result) int {
	if value.Type != gjson.Number && value.Type != gjson.String {
		return 0
	}
	parsed := value.Int()
	if parsed <= 0 {
		return 0
	}
	return int(parsed)
}
