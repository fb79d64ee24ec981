// Package lambda adapts the gateway handler to API Gateway proxy events, the
// shape Netlify Functions also deliver.
package lambda

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/goliatone/go-consent-gateway/core"
)

type Handler interface {
	Handle(ctx context.Context, req core.IncomingRequest) core.OutgoingResponse
}

type Adapter struct {
	handler Handler
}

func New(handler Handler) *Adapter {
	return &Adapter{handler: handler}
}

// Handle never returns an error; failures are already rendered by the
// gateway handler.
func (a *Adapter) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp := a.handler.Handle(ctx, ToIncomingRequest(event))
	return ToProxyResponse(resp), nil
}

// Start blocks serving lambda invocations.
func Start(handler Handler) {
	awslambda.Start(New(handler).Handle)
}

func ToIncomingRequest(event events.APIGatewayProxyRequest) core.IncomingRequest {
	body := []byte(event.Body)
	if event.IsBase64Encoded && event.Body != "" {
		// An undecodable body stays as-is and fails JSON parsing downstream.
		if decoded, err := base64.StdEncoding.DecodeString(event.Body); err == nil {
			body = decoded
		}
	}
	requestID := headerValue(event, core.HeaderRequestID)
	if requestID == "" {
		requestID = event.RequestContext.RequestID
	}
	path := event.Path
	if path == "" {
		path = event.Resource
	}
	return core.IncomingRequest{
		Method:    strings.ToUpper(event.HTTPMethod),
		Path:      path,
		Origin:    headerValue(event, core.HeaderOrigin),
		Body:      body,
		HasBody:   len(body) > 0,
		RequestID: requestID,
	}
}

func ToProxyResponse(resp core.OutgoingResponse) events.APIGatewayProxyResponse {
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	encoded, err := resp.EncodeBody()
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{core.HeaderContentType: core.ContentTypeJSON},
			Body:       `{"error":"failed to encode response"}`,
		}
	}
	headers := make(map[string]string, len(resp.Headers))
	for key, value := range resp.Headers {
		headers[key] = value
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(encoded),
	}
}

// headerValue looks a header up case-insensitively in both header maps.
func headerValue(event events.APIGatewayProxyRequest, name string) string {
	for key, value := range event.Headers {
		if strings.EqualFold(key, name) {
			return strings.TrimSpace(value)
		}
	}
	for key, values := range event.MultiValueHeaders {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}
