package lambda

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goliatone/go-consent-gateway/core"
)

type recordingHandler struct {
	last     core.IncomingRequest
	response core.OutgoingResponse
}

func (h *recordingHandler) Handle(_ context.Context, req core.IncomingRequest) core.OutgoingResponse {
	h.last = req
	return h.response
}

func TestAdapter_MapsEventAndResponse(t *testing.T) {
	handler := &recordingHandler{response: core.OutgoingResponse{
		StatusCode: http.StatusForbidden,
		Headers:    map[string]string{core.HeaderAccessControlAllowOrigin: "https://evil.com"},
		Body:       map[string]string{"error": "Origin not allowed"},
	}}
	resp, err := New(handler).Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "post",
		Path:       "/.netlify/functions/consent-register",
		Headers:    map[string]string{"origin": "https://evil.com", "x-request-id": "req-5"},
		Body:       `{"name":"A"}`,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden || resp.Body != `{"error":"Origin not allowed"}` {
		t.Fatalf("unexpected response %#v", resp)
	}
	if resp.Headers[core.HeaderAccessControlAllowOrigin] != "https://evil.com" {
		t.Fatalf("expected headers copied, got %#v", resp.Headers)
	}

	got := handler.last
	if got.Method != http.MethodPost || got.Origin != "https://evil.com" || got.RequestID != "req-5" {
		t.Fatalf("unexpected incoming request %#v", got)
	}
	if got.Path != "/.netlify/functions/consent-register" || string(got.Body) != `{"name":"A"}` || !got.HasBody {
		t.Fatalf("unexpected incoming request %#v", got)
	}
}

func TestToIncomingRequest_DecodesBase64AndFallsBack(t *testing.T) {
	req := ToIncomingRequest(events.APIGatewayProxyRequest{
		HTTPMethod:        "POST",
		Resource:          "/update",
		IsBase64Encoded:   true,
		Body:              base64.StdEncoding.EncodeToString([]byte(`{"principalId":"P"}`)),
		MultiValueHeaders: map[string][]string{"ORIGIN": {"https://consent.in"}},
		RequestContext:    events.APIGatewayProxyRequestContext{RequestID: "aws-1"},
	})
	if string(req.Body) != `{"principalId":"P"}` {
		t.Fatalf("expected decoded body, got %s", req.Body)
	}
	if req.Path != "/update" || req.Origin != "https://consent.in" || req.RequestID != "aws-1" {
		t.Fatalf("unexpected request %#v", req)
	}
}

func TestToIncomingRequest_EmptyBody(t *testing.T) {
	req := ToIncomingRequest(events.APIGatewayProxyRequest{HTTPMethod: "OPTIONS"})
	if req.HasBody || req.Origin != "" {
		t.Fatalf("unexpected request %#v", req)
	}
}

func TestToProxyResponse_EmptyBody(t *testing.T) {
	resp := ToProxyResponse(core.OutgoingResponse{StatusCode: http.StatusOK, Headers: map[string]string{"Vary": "Origin"}})
	if resp.Body != "" || resp.Headers["Vary"] != "Origin" {
		t.Fatalf("unexpected proxy response %#v", resp)
	}
}
