// Package lambdahttp runs an http.Handler behind API Gateway proxy
// integrations so the lambda entry point shares the server's router.
package lambdahttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// Handler adapts h to the lambda.Start signature. Events the proxy cannot
// convert are answered with a JSON 400 instead of an invocation error.
func Handler(h http.Handler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	adapter := httpadapter.New(h)
	return func(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		resp, err := adapter.ProxyWithContext(ctx, forwardIdentity(ev))
		if err != nil {
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusBadRequest,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"ok":false,"error":"invalid request"}`,
			}, nil
		}
		return resp, nil
	}
}

// forwardIdentity exposes the gateway's source IP and request id as
// X-Forwarded-For and X-Request-ID so RealIP and RequestID pick them up.
// Client supplied values win. The event's header maps are not mutated.
func forwardIdentity(ev events.APIGatewayProxyRequest) events.APIGatewayProxyRequest {
	extra := map[string]string{}
	if ip := ev.RequestContext.Identity.SourceIP; ip != "" && !hasHeader(ev, "X-Forwarded-For") {
		extra["X-Forwarded-For"] = ip
	}
	if rid := ev.RequestContext.RequestID; rid != "" && !hasHeader(ev, "X-Request-ID") {
		extra["X-Request-ID"] = rid
	}
	if len(extra) == 0 {
		return ev
	}

	headers := make(map[string]string, len(ev.Headers)+len(extra))
	for k, v := range ev.Headers {
		headers[k] = v
	}
	var multi map[string][]string
	if ev.MultiValueHeaders != nil {
		multi = make(map[string][]string, len(ev.MultiValueHeaders)+len(extra))
		for k, vs := range ev.MultiValueHeaders {
			multi[k] = vs
		}
	}
	for k, v := range extra {
		headers[k] = v
		if multi != nil {
			multi[k] = []string{v}
		}
	}
	ev.Headers = headers
	ev.MultiValueHeaders = multi
	return ev
}

func hasHeader(ev events.APIGatewayProxyRequest, name string) bool {
	for k, v := range ev.Headers {
		if strings.EqualFold(k, name) && v != "" {
			return true
		}
	}
	for k, vs := range ev.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return true
		}
	}
	return false
}
