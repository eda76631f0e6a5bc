package proxy

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
)

type eventKind int

const (
	kindTemplate eventKind = iota
	kindProxy
	kindHTTPAPI
)

type eventProbe struct {
	Version    string `json:"version"`
	RawPath    string `json:"rawPath"`
	HTTPMethod string `json:"httpMethod"`
}

func detectEvent(raw json.RawMessage) (eventKind, error) {
	var p eventProbe
	if err := json.Unmarshal(raw, &p); err != nil {
		return kindTemplate, err
	}
	switch {
	case p.Version == "2.0" || p.RawPath != "":
		return kindHTTPAPI, nil
	case p.HTTPMethod != "":
		return kindProxy, nil
	default:
		return kindTemplate, nil
	}
}

// HandleEvent is the Lambda entry point. It accepts REST proxy events, HTTP API
// v2 events and template-mapped events, and answers in the matching response shape.
// Failures are always returned as responses so API Gateway never sees a raw fault.
func (g *Gateway) HandleEvent(ctx context.Context, raw json.RawMessage) (any, error) {
	requestID := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}

	kind, err := detectEvent(raw)
	if err != nil {
		resp := g.respond(ctx, requestID, Record{}, &MalformedRequestError{Reason: "unreadable event", Err: err})
		return proxyResponse(resp), nil
	}

	switch kind {
	case kindHTTPAPI:
		var e events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(raw, &e); err != nil {
			resp := g.respond(ctx, requestID, Record{}, &MalformedRequestError{Reason: "unreadable event", Err: err})
			return httpAPIResponse(resp), nil
		}
		if requestID == "" {
			requestID = e.RequestContext.RequestID
		}
		rec, err := g.normalizer.FromHTTPAPIEvent(e)
		return httpAPIResponse(g.respond(ctx, requestID, rec, err)), nil

	case kindProxy:
		var e events.APIGatewayProxyRequest
		if err := json.Unmarshal(raw, &e); err != nil {
			resp := g.respond(ctx, requestID, Record{}, &MalformedRequestError{Reason: "unreadable event", Err: err})
			return proxyResponse(resp), nil
		}
		if requestID == "" {
			requestID = e.RequestContext.RequestID
		}
		rec, err := g.normalizer.FromProxyEvent(e)
		return proxyResponse(g.respond(ctx, requestID, rec, err)), nil

	default:
		var e TemplateEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			resp := g.respond(ctx, requestID, Record{}, &MalformedRequestError{Reason: "unreadable event", Err: err})
			return proxyResponse(resp), nil
		}
		rec, err := g.normalizer.FromTemplateEvent(e)
		return proxyResponse(g.respond(ctx, requestID, rec, err)), nil
	}
}

func proxyResponse(r Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: r.StatusCode,
		Headers:    r.Headers,
		Body:       r.Body,
	}
}

func httpAPIResponse(r Response) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: r.StatusCode,
		Headers:    r.Headers,
		Body:       r.Body,
	}
}
