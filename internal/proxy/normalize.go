package proxy

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// BodyParsing selects how request bodies are exposed to the handler.
type BodyParsing string

const (
	// BodyParsingJSON parses JSON bodies and passes anything else through as a string.
	BodyParsingJSON BodyParsing = "json"
	// BodyParsingRaw always passes the body through as a string.
	BodyParsingRaw BodyParsing = "raw"
)

// Config holds the pipeline settings supplied at startup.
type Config struct {
	Timeout        time.Duration
	DefaultHeaders map[string]string
	BodyParsing    BodyParsing
	MaxBodyBytes   int64
}

// DefaultConfig mirrors the REST wiring: 30s budget, JSON responses, 6MB payloads.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		DefaultHeaders: map[string]string{"Content-Type": "application/json"},
		BodyParsing:    BodyParsingJSON,
		MaxBodyBytes:   6 << 20,
	}
}

// Normalizer converts transport requests into records. It holds no per-request state.
type Normalizer struct {
	mode    BodyParsing
	maxBody int64
}

func NewNormalizer(cfg Config) *Normalizer {
	mode := cfg.BodyParsing
	if mode == "" {
		mode = BodyParsingJSON
	}
	return &Normalizer{mode: mode, maxBody: cfg.MaxBodyBytes}
}

// FromHTTP normalizes a net/http request, reading its body.
func (n *Normalizer) FromHTTP(r *http.Request) (Record, error) {
	headers := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	if r.Host != "" {
		headers["Host"] = r.Host
	}

	query, err := parseRawQuery(r.URL.RawQuery)
	if err != nil {
		return Record{}, err
	}

	var body []byte
	if r.Body != nil {
		reader := io.Reader(r.Body)
		if n.maxBody > 0 {
			reader = io.LimitReader(r.Body, n.maxBody+1)
		}
		body, err = io.ReadAll(reader)
		if err != nil {
			return Record{}, &MalformedRequestError{Reason: "unreadable body", Err: err}
		}
	}
	if err := n.checkSize(body); err != nil {
		return Record{}, err
	}

	return newRecord(r.Method, r.URL.Path, headers, query, body, n.mode), nil
}

// FromProxyEvent normalizes a REST API proxy integration event.
func (n *Normalizer) FromProxyEvent(e events.APIGatewayProxyRequest) (Record, error) {
	headers := firstValues(e.MultiValueHeaders)
	for k, v := range e.Headers {
		headers[k] = v
	}

	query := firstValues(e.MultiValueQueryStringParameters)
	for k, v := range e.QueryStringParameters {
		query[k] = v
	}

	body, err := n.decodeBody(e.Body, e.IsBase64Encoded)
	if err != nil {
		return Record{}, err
	}

	return newRecord(e.HTTPMethod, e.Path, headers, query, body, n.mode), nil
}

// FromHTTPAPIEvent normalizes an HTTP API (payload version 2.0) event.
func (n *Normalizer) FromHTTPAPIEvent(e events.APIGatewayV2HTTPRequest) (Record, error) {
	headers := make(map[string]string, len(e.Headers)+1)
	for k, v := range e.Headers {
		headers[k] = v
	}
	if len(e.Cookies) > 0 {
		if _, ok := headers["cookie"]; !ok {
			headers["cookie"] = strings.Join(e.Cookies, "; ")
		}
	}

	var query map[string]string
	if e.RawQueryString != "" {
		q, err := parseRawQuery(e.RawQueryString)
		if err != nil {
			return Record{}, err
		}
		query = q
	} else {
		query = make(map[string]string, len(e.QueryStringParameters))
		for k, v := range e.QueryStringParameters {
			query[k] = v
		}
	}

	body, err := n.decodeBody(e.Body, e.IsBase64Encoded)
	if err != nil {
		return Record{}, err
	}

	path := e.RawPath
	if path == "" {
		path = e.RequestContext.HTTP.Path
	}

	return newRecord(e.RequestContext.HTTP.Method, path, headers, query, body, n.mode), nil
}

// TemplateEvent is the shape produced by the explicit request mapping template:
//
//	{"body": <json>, "headers": {...}, "path": "...", "queryStringParameters": {...}}
//
// The template does not carry the method, so records built from it use MethodAny
// unless a "method" key was added to the mapping.
type TemplateEvent struct {
	Body                  json.RawMessage   `json:"body"`
	Headers               map[string]string `json:"headers"`
	Method                string            `json:"method,omitempty"`
	Path                  string            `json:"path"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
}

// FromTemplateEvent normalizes a template-mapped event.
func (n *Normalizer) FromTemplateEvent(e TemplateEvent) (Record, error) {
	var body []byte
	trimmed := strings.TrimSpace(string(e.Body))
	if trimmed != "" && trimmed != "null" {
		body = []byte(trimmed)
		// a bare JSON string is the template's rendering of a text body
		var s string
		if n.mode == BodyParsingRaw && json.Unmarshal(body, &s) == nil {
			body = []byte(s)
		}
	}
	if err := n.checkSize(body); err != nil {
		return Record{}, err
	}

	return newRecord(e.Method, templatePath(e.Path), e.Headers, e.QueryStringParameters, body, n.mode), nil
}

func (n *Normalizer) decodeBody(body string, isBase64 bool) ([]byte, error) {
	var raw []byte
	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, &MalformedRequestError{Reason: "invalid base64 body", Err: err}
		}
		raw = b
	} else {
		raw = []byte(body)
	}
	if err := n.checkSize(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (n *Normalizer) checkSize(body []byte) error {
	if n.maxBody > 0 && int64(len(body)) > n.maxBody {
		return &MalformedRequestError{Reason: fmt.Sprintf("body exceeds %d bytes", n.maxBody)}
	}
	return nil
}

// parseRawQuery decodes an "&" separated query string keeping the first value of
// each key. Pairs containing ";" are dropped, as net/http does; bad escapes are
// malformed.
func parseRawQuery(raw string) (map[string]string, error) {
	out := map[string]string{}
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" || strings.Contains(pair, ";") {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, &MalformedRequestError{Reason: "invalid query string", Err: err}
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, &MalformedRequestError{Reason: "invalid query string", Err: err}
		}
		if _, seen := out[key]; !seen {
			out[key] = value
		}
	}
	return out, nil
}

func firstValues[M ~map[string][]string](m M) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// templatePath accepts either a plain path or the "{proxy=a/b}" rendering of
// $input.params().path and returns a rooted path.
func templatePath(p string) string {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
		inner := strings.TrimSuffix(strings.TrimPrefix(p, "{"), "}")
		p = ""
		for _, pair := range strings.Split(inner, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok && k == "proxy" {
				p = v
				break
			}
		}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
