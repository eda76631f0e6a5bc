// Package proxy translates requests arriving on the catch-all {proxy+} route into
// invocation records, runs the single backend handler and renders its result back
// into an HTTP response.
package proxy

import (
	"encoding/json"
	"errors"
	"net/textproto"
)

// MethodAny is recorded when the transport did not carry an HTTP method.
const MethodAny = "ANY"

// Record is the normalized view of one inbound request. It is immutable: accessors
// return copies.
type Record struct {
	method  string
	path    string
	headers map[string]string
	query   map[string]string
	body    any
	raw     []byte
}

// NewRecord builds a record from already-decoded request parts. The body is parsed
// as JSON when possible and kept as the raw string otherwise.
func NewRecord(method, path string, headers, query map[string]string, body []byte) Record {
	return newRecord(method, path, headers, query, body, BodyParsingJSON)
}

func newRecord(method, path string, headers, query map[string]string, body []byte, mode BodyParsing) Record {
	if method == "" {
		method = MethodAny
	}
	if path == "" {
		path = "/"
	}

	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[canonicalHeader(k)] = v
	}
	q := make(map[string]string, len(query))
	for k, v := range query {
		q[k] = v
	}

	raw := append([]byte(nil), body...)

	return Record{
		method:  method,
		path:    path,
		headers: h,
		query:   q,
		body:    parseBody(raw, mode),
		raw:     raw,
	}
}

func (r Record) Method() string { return r.method }

func (r Record) Path() string { return r.path }

// Header returns the value for name, matched case-insensitively.
func (r Record) Header(name string) string {
	return r.headers[canonicalHeader(name)]
}

// Headers returns a copy of the header mapping keyed by canonical header name.
func (r Record) Headers() map[string]string {
	return copyMap(r.headers)
}

// Query returns the decoded value of one query parameter.
func (r Record) Query(name string) string {
	return r.query[name]
}

// QueryParameters returns a copy of the query mapping. It is never nil.
func (r Record) QueryParameters() map[string]string {
	return copyMap(r.query)
}

// Body returns the parsed JSON value, or the raw string when the payload was not JSON.
// Objects and arrays are deep copies.
func (r Record) Body() any { return copyJSON(r.body) }

// RawBody returns a copy of the body bytes as received.
func (r Record) RawBody() []byte {
	return append([]byte(nil), r.raw...)
}

// DecodeBody unmarshals the raw JSON body into v.
func (r Record) DecodeBody(v any) error {
	if len(r.raw) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(r.raw, v)
}

type recordJSON struct {
	Body                  any               `json:"body"`
	Headers               map[string]string `json:"headers"`
	Method                string            `json:"method"`
	Path                  string            `json:"path"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
}

// MarshalJSON renders the record in the translation template shape.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Body:                  r.body,
		Headers:               r.Headers(),
		Method:                r.method,
		Path:                  r.path,
		QueryStringParameters: r.QueryParameters(),
	})
}

func parseBody(raw []byte, mode BodyParsing) any {
	if len(raw) == 0 {
		return ""
	}
	if mode == BodyParsingJSON && json.Valid(raw) {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

func canonicalHeader(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}

func copyJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyJSON(e)
		}
		return out
	default:
		return v
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
