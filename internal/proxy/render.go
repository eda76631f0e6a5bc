package proxy

import (
	"encoding/json"
	"fmt"
)

// Response is a result rendered for the transport.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Renderer turns results into transport responses.
type Renderer struct {
	defaultHeaders map[string]string
}

func NewRenderer(cfg Config) *Renderer {
	headers := cfg.DefaultHeaders
	if len(headers) == 0 {
		headers = DefaultConfig().DefaultHeaders
	}
	return &Renderer{defaultHeaders: copyMap(headers)}
}

// Render serializes res. Strings and byte slices pass through unchanged, anything
// else is encoded as JSON. Results without headers get the default headers.
func (r *Renderer) Render(res Result) (Response, error) {
	if res.StatusCode < 100 || res.StatusCode > 599 {
		return Response{}, &SerializationError{Err: fmt.Errorf("invalid status code %d", res.StatusCode)}
	}

	var body string
	switch b := res.Body.(type) {
	case nil:
	case string:
		body = b
	case []byte:
		body = string(b)
	case json.RawMessage:
		body = string(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return Response{}, &SerializationError{Err: err}
		}
		body = string(encoded)
	}

	headers := res.Headers
	if len(headers) == 0 {
		headers = r.defaultHeaders
	}

	return Response{
		StatusCode: res.StatusCode,
		Headers:    copyMap(headers),
		Body:       body,
	}, nil
}

// RenderError renders the caller-facing response for err. It cannot fail.
func (r *Renderer) RenderError(err error) Response {
	res := ErrorResult(err)
	resp, renderErr := r.Render(res)
	if renderErr != nil {
		return Response{
			StatusCode: res.StatusCode,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":"internal error"}`,
		}
	}
	return resp
}
