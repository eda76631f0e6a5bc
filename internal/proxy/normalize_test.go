package proxy

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHTTP_GetWithQueryAndNoBody(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	req := httptest.NewRequest(http.MethodGet, "/foo/bar?x=1", nil)

	rec, err := n.FromHTTP(req)
	require.NoError(t, err)

	assert.Equal(t, "GET", rec.Method())
	assert.Equal(t, "/foo/bar", rec.Path())
	assert.Equal(t, map[string]string{"x": "1"}, rec.QueryParameters())
	assert.Equal(t, "", rec.Body())
}

func TestFromHTTP_NoQueryStringGivesEmptyMap(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	req := httptest.NewRequest(http.MethodDelete, "/anything", nil)

	rec, err := n.FromHTTP(req)
	require.NoError(t, err)
	require.NotNil(t, rec.QueryParameters())
	assert.Empty(t, rec.QueryParameters())
	require.NotNil(t, rec.Headers())
}

func TestFromHTTP_JSONBodyIsParsed(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	req := httptest.NewRequest(http.MethodPost, "/anything", strings.NewReader(`{"a":1}`))

	rec, err := n.FromHTTP(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, rec.Body())
}

func TestFromHTTP_NonJSONBodyPassesThrough(t *testing.T) {
	cases := []string{"hello world", "{not json", "a=1&b=2", "  spaced  "}
	n := NewNormalizer(DefaultConfig())

	for _, body := range cases {
		t.Run(body, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
			rec, err := n.FromHTTP(req)
			require.NoError(t, err)
			assert.Equal(t, body, rec.Body())
		})
	}
}

func TestFromHTTP_RawModeKeepsJSONAsString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BodyParsing = BodyParsingRaw
	n := NewNormalizer(cfg)
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":1}`))

	rec, err := n.FromHTTP(req)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, rec.Body())
}

func TestFromHTTP_HeaderLookupIgnoresCase(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header["x-custom-TOKEN"] = []string{"abc"}
	req.Header.Set("ApiKey", "secret")

	rec, err := n.FromHTTP(req)
	require.NoError(t, err)

	for _, name := range []string{"x-custom-token", "X-Custom-Token", "X-CUSTOM-TOKEN"} {
		assert.Equal(t, "abc", rec.Header(name), name)
	}
	assert.Equal(t, "secret", rec.Header("apikey"))
	assert.Equal(t, "example.com", rec.Header("host"))
}

func TestFromHTTP_QueryValuesArePercentDecoded(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	req := httptest.NewRequest(http.MethodGet, "/q?name=a%20b%26c&tag=x&tag=y", nil)

	rec, err := n.FromHTTP(req)
	require.NoError(t, err)
	assert.Equal(t, "a b&c", rec.Query("name"))
	assert.Equal(t, "x", rec.Query("tag"))
}

func TestFromHTTP_SemicolonPairsAreDropped(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	req := httptest.NewRequest(http.MethodGet, "/q", nil)
	req.URL.RawQuery = "apikey=k;x=1&sort=desc&name=a%20b&&sort=asc"

	rec, err := n.FromHTTP(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sort": "desc", "name": "a b"}, rec.QueryParameters())
}

func TestFromHTTP_InvalidQueryIsMalformed(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	req := httptest.NewRequest(http.MethodGet, "/q", nil)
	req.URL.RawQuery = "x=%zz"

	_, err := n.FromHTTP(req)
	var malformed *MalformedRequestError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, http.StatusBadRequest, StatusFor(err))
}

func TestFromHTTP_BodyLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 4
	n := NewNormalizer(cfg)

	_, err := n.FromHTTP(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("12345")))
	var malformed *MalformedRequestError
	require.ErrorAs(t, err, &malformed)

	rec, err := n.FromHTTP(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("1234")))
	require.NoError(t, err)
	assert.Equal(t, float64(1234), rec.Body())
}

func TestFromHTTP_UnreadableBody(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(errReader{}))

	_, err := n.FromHTTP(req)
	var malformed *MalformedRequestError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "unreadable body", malformed.Reason)
}

func TestFromHTTP_Idempotent(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	build := func() *http.Request {
		req := httptest.NewRequest(http.MethodPut, "/items/7?sort=desc", strings.NewReader(`{"n":[1,2,{"k":"v"}]}`))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	first, err := n.FromHTTP(build())
	require.NoError(t, err)
	second, err := n.FromHTTP(build())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRecord_AccessorsReturnCopies(t *testing.T) {
	rec := NewRecord("GET", "/x", map[string]string{"a": "1"}, map[string]string{"q": "1"}, nil)

	h := rec.Headers()
	h["A"] = "changed"
	q := rec.QueryParameters()
	q["q"] = "changed"

	assert.Equal(t, "1", rec.Header("a"))
	assert.Equal(t, "1", rec.Query("q"))
}

func TestRecord_BodyIsADeepCopy(t *testing.T) {
	rec := NewRecord("POST", "/x", nil, nil, []byte(`{"Positions":[{"ticker":"AAPL"}],"n":1}`))

	body := rec.Body().(map[string]any)
	body["n"] = float64(2)
	body["Positions"].([]any)[0].(map[string]any)["ticker"] = "MSFT"
	delete(body, "Positions")

	assert.Equal(t, map[string]any{
		"Positions": []any{map[string]any{"ticker": "AAPL"}},
		"n":         float64(1),
	}, rec.Body())
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	value := map[string]any{"ok": true, "items": []any{"a", float64(2)}}
	payload := `{"items":["a",2],"ok":true}`

	rec := NewRecord(http.MethodPost, "/r", nil, nil, []byte(payload))
	assert.Equal(t, value, rec.Body())

	var decoded map[string]any
	require.NoError(t, rec.DecodeBody(&decoded))
	assert.Equal(t, value, decoded)
}

func TestRecord_MarshalJSONUsesTemplateShape(t *testing.T) {
	rec := NewRecord("", "/p", map[string]string{"accept": "*/*"}, nil, []byte(`{"a":1}`))

	b, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"body": {"a": 1},
		"headers": {"Accept": "*/*"},
		"method": "ANY",
		"path": "/p",
		"queryStringParameters": {}
	}`, string(b))
}

func TestFromProxyEvent(t *testing.T) {
	n := NewNormalizer(DefaultConfig())

	rec, err := n.FromProxyEvent(events.APIGatewayProxyRequest{
		HTTPMethod: "POST",
		Path:       "/tick/42",
		Headers:    map[string]string{"content-type": "application/json"},
		MultiValueHeaders: map[string][]string{
			"X-Forwarded-For": {"1.1.1.1", "2.2.2.2"},
		},
		MultiValueQueryStringParameters: map[string][]string{"v": {"1", "2"}},
		Body:                            `{"Positions":[]}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", rec.Method())
	assert.Equal(t, "/tick/42", rec.Path())
	assert.Equal(t, "application/json", rec.Header("Content-Type"))
	assert.Equal(t, "1.1.1.1", rec.Header("x-forwarded-for"))
	assert.Equal(t, "1", rec.Query("v"))
	assert.Equal(t, map[string]any{"Positions": []any{}}, rec.Body())
}

func TestFromProxyEvent_Base64Body(t *testing.T) {
	n := NewNormalizer(DefaultConfig())

	rec, err := n.FromProxyEvent(events.APIGatewayProxyRequest{
		HTTPMethod:      "POST",
		Path:            "/",
		Body:            base64.StdEncoding.EncodeToString([]byte("plain text")),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "plain text", rec.Body())

	_, err = n.FromProxyEvent(events.APIGatewayProxyRequest{
		HTTPMethod:      "POST",
		Path:            "/",
		Body:            "!!!",
		IsBase64Encoded: true,
	})
	var malformed *MalformedRequestError
	require.ErrorAs(t, err, &malformed)
}

func TestFromHTTPAPIEvent(t *testing.T) {
	n := NewNormalizer(DefaultConfig())

	e := events.APIGatewayV2HTTPRequest{
		RawPath:        "/api/summary",
		RawQueryString: "apikey=a%2Bb",
		Headers:        map[string]string{"user-agent": "curl"},
		Cookies:        []string{"a=1", "b=2"},
	}
	e.RequestContext.HTTP.Method = "GET"

	rec, err := n.FromHTTPAPIEvent(e)
	require.NoError(t, err)
	assert.Equal(t, "GET", rec.Method())
	assert.Equal(t, "/api/summary", rec.Path())
	assert.Equal(t, "a+b", rec.Query("apikey"))
	assert.Equal(t, "curl", rec.Header("User-Agent"))
	assert.Equal(t, "a=1; b=2", rec.Header("Cookie"))
}

func TestFromTemplateEvent(t *testing.T) {
	n := NewNormalizer(DefaultConfig())

	cases := []struct {
		name     string
		event    TemplateEvent
		wantPath string
		wantBody any
	}{
		{
			name:     "plain path and object body",
			event:    TemplateEvent{Path: "/tick/1", Body: []byte(`{"a":1}`)},
			wantPath: "/tick/1",
			wantBody: map[string]any{"a": float64(1)},
		},
		{
			name:     "path parameter rendering",
			event:    TemplateEvent{Path: "{proxy=api/summary}"},
			wantPath: "/api/summary",
			wantBody: "",
		},
		{
			name:     "null body",
			event:    TemplateEvent{Path: "dashboard", Body: []byte("null")},
			wantPath: "/dashboard",
			wantBody: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := n.FromTemplateEvent(tc.event)
			require.NoError(t, err)
			assert.Equal(t, MethodAny, rec.Method())
			assert.Equal(t, tc.wantPath, rec.Path())
			assert.Equal(t, tc.wantBody, rec.Body())
			assert.NotNil(t, rec.QueryParameters())
		})
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("read error") }
