// Package router dispatches records arriving on the catch-all route to handlers
// registered in a (method, path pattern) table.
package router

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"tradingapi/internal/proxy"
)

// Request is a record plus the path parameters captured by the matched route.
type Request struct {
	proxy.Record
	Params map[string]string
}

// Param returns a captured path parameter.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

type HandlerFunc func(ctx context.Context, req *Request) (proxy.Result, error)

type segmentKind int

const (
	literal segmentKind = iota
	param
	greedy
)

type segment struct {
	kind  segmentKind
	value string
}

// routeKey tags a table entry by method and pattern.
type routeKey struct {
	method  string
	pattern string
}

type route struct {
	key      routeKey
	segments []segment
	handler  HandlerFunc
}

// Router is the dispatch table behind the single catch-all handler.
// Register routes before serving; matching itself takes no locks.
type Router struct {
	routes   []route
	index    map[routeKey]int
	basePath string
}

type Option func(*Router)

// WithBasePath strips a prefix such as a stage name ("/prod") before matching.
func WithBasePath(p string) Option {
	return func(r *Router) {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" && !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		r.basePath = p
	}
}

func New(opts ...Option) *Router {
	r := &Router{index: map[routeKey]int{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ proxy.Handler = &Router{}

// Handle registers h for method and pattern. Patterns are slash separated; a
// "{name}" segment captures one segment and a trailing "{name+}" captures the rest.
// Method "ANY" matches every method. It panics on an invalid pattern, like http.ServeMux.
func (r *Router) Handle(method, pattern string, h HandlerFunc) {
	segs, err := parsePattern(pattern)
	if err != nil {
		panic(fmt.Sprintf("router: %v", err))
	}
	key := routeKey{method: strings.ToUpper(method), pattern: pattern}
	if _, dup := r.index[key]; dup {
		panic(fmt.Sprintf("router: duplicate route %s %s", key.method, pattern))
	}
	r.index[key] = len(r.routes)
	r.routes = append(r.routes, route{key: key, segments: segs, handler: h})
}

// Invoke dispatches rec. Unknown paths get 404; known paths with an unsupported
// method get 405 with an Allow header.
func (r *Router) Invoke(ctx context.Context, rec proxy.Record) (proxy.Result, error) {
	parts := splitPath(r.trimBase(rec.Path()))
	method := rec.Method()

	var allowed []string
	for _, rt := range r.routes {
		params, ok := match(rt.segments, parts)
		if !ok {
			continue
		}
		if methodMatches(rt.key.method, method) {
			return rt.handler(ctx, &Request{Record: rec, Params: params})
		}
		allowed = append(allowed, rt.key.method)
	}

	if len(allowed) > 0 {
		sort.Strings(allowed)
		res := proxy.JSON(http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		res.Headers["Allow"] = strings.Join(allowed, ", ")
		return res, nil
	}
	return proxy.JSON(http.StatusNotFound, map[string]any{"error": "not found"}), nil
}

// methodMatches reports whether a route registered for want serves got. HEAD is
// served by GET routes.
func methodMatches(want, got string) bool {
	switch {
	case want == proxy.MethodAny, got == proxy.MethodAny, want == got:
		return true
	case got == http.MethodHead && want == http.MethodGet:
		return true
	}
	return false
}

func (r *Router) trimBase(p string) string {
	if r.basePath == "" {
		return p
	}
	if p == r.basePath {
		return "/"
	}
	if strings.HasPrefix(p, r.basePath+"/") {
		return strings.TrimPrefix(p, r.basePath)
	}
	return p
}

func parsePattern(pattern string) ([]segment, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("pattern %q must start with /", pattern)
	}
	parts := splitPath(pattern)
	segs := make([]segment, 0, len(parts))
	for i, p := range parts {
		switch {
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "+}"):
			if i != len(parts)-1 {
				return nil, fmt.Errorf("pattern %q: greedy segment must be last", pattern)
			}
			segs = append(segs, segment{kind: greedy, value: p[1 : len(p)-2]})
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
			segs = append(segs, segment{kind: param, value: p[1 : len(p)-1]})
		default:
			segs = append(segs, segment{kind: literal, value: p})
		}
	}
	return segs, nil
}

func match(segs []segment, parts []string) (map[string]string, bool) {
	params := map[string]string{}
	for i, s := range segs {
		if s.kind == greedy {
			if i >= len(parts) {
				return nil, false
			}
			params[s.value] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch s.kind {
		case literal:
			if parts[i] != s.value {
				return nil, false
			}
		case param:
			params[s.value] = parts[i]
		}
	}
	if len(parts) != len(segs) {
		return nil, false
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
