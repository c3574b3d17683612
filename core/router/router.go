package router

import (
	"fmt"
	"regexp"

	"github.com/searchktools/webframe/core/http"
)

// route is a compiled resource entry
type route struct {
	pattern  string
	re       *regexp.Regexp
	handlers map[string]http.Handler
	fallback bool
}

// Router is the immutable dispatch list built from the explicit and default
// resource tables. Explicit entries come first, defaults last, each in
// registration order. Resolution is first match wins.
type Router struct {
	routes []route
}

// Compile flattens explicit and defaults into a Router. Method maps are
// copied, so later changes to the tables do not reach the Router.
func Compile(explicit, defaults *Table) (*Router, error) {
	r := &Router{}

	add := func(t *Table, fallback bool) error {
		if t == nil {
			return nil
		}
		for _, e := range t.entries {
			// Anchor so the whole path has to match, not a substring
			re, err := regexp.Compile(`^(?:` + e.Pattern + `)$`)
			if err != nil {
				return fmt.Errorf("router: invalid pattern %q: %w", e.Pattern, err)
			}

			handlers := make(map[string]http.Handler, len(e.Methods))
			for m, h := range e.Methods {
				handlers[m] = h
			}

			r.routes = append(r.routes, route{
				pattern:  e.Pattern,
				re:       re,
				handlers: handlers,
				fallback: fallback,
			})
		}
		return nil
	}

	if err := add(explicit, false); err != nil {
		return nil, err
	}
	if err := add(defaults, true); err != nil {
		return nil, err
	}

	return r, nil
}

// MustCompile is like Compile but panics on an invalid pattern
func MustCompile(explicit, defaults *Table) *Router {
	r, err := Compile(explicit, defaults)
	if err != nil {
		panic(err)
	}
	return r
}

// Match is the result of a successful resolution.
type Match struct {
	Handler http.Handler
	// Groups holds the whole match at index 0 and the capture groups after it
	Groups  []string
	Pattern string
	Default bool
}

// Resolve finds the first entry whose pattern matches the full path and that
// has a handler for method. An entry that matches the path but lacks the
// method does not stop the scan.
func (r *Router) Resolve(path, method string) (Match, bool) {
	for i := range r.routes {
		rt := &r.routes[i]

		groups := rt.re.FindStringSubmatch(path)
		if groups == nil {
			continue
		}

		if h, ok := rt.handlers[method]; ok {
			return Match{
				Handler: h,
				Groups:  groups,
				Pattern: rt.pattern,
				Default: rt.fallback,
			}, true
		}
	}

	return Match{}, false
}

// Len returns the number of entries in the dispatch list
func (r *Router) Len() int {
	return len(r.routes)
}

// Patterns returns the patterns in dispatch order
func (r *Router) Patterns() []string {
	out := make([]string, len(r.routes))
	for i := range r.routes {
		out[i] = r.routes[i].pattern
	}
	return out
}
