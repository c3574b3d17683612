// Package handlers holds the example resources served by the webframe
// binary: a body echo, a request dump, a capture-group echo, engine
// statistics and a static file tree as the default resource.
package handlers

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/searchktools/webframe/core"
	"github.com/searchktools/webframe/core/http"
)

// Route patterns
const (
	StringPattern = `^/string/?$`
	InfoPattern   = `^/info/?$`
	MatchPattern  = `^/match/([0-9a-zA-Z]+)/?$`
	StatsPattern  = `^/stats/?$`
	FilesPattern  = `^/?(.*)$`
)

// Register adds the example resources to e. Files under webRoot are served
// by the default resource.
func Register(e *core.Engine, webRoot string) {
	e.POST(StringPattern, Echo)
	e.GET(InfoPattern, Info)
	e.GET(MatchPattern, Match)
	e.GET(StatsPattern, Stats(e.Stats))
	e.DefaultResource(FilesPattern)["GET"] = Files(webRoot, NewFileCache(256, 1<<20))
}

// Echo answers with the request body
func Echo(w io.Writer, req *http.Request) {
	var content []byte
	if req.Body != nil {
		var err error
		if content, err = io.ReadAll(req.Body); err != nil {
			http.Error(w, 400)
			return
		}
	}
	http.WriteResponse(w, 200, "", content)
}

// Info answers with an HTML dump of the request line and headers
func Info(w io.Writer, req *http.Request) {
	var b bytes.Buffer
	b.WriteString("<h1>Request:</h1>")
	fmt.Fprintf(&b, "%s %s HTTP/%s<br>", req.Method, req.Path, req.Version)

	names := make([]string, 0, len(req.Headers))
	for name := range req.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s : %s<br>", name, req.Headers[name])
	}

	http.WriteResponse(w, 200, "text/html; charset=utf-8", b.Bytes())
}

// Match answers with the first capture group of the route
func Match(w io.Writer, req *http.Request) {
	http.WriteResponse(w, 200, "", []byte(req.Param(1)))
}

// Files serves files below root. The first capture group is the file
// path; a directory is answered with its index.html.
func Files(root string, cache *FileCache) http.Handler {
	return func(w io.Writer, req *http.Request) {
		name := filepath.Join(root, cleanPath(req.Param(1)))

		data, err := cache.Get(name)
		if err != nil {
			data, err = cache.Get(filepath.Join(name, "index.html"))
			name = filepath.Join(name, "index.html")
		}
		if err != nil {
			req.Log.Debug().Err(err).Msg("file not served")
			http.WriteResponse(w, 400, "text/plain; charset=utf-8", []byte("Could not open file "+req.Param(1)))
			return
		}

		http.WriteResponse(w, 200, ContentType(name), data)
	}
}

// cleanPath keeps only the last '.' of p, so ".." can not climb out of the
// web root, and returns p as a rooted, cleaned relative path.
func cleanPath(p string) string {
	if last := strings.LastIndexByte(p, '.'); last >= 0 {
		p = strings.ReplaceAll(p[:last], ".", "") + p[last:]
	}
	return filepath.Clean("/" + p)[1:]
}
