package http

import (
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
)

// Handler writes a complete HTTP response (status line, headers, body)
// for req into w. The engine sends the bytes as written.
type Handler func(w io.Writer, req *Request)

// StatusText returns the reason phrase for code
func StatusText(code int) string {
	if s := nethttp.StatusText(code); s != "" {
		return s
	}
	return "Status " + strconv.Itoa(code)
}

// WriteResponse writes an HTTP/1.1 response with a Content-Length header.
// contentType is omitted when empty.
func WriteResponse(w io.Writer, code int, contentType string, body []byte) error {
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", code, StatusText(code)); err != nil {
		return err
	}
	if contentType != "" {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", HeaderContentType, contentType); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%s: %d\r\n\r\n", HeaderContentLength, len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// String writes a text/plain response
func String(w io.Writer, code int, s string) error {
	return WriteResponse(w, code, "text/plain; charset=utf-8", []byte(s))
}

// Error writes an empty response carrying only the status line
func Error(w io.Writer, code int) error {
	return WriteResponse(w, code, "", nil)
}
