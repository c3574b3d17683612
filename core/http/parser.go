package http

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"
)

// HTTP header constants
const (
	HeaderContentLength = "Content-Length"
	HeaderContentType   = "Content-Type"
	HeaderConnection    = "Connection"
	HeaderHost          = "Host"
)

var (
	ErrInvalidRequest       = errors.New("invalid HTTP request")
	ErrInvalidContentLength = errors.New("invalid Content-Length")
)

var (
	requestLine = regexp.MustCompile(`^([^ ]*) ([^ ]*) HTTP/([^ ]*)$`)
	headerLine  = regexp.MustCompile(`^([^:]*): ?(.*)$`)
)

// HeaderTerminator ends the header block
var HeaderTerminator = []byte("\r\n\r\n")

// ParseRequest reads a request line and header block from r.
//
// If the first line does not have the form "METHOD PATH HTTP/VERSION" the
// returned request has empty method, path and version and no headers; use
// Valid to tell. Header lines are read until the first line that is not
// "Name: value", which for a well-formed request is the blank line. The body
// is left in r.
func ParseRequest(r *bufio.Reader) *Request {
	req := AcquireRequest()

	line, err := readLine(r)
	if err != nil {
		return req
	}

	m := requestLine.FindStringSubmatch(line)
	if m == nil {
		return req
	}
	req.Method, req.Path, req.Version = m[1], m[2], m[3]

	for matched := true; matched; {
		line, err = readLine(r)
		if err != nil {
			break
		}

		h := headerLine.FindStringSubmatch(line)
		matched = h != nil
		if matched {
			req.Headers[h[1]] = h[2]
		}
	}

	return req
}

// ParseHeaderBlock parses a request from a complete header block
func ParseHeaderBlock(block []byte) *Request {
	return ParseRequest(bufio.NewReader(bytes.NewReader(block)))
}

// readLine returns the next line without its CRLF
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}
