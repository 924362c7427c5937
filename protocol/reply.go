package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	httperrors "github.com/nczempin/httpwire/errors"
)

// Reply is a parsed HTTP reply. The status line and headers are fixed at
// parse time; the body is the unread remainder of the stream.
type Reply struct {
	version string
	code    int
	status  string
	header  Header

	reader *bufio.Reader
	closer io.Closer
}

// ReadReply parses a reply from rc and keeps rc as the body source.
// The Reply owns rc: Close releases it, and so does a failed parse.
func ReadReply(rc io.ReadCloser) (*Reply, error) {
	reply, err := ParseReply(bufio.NewReader(rc))
	if err != nil {
		rc.Close()
		return nil, err
	}
	reply.closer = rc
	return reply, nil
}

// ParseReply reads the status line and header block from r. Everything after
// the blank line is left in r and exposed through Body.
func ParseReply(r *bufio.Reader) (*Reply, error) {
	line, err := readLine(r, "status line")
	if err != nil {
		return nil, err
	}

	version, code, status, err := parseStatusLine(strings.TrimRight(line, " \t\r\n"))
	if err != nil {
		return nil, err
	}

	header := make(Header)
	for {
		line, err := readLine(r, "header block")
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, httperrors.NewProtocolError(
				httperrors.ProtocolErrorInvalidHeader,
				fmt.Sprintf("no \": \" separator in %q", line),
			)
		}
		header[name] = value
	}

	return &Reply{
		version: version,
		code:    code,
		status:  status,
		header:  header,
		reader:  r,
	}, nil
}

// parseStatusLine splits "<version> <code> <status text...>". The status text
// is the rest of the line and may contain spaces or be empty.
func parseStatusLine(line string) (string, int, string, error) {
	version, rest, ok := strings.Cut(line, " ")
	if !ok || version == "" {
		return "", 0, "", httperrors.NewProtocolError(
			httperrors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("HTTP code not found in %q", line),
		)
	}

	codeStr, status, _ := strings.Cut(rest, " ")
	code, err := strconv.ParseUint(codeStr, 10, 32)
	if err != nil {
		return "", 0, "", httperrors.WrapProtocolError(
			httperrors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("cannot parse HTTP code %q", codeStr),
			err,
		)
	}

	return version, int(code), status, nil
}

// readLine reads one LF-terminated line. A stream that ends mid-head is an
// incomplete response; other read errors pass through.
func readLine(r *bufio.Reader, what string) (string, error) {
	line, err := r.ReadString('\n')
	if err == nil {
		return line, nil
	}
	if errors.Is(err, io.EOF) {
		return "", httperrors.WrapProtocolError(
			httperrors.ProtocolErrorIncompleteResponse,
			"connection closed while reading "+what,
			io.ErrUnexpectedEOF,
		)
	}
	return "", readFailed(err)
}

func readFailed(err error) error {
	if _, ok := err.(*httperrors.HttpError); ok {
		return err
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "failed to read reply", err)
}

// Version returns the protocol version token, e.g. "HTTP/1.1"
func (r *Reply) Version() string {
	return r.version
}

// Code returns the numeric status code
func (r *Reply) Code() int {
	return r.code
}

// Status returns the status text
func (r *Reply) Status() string {
	return r.status
}

// Property returns a header value from the reply
func (r *Reply) Property(name string) (string, bool) {
	return r.header.Get(name)
}

// PropertyNames returns the reply header names in sorted order
func (r *Reply) PropertyNames() []string {
	return r.header.Names()
}

// Header returns a copy of the reply headers
func (r *Reply) Header() Header {
	return r.header.Clone()
}

// Length returns the declared Content-Length. A missing header and an
// unparsable one are reported as different errors.
func (r *Reply) Length() (int64, error) {
	s, ok := r.header.Get(HeaderContentLength)
	if !ok {
		return 0, httperrors.NewProtocolError(
			httperrors.ProtocolErrorMissingContentLength,
			"no Content-Length provided in header",
		)
	}

	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, httperrors.WrapProtocolError(
			httperrors.ProtocolErrorInvalidContentLength,
			fmt.Sprintf("cannot parse Content-Length %q", s),
			err,
		)
	}
	return int64(n), nil
}

// Body returns the raw body stream, not limited by Content-Length
func (r *Reply) Body() io.Reader {
	return r.reader
}

// ReadAll reads exactly Content-Length bytes of body. Reads are repeated
// until the declared length is satisfied; a stream ending earlier is an
// incomplete response. Memory grows with the bytes received, not with the
// declared length.
func (r *Reply) ReadAll() ([]byte, error) {
	n, err := r.Length()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, r.reader, n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, httperrors.WrapProtocolError(
				httperrors.ProtocolErrorIncompleteResponse,
				fmt.Sprintf("body ended after %d of %d bytes", copied, n),
				io.ErrUnexpectedEOF,
			)
		}
		return nil, readFailed(err)
	}
	return buf.Bytes(), nil
}

// ReadString reads the body like ReadAll and requires it to be valid UTF-8
func (r *Reply) ReadString() (string, error) {
	data, err := r.ReadAll()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", httperrors.NewProtocolError(
			httperrors.ProtocolErrorInvalidBodyEncoding,
			"cannot convert content to utf8 string",
		)
	}
	return string(data), nil
}

// Close releases the stream the reply reads from. It is safe to call more than once.
func (r *Reply) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// String renders the status fields, the length when declared, and the properties
func (r *Reply) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\tversion = %s\n", r.version)
	fmt.Fprintf(&sb, "\tcode = %d\n", r.code)
	fmt.Fprintf(&sb, "\tstatus = %s\n", r.status)
	if n, err := r.Length(); err == nil {
		fmt.Fprintf(&sb, "\tLength = %d\n", n)
	}
	sb.WriteString("\tProperties :\n")
	for _, name := range r.header.Names() {
		fmt.Fprintf(&sb, "\t\t%s => %s\n", name, r.header[name])
	}
	return sb.String()
}
