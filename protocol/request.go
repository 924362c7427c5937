package protocol

import (
	"bufio"

	httperrors "github.com/nczempin/httpwire/errors"
)

// HttpRequest describes the head of an HTTP request
type HttpRequest struct {
	Method HttpMethod
	Path   string

	// Version is appended to the request line when set, e.g. "HTTP/1.1".
	// Left empty, the request line is just "<METHOD> <path>".
	Version string

	Headers Header
}

// WriteHead serializes the request line, every header exactly once and the
// terminating blank line. Names and values are written verbatim. The writer
// is not flushed so the caller can follow up with a body.
func (r *HttpRequest) WriteHead(w *bufio.Writer) error {
	if !r.Method.Valid() {
		return httperrors.NewInvalidArgumentError("unknown method " + r.Method.String())
	}

	// Request line
	w.WriteString(r.Method.String())
	w.WriteByte(' ')
	w.WriteString(r.Path)
	if r.Version != "" {
		w.WriteByte(' ')
		w.WriteString(r.Version)
	}
	w.WriteString(crlf)

	// Headers
	for name, value := range r.Headers {
		w.WriteString(name)
		w.WriteString(": ")
		w.WriteString(value)
		w.WriteString(crlf)
	}

	// Blank line
	if _, err := w.WriteString(crlf); err != nil {
		return writeFailed(err)
	}
	return nil
}

// writeFailed keeps transport errors as they are and wraps anything else.
// bufio.Writer latches its first error, so checking the last write suffices.
func writeFailed(err error) error {
	if _, ok := err.(*httperrors.HttpError); ok {
		return err
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "failed to write request", err)
}

// WriteBody writes body and flushes the writer
func WriteBody(w *bufio.Writer, body []byte) error {
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return writeFailed(err)
		}
	}
	if err := w.Flush(); err != nil {
		return writeFailed(err)
	}
	return nil
}
