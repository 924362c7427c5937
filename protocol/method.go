package protocol

import (
	"fmt"

	httperrors "github.com/nczempin/httpwire/errors"
)

// HttpMethod represents HTTP request methods
type HttpMethod int

const (
	MethodGet HttpMethod = iota
	MethodPost
	MethodPut
	MethodDelete
	MethodHead
	MethodTrace
	MethodOptions
	MethodPatch
	MethodConnect
)

var methodTokens = [...]string{
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodHead:    "HEAD",
	MethodTrace:   "TRACE",
	MethodOptions: "OPTIONS",
	MethodPatch:   "PATCH",
	MethodConnect: "CONNECT",
}

// String returns the uppercase wire token
func (m HttpMethod) String() string {
	if m < 0 || int(m) >= len(methodTokens) {
		return fmt.Sprintf("HttpMethod(%d)", int(m))
	}
	return methodTokens[m]
}

// Valid reports whether m is one of the known methods
func (m HttpMethod) Valid() bool {
	return m >= 0 && int(m) < len(methodTokens)
}

// ParseMethod maps a wire token back to its method. Tokens are case-sensitive.
func ParseMethod(token string) (HttpMethod, error) {
	for m, t := range methodTokens {
		if t == token {
			return HttpMethod(m), nil
		}
	}
	return 0, httperrors.NewInvalidArgumentError(fmt.Sprintf("unknown method %q", token))
}
