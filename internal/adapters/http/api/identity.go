package api

import (
	"net/http"
	"strconv"
	"strings"
)

// Header names set by the authenticating proxy in front of the service.
const (
	HeaderAccountID      = "X-Account-ID"
	HeaderAdmin          = "X-Admin"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Principal is the caller as established by the identity function.
type Principal struct {
	AccountID string
	Admin     bool
}

// Identity resolves the caller of r. ok is false for anonymous requests.
type Identity func(r *http.Request) (p Principal, ok bool)

// HeaderIdentity trusts the proxy headers as-is.
func HeaderIdentity(r *http.Request) (Principal, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderAccountID))
	if id == "" {
		return Principal{}, false
	}
	admin, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(HeaderAdmin)))
	return Principal{AccountID: id, Admin: admin}, true
}
