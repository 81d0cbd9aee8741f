package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/identity"
)

// principalEmail returns the authenticated caller's email. Routes that call
// it are always wrapped in RequireAuth.
func principalEmail(r *http.Request) (string, error) {
	p, ok := identity.FromContext(r.Context())
	if !ok || p.Email == "" {
		return "", apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return p.Email, nil
}

func queryParam(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

func queryInt(r *http.Request, name string) (int, error) {
	v := queryParam(r, name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.New(apperr.CodeValidation, "invalid "+name)
	}
	return n, nil
}
