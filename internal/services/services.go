package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/store"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
)

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseID(id, field string) (primitive.ObjectID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return primitive.NilObjectID, apperr.New(apperr.CodeValidation, field+" is required")
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.CodeValidation, "invalid "+field)
	}
	return objID, nil
}

// storeErr maps store sentinels onto application errors. notFoundMsg is used
// when the document is missing.
func storeErr(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(err, apperr.CodeNotFound, notFoundMsg)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(err, apperr.CodeInternal, "database timeout")
	default:
		return apperr.Wrap(err, apperr.CodeInternal, "database error")
	}
}

// maskEmail keeps the first three characters of the local part for logs.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "****"
	}
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "****@" + domain
}
