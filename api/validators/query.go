package validators

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
)

// Query reads typed, optional query parameters. Blank values count as absent.
type Query struct {
	values url.Values
}

func QueryOf(r *http.Request) Query {
	return Query{values: r.URL.Query()}
}

func (q Query) String(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

// Int returns fallback when key is absent and rejects values outside [min, max].
func (q Query) Int(key string, fallback, min, max int) (int, error) {
	raw := q.String(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(key, "query parameter must be numeric", err)
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

func (q Query) Bool(key string) (bool, error) {
	raw := q.String(key)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidParam(key, "query parameter must be a boolean", err)
	}
	return value, nil
}

// UUID returns nil when key is absent.
func (q Query) UUID(key string) (*uuid.UUID, error) {
	raw := q.String(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalidParam(key, "query parameter must be a uuid", err)
	}
	return &id, nil
}

// PathUUID reads a chi route parameter as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter required").
			WithDetails(map[string]any{"field": name})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidParam(name, "path parameter must be a uuid", err)
	}
	return id, nil
}

func invalidParam(field, msg string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg).WithDetails(map[string]any{"field": field})
}
