package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
)

type evidence struct {
	URL string `json:"url" validate:"required,url"`
}

type disputeBody struct {
	Reason   string     `json:"reason" validate:"notblank,max=20"`
	Evidence []evidence `json:"evidence" validate:"max=2,dive"`
}

func post(body string) (*httptest.ResponseRecorder, *http.Request) {
	return httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	out, _ := typed.Details().(map[string]string)
	return out
}

func TestDecodeValidBody(t *testing.T) {
	w, r := post(`{"reason":"double charge","evidence":[{"url":"https://cdn.example.com/a.png"}]}`)
	got, err := Decode[disputeBody](w, r)
	require.NoError(t, err)
	assert.Equal(t, "double charge", got.Reason)
	assert.Len(t, got.Evidence, 1)
}

func TestDecodeReportsFieldPaths(t *testing.T) {
	w, r := post(`{"reason":"   ","evidence":[{"url":"not a url"}]}`)
	_, err := Decode[disputeBody](w, r)
	fields := details(t, err)
	assert.Equal(t, "is required", fields["reason"])
	assert.Equal(t, "must be a valid url", fields["evidence[0].url"])
}

func TestDecodeRejectsMalformedBodies(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"reason":"x","amount":3}`,
		"trailing data": `{"reason":"x"}{"reason":"y"}`,
		"too large":     `{"reason":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w, r := post(body)
			_, err := Decode[disputeBody](w, r)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestQueryParsing(t *testing.T) {
	id := uuid.New()
	r := httptest.NewRequest(http.MethodGet, "/?limit=10&unread_only=true&period_id="+id.String()+"&status=+open+", nil)
	q := QueryOf(r)

	limit, err := q.Int("limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	fallback, err := q.Int("missing", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, fallback)

	unread, err := q.Bool("unread_only")
	require.NoError(t, err)
	assert.True(t, unread)

	periodID, err := q.UUID("period_id")
	require.NoError(t, err)
	assert.Equal(t, id, *periodID)

	absent, err := q.UUID("establishment_id")
	require.NoError(t, err)
	assert.Nil(t, absent)

	assert.Equal(t, "open", q.String("status"))
}

func TestQueryRejectsBadValues(t *testing.T) {
	q := QueryOf(httptest.NewRequest(http.MethodGet, "/?limit=500&page=x&flag=maybe&period_id=42", nil))

	_, err := q.Int("limit", 25, 1, 100)
	assert.ErrorContains(t, err, "out of range")
	_, err = q.Int("page", 1, 1, 10)
	assert.ErrorContains(t, err, "numeric")
	_, err = q.Bool("flag")
	assert.ErrorContains(t, err, "boolean")
	_, err = q.UUID("period_id")
	assert.ErrorContains(t, err, "uuid")
}

func TestPathUUID(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("periodId", id.String())
	rctx.URLParams.Add("disputeId", "nope")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	got, err := PathUUID(r, "periodId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = PathUUID(r, "disputeId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = PathUUID(r, "notificationId")
	assert.ErrorContains(t, err, "required")
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", Clip("  abc  ", 10))
	assert.Equal(t, "ab", Clip("abcdef", 2))
	assert.Equal(t, "éé", Clip("ééé", 2))
	assert.Equal(t, "free", Clip("free", 0))
}
