package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
)

type sampleBody struct {
	Date string   `json:"date" validate:"required,datetime=2006-01-02"`
	Jobs []string `json:"jobs" validate:"required,min=1"`
}

func decode(body string) (sampleBody, error) {
	var dest sampleBody
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	err := DecodeJSONBody(httptest.NewRecorder(), req, &dest)
	return dest, err
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(`{"date":"2026-02-10","jobs":["evt-1"]}`)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-10", got.Date)
	assert.Equal(t, []string{"evt-1"}, got.Jobs)
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := map[string]struct {
		body string
		msg  string
	}{
		"empty":         {body: ``, msg: "request body is required"},
		"unknown field": {body: `{"date":"2026-02-10","jobs":["a"],"extra":1}`, msg: "unknown field in request body"},
		"trailing":      {body: `{"date":"2026-02-10","jobs":["a"]}{}`, msg: "request body must contain a single JSON object"},
		"wrong type":    {body: `{"date":5,"jobs":["a"]}`, msg: "invalid request body"},
		"no jobs":       {body: `{"date":"2026-02-10","jobs":[]}`, msg: "validation failed"},
		"bad date":      {body: `{"date":"02/10/2026","jobs":["a"]}`, msg: "validation failed"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(tc.body)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			assert.Equal(t, tc.msg, typed.Message())
		})
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	_, err := decode(`{"date":"` + strings.Repeat("x", MaxJSONBytes) + `"}`)
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestStructUsesJSONFieldNames(t *testing.T) {
	err := Struct(&sampleBody{Date: "2026-02-10"})
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["jobs"])
}
