package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("reading 7: %w", ErrNotFound), http.StatusNotFound, "not_found"},
		{"validation", fmt.Errorf("%w: limit", ErrValidation), http.StatusBadRequest, "validation_error"},
		{"unavailable", ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"rate limited", ErrTooManyRequests, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := processError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, resp.Error)
		})
	}
}

func TestLimitFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limitFor := func(query string) int {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodGet, "/dados"+query, nil)
		return LimitFromContext(ctx, 300, 1000)
	}

	assert.Equal(t, 300, limitFor(""))
	assert.Equal(t, 50, limitFor("?limit=50"))
	assert.Equal(t, 1000, limitFor("?limit=5000"))
	assert.Equal(t, 300, limitFor("?limit=-1"))
	assert.Equal(t, 300, limitFor("?limit=abc"))
}

func TestJSONSchemaValidator(t *testing.T) {
	schema, err := NewJSONSchemaBuilder().
		SetTitle("sample").
		AddIntegerProperty("count", true).
		Minimum("count", 0).
		AddStringProperty("label", true).
		Enum("label", "alta", "baixa").
		AddProperty("noise", false, "number", "null").
		Build()
	require.NoError(t, err)

	v := NewJSONSchemaValidator()
	require.NoError(t, v.LoadSchema("sample", schema))

	t.Run("Should accept a conforming document", func(t *testing.T) {
		assert.NoError(t, v.ValidateBytes("sample", []byte(`{"count": 3, "label": "alta", "noise": null, "extra": 1}`)))
	})

	t.Run("Should reject a negative count", func(t *testing.T) {
		err := v.ValidateBytes("sample", []byte(`{"count": -1, "label": "alta"}`))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Should reject an unknown label", func(t *testing.T) {
		assert.Error(t, v.ValidateBytes("sample", []byte(`{"count": 1, "label": "media"}`)))
	})

	t.Run("Should reject missing required fields", func(t *testing.T) {
		assert.Error(t, v.ValidateBytes("sample", []byte(`{"label": "baixa"}`)))
	})

	t.Run("Should fail for an unknown schema", func(t *testing.T) {
		assert.Error(t, v.ValidateBytes("missing", []byte(`{}`)))
	})
}

func TestHandleValidationErrors_Malformed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)

	HandleValidationErrors(ctx, fmt.Errorf("unexpected EOF"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bad_request", resp.Error)
}
