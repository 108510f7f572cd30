package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/catalog/internal/shared"
)

func TestRespondErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", shared.ErrDuplicate), http.StatusConflict},
		{shared.ErrValidation, http.StatusUnprocessableEntity},
		{shared.ErrCSRFTokenMismatch, shared.StatusPageExpired},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
}

func TestValidationProblemCarriesErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationProblem(rec, "invalid", map[string][]string{"code": {"The code field is required."}})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Status int                 `json:"status"`
		Errors map[string][]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnprocessableEntity, body.Status)
	assert.Equal(t, []string{"The code field is required."}, body.Errors["code"])
}

func TestDecodeJSONKeepsNumbers(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity": 12, "price": 9.99}`))
	var target map[string]any
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, json.Number("12"), target["quantity"])
	assert.Equal(t, json.Number("9.99"), target["price"])
}
