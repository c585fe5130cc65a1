package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"packvault-autosell-api/pkg/apierror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_WrappedAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, fmt.Errorf("handler: %w", apierror.Conflict("busy").WithCode("OPERATION_IN_PROGRESS")))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "OPERATION_IN_PROGRESS", body.Error.Code)
}

func TestError_PlainErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"x"}`, ""},
		{"empty", ``, "request body is required"},
		{"malformed", `{"name":`, "invalid request body"},
		{"too large", `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, "request body is too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			apiErr := DecodeJSON(httptest.NewRecorder(), req, &p)
			if tt.wantErr == "" {
				require.Nil(t, apiErr)
				assert.Equal(t, "x", p.Name)
				return
			}
			require.NotNil(t, apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, tt.wantErr, apiErr.Message)
		})
	}
}
