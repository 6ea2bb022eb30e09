package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{dues.CodeInvalidAmount, http.StatusBadRequest},
		{dues.CodeUnauthorized, http.StatusForbidden},
		{dues.CodeDueNotFound, http.StatusNotFound},
		{dues.CodeTransactionMissing, http.StatusNotFound},
		{dues.CodeDuplicateDue, http.StatusConflict},
		{dues.CodeReversalConflict, http.StatusConflict},
		{dues.CodeAllocationOverflow, http.StatusUnprocessableEntity},
		{dues.CodeStorageError, http.StatusInternalServerError},
		{ErrCodeOptimisticLock, http.StatusConflict},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeUnauthenticated, http.StatusUnauthorized},
		{ErrCodeRequestInProgress, http.StatusConflict},
		{ErrCodeValidation, http.StatusBadRequest},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(dues.CodeDueNotFound, "Due record not found", "req-123")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dues.CodeDueNotFound, resp.Error.Code)
	assert.Equal(t, "req-123", resp.Error.RequestID)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "amount", Message: "This field is required"},
		{Field: "mode", Message: "Must be one of: CASH ONLINE"},
	}
	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "amount", resp.Error.Details[0].Field)
}

func TestResponseJSON(t *testing.T) {
	data, err := json.Marshal(NewSuccessResponseWithMeta([]string{"a"}, 41, 2, 20))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.NotContains(t, decoded, "error")
	meta := decoded["meta"].(map[string]any)
	assert.EqualValues(t, 3, meta["total_pages"])
	assert.EqualValues(t, 41, meta["total"])

	data, err = json.Marshal(NewErrorResponse(ErrCodeBadRequest, "bad"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code":"BAD_REQUEST"`)
	assert.NotContains(t, string(data), `"request_id"`)
}

func TestListRequest_Normalize(t *testing.T) {
	r := ListRequest{}
	r.Normalize()
	assert.Equal(t, 1, r.Page)
	assert.Equal(t, 20, r.PageSize)

	r = ListRequest{Page: 3, PageSize: 50}
	r.Normalize()
	assert.Equal(t, 3, r.Page)
	assert.Equal(t, 50, r.PageSize)
}
