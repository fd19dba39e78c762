package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/services"
	"github.com/upb/cluster-policy-builder/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedError   string
		expectedMessage string
	}{
		{
			name:            "policy validation error",
			err:             services.FromPolicyError(corepolicy.Invalid("minValue", "must not exceed maxValue")),
			expectedStatus:  http.StatusBadRequest,
			expectedError:   "bad_request",
			expectedMessage: "minValue: must not exceed maxValue",
		},
		{
			name:            "unknown attribute",
			err:             services.FromPolicyError(fmt.Errorf("%w: foo.bar", corepolicy.ErrUnknownAttribute)),
			expectedStatus:  http.StatusNotFound,
			expectedError:   "not_found",
			expectedMessage: "unknown attribute: foo.bar",
		},
		{
			name:            "policy not found",
			err:             services.ErrPolicyNotFound,
			expectedStatus:  http.StatusNotFound,
			expectedError:   "not_found",
			expectedMessage: "policy not found",
		},
		{
			name:           "unauthorized error",
			err:            services.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
		},
		{
			name:            "submission in progress",
			err:             services.ErrSubmissionInProgress,
			expectedStatus:  http.StatusConflict,
			expectedError:   "conflict",
			expectedMessage: "a submission is already in progress",
		},
		{
			name:            "workspace error",
			err:             services.NewDomainError(services.ErrorTypeExternal, "Policy name already exists", nil),
			expectedStatus:  http.StatusBadGateway,
			expectedError:   "bad_gateway",
			expectedMessage: "Policy name already exists",
		},
		{
			name:            "merge authority",
			err:             services.FromPolicyError(corepolicy.ErrMergeAuthority),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: services.ErrMergeAuthority.Message,
		},
		{
			name:            "internal error",
			err:             services.WrapInternal("failed to save draft", errors.New("connection reset")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An internal error occurred",
		},
		{
			name:            "unknown error",
			err:             errors.New("boom"),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
			if tt.expectedMessage != "" {
				assert.Equal(t, tt.expectedMessage, response.Message)
			}
		})
	}
}

func TestHandleServiceError_ValidationDetails(t *testing.T) {
	w := httptest.NewRecorder()

	HandleServiceError(w, services.FromPolicyError(corepolicy.Invalid("value", "must be one of ON_DEMAND, SPOT")), zap.NewNop())

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "value", response.Details["field"])
	assert.Equal(t, "must be one of ON_DEMAND, SPOT", response.Details["reason"])
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, 0, w.Body.Len())
}

func TestHandleDecodeError(t *testing.T) {
	w := httptest.NewRecorder()
	HandleDecodeError(w, errors.New("invalid request body: unexpected EOF"), zap.NewNop())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}
