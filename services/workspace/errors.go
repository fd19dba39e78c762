package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/upb/cluster-policy-builder/services"
)

// apiError is the error body returned by the workspace
type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// statusError maps a non-2xx response to a DomainError
func statusError(endpoint string, status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	message := apiErr.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(status)
	}

	var errType services.ErrorType
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		errType = services.ErrorTypeUnauthorized
	case status == http.StatusNotFound || apiErr.ErrorCode == "RESOURCE_DOES_NOT_EXIST":
		errType = services.ErrorTypeNotFound
	case status == http.StatusBadRequest && apiErr.ErrorCode == "INVALID_PARAMETER_VALUE":
		errType = services.ErrorTypeValidation
	default:
		errType = services.ErrorTypeExternal
	}

	return services.NewDomainError(errType, message, nil).
		WithDetail("endpoint", endpoint).
		WithDetail("status", status).
		WithDetail("code", apiErr.ErrorCode)
}

func transportError(endpoint string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.NewDomainError(services.ErrorTypeExternal, "workspace timeout", err).
			WithDetail("endpoint", endpoint)
	}
	return services.NewDomainError(services.ErrorTypeExternal, "workspace unavailable", err).
		WithDetail("endpoint", endpoint)
}

func malformed(endpoint string, err error) error {
	return services.NewDomainError(services.ErrorTypeExternal, "malformed workspace response", err).
		WithDetail("endpoint", endpoint)
}
