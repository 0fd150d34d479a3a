package backend

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/docquery/core/logger"
	"github.com/relabs-tech/docquery/core/query"
	"github.com/relabs-tech/docquery/core/schema"
)

// OperationError is an error that is reported to the client
type OperationError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	// Field is the path of the offending field, if any
	Field string `json:"field,omitempty"`
	// Action is the recommended action for the client, if any
	Action     string `json:"action,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *OperationError) Error() string {
	if e.Field != "" {
		return e.Name + ": " + e.Field + ": " + e.Message
	}
	return e.Name + ": " + e.Message
}

// NewValidationError returns a 400 error for an invalid field of the request
func NewValidationError(message, field string) *OperationError {
	return &OperationError{
		Name:       "ValidationError",
		Message:    message,
		Field:      field,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFoundError returns a 404 error for a resource
func NewNotFoundError(resource string) *OperationError {
	return &OperationError{
		Name:       "NotFoundError",
		Message:    "no such " + resource,
		StatusCode: http.StatusNotFound,
	}
}

// NewServerError returns a generic 500 error. Details are logged, never sent.
func NewServerError() *OperationError {
	return &OperationError{
		Name:       "ServerError",
		Message:    "server error",
		Action:     "retry later",
		StatusCode: http.StatusInternalServerError,
	}
}

type errorResponse struct {
	Errors []*OperationError `json:"errors"`
}

// toOperationErrors maps err to the errors reported to the client
func toOperationErrors(err error) []*OperationError {
	var (
		operationError *OperationError
		assertionError *query.AssertionError
		validationErr  *schema.ValidationError
	)
	switch {
	case errors.As(err, &operationError):
		return []*OperationError{operationError}
	case errors.As(err, &assertionError):
		return []*OperationError{{
			Name:       "MalformedQueryError",
			Message:    assertionError.Reason,
			Field:      assertionError.Path,
			StatusCode: http.StatusBadRequest,
		}}
	case errors.As(err, &validationErr):
		result := make([]*OperationError, 0, len(validationErr.Details))
		for _, d := range validationErr.Details {
			result = append(result, NewValidationError(d, ""))
		}
		if len(result) == 0 {
			result = append(result, NewValidationError(err.Error(), ""))
		}
		return result
	default:
		return []*OperationError{NewServerError()}
	}
}

// writeError writes err as JSON error response. Server errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	errs := toOperationErrors(err)
	status := errs[0].StatusCode
	rlog := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		rlog.WithError(err).Errorf("%s %s failed", r.Method, r.URL.Path)
	} else {
		rlog.WithError(err).Debugf("%s %s rejected", r.Method, r.URL.Path)
	}

	body, _ := json.Marshal(errorResponse{Errors: errs})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "cannot marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}
