// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/worksla/worksla-web/internal/apiclient"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Classified is the HTTP view of an error.
type Classified struct {
	Status    int
	Title     string
	Detail    string
	Retryable bool
}

// Classify maps domain and upstream errors onto a status and a message that
// is safe to show to users.
func Classify(err error) Classified {
	var httpErr *apiclient.HTTPError
	switch {
	case err == nil:
		return Classified{Status: http.StatusOK, Title: "OK"}
	case errors.Is(err, apiclient.ErrAuthExpired), errors.Is(err, ErrUnauthorized):
		return Classified{Status: http.StatusUnauthorized, Title: "Unauthorized", Detail: "Your session has expired. Please sign in again."}
	case errors.Is(err, ErrNotFound):
		return Classified{Status: http.StatusNotFound, Title: "Not Found", Detail: err.Error()}
	case errors.Is(err, ErrValidation):
		return Classified{Status: http.StatusBadRequest, Title: "Validation Failed", Detail: err.Error()}
	case errors.Is(err, ErrForbidden):
		return Classified{Status: http.StatusForbidden, Title: "Forbidden", Detail: "You do not have access to this page."}
	case errors.Is(err, context.DeadlineExceeded):
		return Classified{Status: http.StatusGatewayTimeout, Title: "Gateway Timeout", Detail: "The WorkSLA service took too long to respond.", Retryable: true}
	case apiclient.IsNetwork(err):
		return Classified{Status: http.StatusBadGateway, Title: "Service Unavailable", Detail: "The WorkSLA service could not be reached.", Retryable: true}
	case errors.As(err, &httpErr):
		return classifyUpstream(httpErr)
	default:
		return Classified{Status: http.StatusInternalServerError, Title: "Internal Error", Detail: "Something went wrong."}
	}
}

func classifyUpstream(err *apiclient.HTTPError) Classified {
	detail := err.Detail()
	switch {
	case err.Status == http.StatusNotFound:
		return Classified{Status: http.StatusNotFound, Title: "Not Found", Detail: fallback(detail, "The requested item does not exist.")}
	case err.Status == http.StatusForbidden:
		return Classified{Status: http.StatusForbidden, Title: "Forbidden", Detail: fallback(detail, "You do not have access to this item.")}
	case err.Status == http.StatusBadRequest || err.Status == http.StatusUnprocessableEntity || err.Status == http.StatusConflict:
		return Classified{Status: err.Status, Title: http.StatusText(err.Status), Detail: fallback(detail, "The request was rejected.")}
	case err.Status == http.StatusTooManyRequests:
		return Classified{Status: http.StatusTooManyRequests, Title: "Too Many Requests", Detail: "Please wait a moment and try again.", Retryable: true}
	case err.Status >= 500:
		return Classified{Status: http.StatusBadGateway, Title: "Service Unavailable", Detail: "The WorkSLA service returned an error.", Retryable: true}
	default:
		return Classified{Status: http.StatusBadGateway, Title: http.StatusText(http.StatusBadGateway), Detail: fallback(detail, "Unexpected response from the WorkSLA service.")}
	}
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// RespondError maps errors to RFC 7807 JSON responses.
func RespondError(w http.ResponseWriter, err error) {
	c := Classify(err)
	Problem(w, c.Status, c.Title, c.Detail)
}
