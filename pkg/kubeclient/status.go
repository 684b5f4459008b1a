package kubeclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tintoy/kubeclient/pkg/kube"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// maxStatusBody bounds how much of an error response is read.
const maxStatusBody = 1 << 20

// StatusError is a failed API call described by a metav1.Status.
type StatusError struct {
	Status metav1.Status
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	reason := string(e.Status.Reason)
	if reason == "" {
		reason = http.StatusText(int(e.Status.Code))
	}

	if e.Status.Message == "" {
		return fmt.Sprintf("%s (code: %d)", reason, e.Status.Code)
	}

	return fmt.Sprintf("%s: %s (code: %d)", reason, e.Status.Message, e.Status.Code)
}

// Code returns the HTTP status code of the failure.
func (e *StatusError) Code() int {
	return int(e.Status.Code)
}

// ReasonForError returns the status reason of err, or metav1.StatusReasonUnknown.
func ReasonForError(err error) metav1.StatusReason {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return metav1.StatusReasonUnknown
	}

	return statusErr.Status.Reason
}

// IsNotFound reports whether err is a 404 status error.
func IsNotFound(err error) bool {
	return hasReason(err, metav1.StatusReasonNotFound, http.StatusNotFound)
}

// IsAlreadyExists reports whether err is a conflict on create.
func IsAlreadyExists(err error) bool {
	return ReasonForError(err) == metav1.StatusReasonAlreadyExists
}

// IsConflict reports whether err is a 409 status error.
func IsConflict(err error) bool {
	return hasReason(err, metav1.StatusReasonConflict, http.StatusConflict)
}

// IsUnauthorized reports whether err is a 401 status error.
func IsUnauthorized(err error) bool {
	return hasReason(err, metav1.StatusReasonUnauthorized, http.StatusUnauthorized)
}

// IsForbidden reports whether err is a 403 status error.
func IsForbidden(err error) bool {
	return hasReason(err, metav1.StatusReasonForbidden, http.StatusForbidden)
}

func hasReason(err error, reason metav1.StatusReason, code int) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}

	return statusErr.Status.Reason == reason || statusErr.Code() == code
}

// ExpectSuccess returns a response action that turns any 4xx or 5xx response
// into a *StatusError. The response body stays readable.
func ExpectSuccess[C any]() kube.ResponseAction[C] {
	return kube.ResponseConfig[C](func(resp *http.Response) error {
		if resp.StatusCode < http.StatusBadRequest {
			return nil
		}

		return statusFromResponse(resp)
	})
}

func statusFromResponse(resp *http.Response) *StatusError {
	var body []byte

	if resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}

	var status metav1.Status
	if err := json.Unmarshal(body, &status); err == nil && status.Kind == "Status" {
		if status.Code == 0 {
			status.Code = int32(resp.StatusCode) //nolint:gosec // HTTP status codes fit in int32
		}

		return &StatusError{Status: status}
	}

	return &StatusError{Status: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    int32(resp.StatusCode), //nolint:gosec // HTTP status codes fit in int32
		Reason:  reasonForCode(resp.StatusCode),
		Message: strings.TrimSpace(string(body)),
	}}
}

func reasonForCode(code int) metav1.StatusReason {
	switch code {
	case http.StatusBadRequest:
		return metav1.StatusReasonBadRequest
	case http.StatusUnauthorized:
		return metav1.StatusReasonUnauthorized
	case http.StatusForbidden:
		return metav1.StatusReasonForbidden
	case http.StatusNotFound:
		return metav1.StatusReasonNotFound
	case http.StatusMethodNotAllowed:
		return metav1.StatusReasonMethodNotAllowed
	case http.StatusNotAcceptable:
		return metav1.StatusReasonNotAcceptable
	case http.StatusConflict:
		return metav1.StatusReasonConflict
	case http.StatusGone:
		return metav1.StatusReasonGone
	case http.StatusUnsupportedMediaType:
		return metav1.StatusReasonUnsupportedMediaType
	case http.StatusUnprocessableEntity:
		return metav1.StatusReasonInvalid
	case http.StatusTooManyRequests:
		return metav1.StatusReasonTooManyRequests
	case http.StatusInternalServerError:
		return metav1.StatusReasonInternalError
	case http.StatusServiceUnavailable:
		return metav1.StatusReasonServiceUnavailable
	case http.StatusGatewayTimeout:
		return metav1.StatusReasonTimeout
	default:
		return metav1.StatusReasonUnknown
	}
}

// ErrResourceRefIncomplete is returned when a ResourceRef lacks a field the
// operation needs.
var ErrResourceRefIncomplete = errors.New("resource reference is incomplete")
