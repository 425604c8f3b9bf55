// Package apierror maps failed calls to the remote services onto a small set of
// error kinds that callers can test with errors.Is.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/trafficportal/linkshortener/httpclient"
	"github.com/trafficportal/linkshortener/models"
)

// ErrAPI is the root kind; every other kind matches it as well.
var ErrAPI = errors.New("api error")

var (
	ErrValidation     = fmt.Errorf("%w: validation failed", ErrAPI)
	ErrAuthentication = fmt.Errorf("%w: authentication failed", ErrAPI)
	ErrRateLimit      = fmt.Errorf("%w: rate limit exceeded", ErrAPI)
	ErrServer         = fmt.Errorf("%w: server error", ErrAPI)
	ErrNetwork        = fmt.Errorf("%w: network error", ErrAPI)
	ErrNotFound       = fmt.Errorf("%w: not found", ErrAPI)
	ErrConflict       = fmt.Errorf("%w: conflict", ErrAPI)
)

const maxBodyInMessage = 256

type Error struct {
	Service    string
	Kind       error
	StatusCode int
	Message    string
	Body       []byte
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	b.WriteString(": ")
	b.WriteString(kindText(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func kindText(kind error) string {
	if kind == nil || kind == ErrAPI {
		return ErrAPI.Error()
	}
	return strings.TrimPrefix(kind.Error(), ErrAPI.Error()+": ")
}

// KindForStatus picks the error kind for a non-2xx HTTP status.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuthentication
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status >= 500:
		return ErrServer
	default:
		return ErrAPI
	}
}

// FromResponse builds the error for a non-2xx response.
func FromResponse(service string, status int, headers http.Header, body []byte) *Error {
	e := &Error{
		Service:    service,
		Kind:       KindForStatus(status),
		StatusCode: status,
		Message:    messageFromBody(status, body),
		Body:       body,
	}
	if status == http.StatusTooManyRequests {
		e.RetryAfter = parseRetryAfter(headers.Get("Retry-After"), time.Now())
	}
	return e
}

// Network wraps a transport failure.
func Network(service string, err error) *Error {
	return &Error{Service: service, Kind: ErrNetwork, Err: err}
}

// Transport wraps an error returned by httpclient.Request. A response over the
// size limit did arrive, so it is reported as an API error rather than a
// network failure.
func Transport(service string, err error) *Error {
	if errors.Is(err, httpclient.ErrResponseTooLarge) {
		return &Error{Service: service, Kind: ErrAPI, Message: "response rejected", Err: err}
	}
	return Network(service, err)
}

// Validation reports a request rejected before it was sent.
func Validation(service string, err error) *Error {
	return &Error{Service: service, Kind: ErrValidation, Err: err}
}

// Unexpected reports a 2xx response that still cannot be used.
func Unexpected(service string, status int, message string, body []byte) *Error {
	return &Error{Service: service, Kind: ErrAPI, StatusCode: status, Message: message, Body: body}
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func messageFromBody(status int, body []byte) string {
	var envelope models.APIErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil {
		if msg := envelope.Text(); msg != "" {
			return msg
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" || strings.HasPrefix(text, "<") {
		return http.StatusText(status)
	}
	if len(text) > maxBodyInMessage {
		cut := maxBodyInMessage
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}

func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
