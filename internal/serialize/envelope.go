package serialize

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Envelope is the uniform response wrapper every generated route returns.
type Envelope struct {
	Value       interface{} `json:"value"`
	Datetime    string      `json:"datetime,omitempty"`
	APIVersion  string      `json:"api_version,omitempty"`
	StatusCode  int         `json:"status_code,omitempty"`
	TotalCount  *int        `json:"total_count,omitempty"`
	NextURL     *string     `json:"next_url,omitempty"`
	PreviousURL *string     `json:"previous_url,omitempty"`
	Errors      []APIError  `json:"errors,omitempty"`
}

// EnvelopeFields selects which metadata fields the envelope carries on the
// wire. Each field corresponds to one api.dump configuration toggle.
type EnvelopeFields struct {
	Datetime   bool
	APIVersion bool
	StatusCode bool
	TotalCount bool
	PageURLs   bool
}

// AllEnvelopeFields enables every metadata field.
func AllEnvelopeFields() EnvelopeFields {
	return EnvelopeFields{
		Datetime:   true,
		APIVersion: true,
		StatusCode: true,
		TotalCount: true,
		PageURLs:   true,
	}
}

// Restrict clears the metadata fields disabled by configuration. The HTTP
// status itself is unaffected; callers read StatusCode before restricting.
func (e *Envelope) Restrict(f EnvelopeFields) *Envelope {
	if !f.Datetime {
		e.Datetime = ""
	}
	if !f.APIVersion {
		e.APIVersion = ""
	}
	if !f.StatusCode {
		e.StatusCode = 0
	}
	if !f.TotalCount {
		e.TotalCount = nil
	}
	if !f.PageURLs {
		e.NextURL = nil
		e.PreviousURL = nil
	}
	return e
}

// APIError is one entry of an error response.
type APIError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// NewEnvelope wraps a successful response value.
func NewEnvelope(value interface{}, status int, version string) *Envelope {
	return &Envelope{
		Value:      value,
		Datetime:   time.Now().UTC().Format(time.RFC3339),
		APIVersion: version,
		StatusCode: status,
	}
}

// NewErrorEnvelope wraps one or more errors. Value stays null.
func NewErrorEnvelope(status int, version string, errs ...APIError) *Envelope {
	return &Envelope{
		Datetime:   time.Now().UTC().Format(time.RFC3339),
		APIVersion: version,
		StatusCode: status,
		Errors:     errs,
	}
}

// ErrorMessage builds a single-entry error envelope from an HTTP status text
// and a reason.
func ErrorMessage(status int, version, statusText, reason string) *Envelope {
	return NewErrorEnvelope(status, version, APIError{Error: statusText, Reason: reason})
}

// WithPagination attaches the total match count and the next/previous page
// URLs derived from the request URL. URLs are only set when the page exists.
func (e *Envelope) WithPagination(requestURL *url.URL, total, page, limit int) *Envelope {
	e.TotalCount = &total

	if limit <= 0 {
		return e
	}
	totalPages := (total + limit - 1) / limit

	if page+1 < totalPages {
		next := pageURL(requestURL, page+1)
		e.NextURL = &next
	}
	if page > 0 && page < totalPages {
		prev := pageURL(requestURL, page-1)
		e.PreviousURL = &prev
	}
	return e
}

func pageURL(requestURL *url.URL, page int) string {
	u := *requestURL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	if u.Host == "" {
		return u.RequestURI()
	}
	return fmt.Sprintf("%s://%s%s", schemeOrDefault(&u), u.Host, u.RequestURI())
}

func schemeOrDefault(u *url.URL) string {
	if u.Scheme != "" {
		return u.Scheme
	}
	return "http"
}
