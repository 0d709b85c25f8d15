// Package responseformat encodes results as JSON, MessagePack or CSV, for HTTP responses
// and for files written by the command-line tools.
package responseformat

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format is an output encoding.
type Format string

const (
	JSON    Format = "json"
	MsgPack Format = "msgpack"
	CSV     Format = "csv"
)

// ErrUnknownFormat is returned for unsupported format names.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat accepts json (also the empty string), msgpack and csv, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", JSON:
		return JSON, nil
	case MsgPack, CSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case MsgPack:
		return "application/x-msgpack"
	case CSV:
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Encode writes data to w. JSON output maps NaN and infinities to null; CSV needs a
// slice of structs.
func Encode(w io.Writer, f Format, data any) error {
	switch f {
	case MsgPack:
		encoder := msgpack.NewEncoder(w)
		encoder.SetCustomStructTag("json") // Use json tags for MessagePack
		return encoder.Encode(data)
	case CSV:
		return writeCSV(w, data)
	case JSON, "":
		return writeJSON(w, data)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// Formatter handles encoding and writing HTTP responses
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatFromRequest reads the format query parameter. Unknown values fall back to JSON.
func FormatFromRequest(req *http.Request) Format {
	f, err := ParseFormat(req.URL.Query().Get("format"))
	if err != nil {
		return JSON
	}
	return f
}

// WriteResponse writes data in the format selected by the request's format query
// parameter, JSON by default.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, data any, headers map[string]string) error {
	return f.WriteStatus(w, req, http.StatusOK, data, headers)
}

// WriteStatus is WriteResponse with an explicit status code.
func (f *Formatter) WriteStatus(w http.ResponseWriter, req *http.Request, status int, data any, headers map[string]string) error {
	for k, v := range headers {
		w.Header().Set(k, v)
	}

	// Always set CORS header
	w.Header().Set("Access-Control-Allow-Origin", "*")

	format := FormatFromRequest(req)
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(status)
	return Encode(w, format, data)
}

// ErrorBody is the payload of error responses.
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// WriteError writes an error payload. CSV requests receive JSON since errors are not tabular.
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, err error) error {
	body := ErrorBody{Error: err.Error(), Status: status}
	w.Header().Set("Access-Control-Allow-Origin", "*")

	format := FormatFromRequest(req)
	if format == CSV {
		format = JSON
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(status)
	return Encode(w, format, body)
}
