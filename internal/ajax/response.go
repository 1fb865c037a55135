// Package ajax builds normalized {status, data, error} responses and emits
// them through a caller-supplied transport.
package ajax

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Formats understood by Reply. Any other format is passed through to the
// transport with the unserialized Envelope as content.
const (
	FormatJSON        = "json"
	FormatJSONP       = "jsonp"
	FormatPrettyJSONP = "pretty_jsonp"
	FormatText        = "text"
	FormatYAML        = "yaml"
)

// ContentTypeText is the content type override sent for FormatText.
const ContentTypeText = "text/plain"

// validCallback matches JavaScript identifiers and dotted member paths.
var validCallback = regexp.MustCompile(`^[A-Za-z_$][\w$.]*$`)

// Transport emits the final response. It is owned by the caller.
type Transport interface {
	// Render writes the response. It is called at most once per Reply.
	Render(r Render) error
	// Param returns a request parameter, or "" when absent.
	Param(name string) string
	// RequestFormat returns the negotiated format of the request, or "".
	RequestFormat() string
	// Performed reports whether a response was already written.
	Performed() bool
}

// Render is the single render call made by Reply.
//
// Content holds the serialized envelope as []byte for the json, jsonp and
// text formats, and the Envelope value itself for every other format.
type Render struct {
	Format      string
	Content     any
	Status      int
	Callback    string
	ContentType string
}

// Envelope is the wire shape of a response.
type Envelope struct {
	Status any `json:"status" yaml:"status"`
	Data   any `json:"data" yaml:"data"`
	Error  any `json:"error" yaml:"error"`
}

// Response is built per request, filled in by the caller and sent once with Reply.
type Response struct {
	Status    Status
	Data      any
	Error     any
	Transport Transport

	now func() time.Time
}

// Option configures a Response.
type Option func(*Response)

// WithStatus sets the response status.
func WithStatus(s Status) Option {
	return func(r *Response) { r.Status = s }
}

// WithData sets the response payload.
func WithData(data any) Option {
	return func(r *Response) { r.Data = data }
}

// WithError sets the error payload.
func WithError(err any) Option {
	return func(r *Response) { r.Error = err }
}

// New creates a Response with status ok and an empty data mapping.
func New(t Transport, opts ...Option) *Response {
	r := &Response{
		Data:      map[string]any{},
		Transport: t,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NumericStatus returns the status as an HTTP status code.
func (r *Response) NumericStatus() (int, error) {
	return r.Status.Numeric()
}

// Envelope returns the response envelope. When originalStatus is true the
// status keeps the form it was given in; otherwise it is numeric.
func (r *Response) Envelope(originalStatus bool) (Envelope, error) {
	env := Envelope{Data: r.Data, Error: r.Error}
	if originalStatus {
		env.Status = r.Status.Original()
		return env, nil
	}
	code, err := r.NumericStatus()
	if err != nil {
		return Envelope{}, err
	}
	env.Status = code
	return env, nil
}

// Reply sends the response through the transport. It does nothing when the
// transport has already performed a response.
//
// The format is resolved from the format argument, then the "format"
// parameter, then the negotiated request format, and finally defaults to
// json. For jsonp the callback name comes from the "callback" parameter or is
// synthesized from the current time when the parameter is absent or not a
// JavaScript identifier.
func (r *Response) Reply(format string, pretty bool) error {
	if r.Transport.Performed() {
		return nil
	}

	format, callback, contentType := r.formatReply(format)

	env, err := r.Envelope(false)
	if err != nil {
		return err
	}

	var content any = env
	switch format {
	case FormatJSON, FormatJSONP, FormatText:
		b, err := encode(env, pretty)
		if err != nil {
			return err
		}
		content = b
	}

	return r.Transport.Render(Render{
		Format:      format,
		Content:     content,
		Status:      env.Status.(int),
		Callback:    callback,
		ContentType: contentType,
	})
}

func (r *Response) formatReply(format string) (string, string, string) {
	format = r.chooseFormat(format)

	var callback string
	if format == FormatJSONP || format == FormatPrettyJSONP {
		callback = r.Transport.Param("callback")
		if !validCallback.MatchString(callback) {
			callback = fmt.Sprintf("jsonp%d", r.clock().Unix())
		}
	}

	var contentType string
	if format == FormatText {
		contentType = ContentTypeText
	}

	return format, callback, contentType
}

func (r *Response) chooseFormat(format string) string {
	for _, f := range []string{format, r.Transport.Param("format"), r.Transport.RequestFormat()} {
		if f != "" {
			return f
		}
	}
	return FormatJSON
}

func (r *Response) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func encode(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
