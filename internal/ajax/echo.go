package ajax

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"

	"ballast-go/internal/metrics"
)

const mimeYAML = "application/yaml"

// acceptFormats maps Accept media types to reply formats. Media types not
// listed here are skipped during negotiation.
var acceptFormats = map[string]string{
	echo.MIMEApplicationJSON:       FormatJSON,
	echo.MIMEApplicationJavaScript: FormatJSONP,
	"text/javascript":              FormatJSONP,
	echo.MIMETextPlain:             FormatText,
	mimeYAML:                       FormatYAML,
	"application/x-yaml":           FormatYAML,
	"text/yaml":                    FormatYAML,
}

// EchoTransport adapts an echo.Context to the Transport contract.
type EchoTransport struct {
	c       echo.Context
	metrics *metrics.Metrics
}

var _ Transport = (*EchoTransport)(nil)

// NewEchoTransport wraps c. The metrics parameter is optional; pass nil to
// disable reply metrics.
func NewEchoTransport(c echo.Context, m *metrics.Metrics) *EchoTransport {
	return &EchoTransport{c: c, metrics: m}
}

// Reply is a shorthand for New(NewEchoTransport(c, m), opts...).Reply("", false).
func Reply(c echo.Context, m *metrics.Metrics, opts ...Option) error {
	return New(NewEchoTransport(c, m), opts...).Reply("", c.QueryParam("pretty") == "true")
}

// Performed reports whether the response has been committed.
func (t *EchoTransport) Performed() bool {
	return t.c.Response().Committed
}

// Param returns a query parameter.
func (t *EchoTransport) Param(name string) string {
	return t.c.QueryParam(name)
}

// RequestFormat negotiates a format from the Accept header. The first
// supported media type wins; wildcards and unsupported types are skipped.
func (t *EchoTransport) RequestFormat() string {
	for _, part := range strings.Split(t.c.Request().Header.Get(echo.HeaderAccept), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if f, ok := acceptFormats[mediaType]; ok {
			return f
		}
	}
	return ""
}

// Render writes the response with echo.
func (t *EchoTransport) Render(r Render) error {
	err := t.render(r)
	if err == nil && t.metrics != nil {
		t.metrics.Replies.WithLabelValues(metrics.NormalizeFormat(r.Format), strconv.Itoa(r.Status)).Inc()
	}
	return err
}

func (t *EchoTransport) render(r Render) error {
	// net/http panics on codes it cannot write.
	if r.Status < 100 || r.Status > 999 {
		return fmt.Errorf("ajax: invalid HTTP status %d", r.Status)
	}

	switch r.Format {
	case FormatJSON:
		b, err := contentBytes(r)
		if err != nil {
			return err
		}
		return t.c.JSONBlob(r.Status, b)
	case FormatJSONP:
		b, err := contentBytes(r)
		if err != nil {
			return err
		}
		return t.c.JSONPBlob(r.Status, r.Callback, b)
	case FormatPrettyJSONP:
		b, err := json.MarshalIndent(r.Content, "", "  ")
		if err != nil {
			return err
		}
		return t.c.JSONPBlob(r.Status, r.Callback, b)
	case FormatText:
		b, err := contentBytes(r)
		if err != nil {
			return err
		}
		return t.c.Blob(r.Status, r.ContentType, b)
	case FormatYAML:
		b, err := yaml.Marshal(r.Content)
		if err != nil {
			return err
		}
		return t.c.Blob(r.Status, mimeYAML, b)
	default:
		return echo.NewHTTPError(http.StatusNotAcceptable, fmt.Sprintf("unsupported format %q", r.Format))
	}
}

func contentBytes(r Render) ([]byte, error) {
	switch v := r.Content.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("ajax: %s content must be serialized, got %T", r.Format, r.Content)
	}
}
