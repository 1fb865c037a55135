// Package hostmatch matches requests against an allow-list of domains after
// normalizing the request host with a substitution rule.
package hostmatch

import (
	"net"
	"net/http"
	"regexp"
	"strings"
)

// DefaultPattern strips a trailing development suffix, so "example.com.dev"
// matches "example.com".
const DefaultPattern = `\.dev$`

// Request is anything that exposes a host.
type Request interface {
	Host() string
}

// Rule rewrites a host before membership is checked. It is either a Literal
// or a Callback.
type Rule interface {
	Apply(host string) string
}

// Literal replaces every match of Pattern with Replacement, taken verbatim.
type Literal struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Apply implements Rule.
func (l Literal) Apply(host string) string {
	return l.Pattern.ReplaceAllLiteralString(host, l.Replacement)
}

// Callback replaces every match of Pattern with the result of Fn(match).
type Callback struct {
	Pattern *regexp.Regexp
	Fn      func(match string) string
}

// Apply implements Rule.
func (c Callback) Apply(host string) string {
	return c.Pattern.ReplaceAllStringFunc(host, c.Fn)
}

type options struct {
	pattern     string
	replacement string
	fn          func(string) string
}

// Option configures a Matcher.
type Option func(*options)

// WithPattern sets the regular expression removed from or replaced in the host.
func WithPattern(expr string) Option {
	return func(o *options) { o.pattern = expr }
}

// WithReplacement sets the literal replacement for pattern matches.
func WithReplacement(s string) Option {
	return func(o *options) { o.replacement = s }
}

// WithReplaceFunc sets a callback computing the replacement for each match.
// It takes precedence over WithReplacement.
func WithReplaceFunc(fn func(match string) string) Option {
	return func(o *options) { o.fn = fn }
}

// Matcher is immutable and safe for concurrent use.
type Matcher struct {
	domains []string
	set     map[string]struct{}
	rule    Rule
}

// New creates a Matcher for the given domains. An invalid pattern returns the
// regexp package's error as is.
func New(domains []string, opts ...Option) (*Matcher, error) {
	o := options{pattern: DefaultPattern}
	for _, opt := range opts {
		opt(&o)
	}

	re, err := regexp.Compile(o.pattern)
	if err != nil {
		return nil, err
	}

	var rule Rule = Literal{Pattern: re, Replacement: o.replacement}
	if o.fn != nil {
		rule = Callback{Pattern: re, Fn: o.fn}
	}

	m := &Matcher{
		set:  make(map[string]struct{}, len(domains)),
		rule: rule,
	}
	for _, d := range domains {
		if _, dup := m.set[d]; dup {
			continue
		}
		m.set[d] = struct{}{}
		m.domains = append(m.domains, d)
	}
	return m, nil
}

// NewSingle creates a Matcher for a single domain.
func NewSingle(domain string, opts ...Option) (*Matcher, error) {
	return New([]string{domain}, opts...)
}

// Rule returns the substitution rule chosen at construction.
func (m *Matcher) Rule() Rule {
	return m.rule
}

// Domains returns a copy of the allow-list in configuration order.
func (m *Matcher) Domains() []string {
	out := make([]string, len(m.domains))
	copy(out, m.domains)
	return out
}

// FinalHost applies the substitution rule to host.
func (m *Matcher) FinalHost(host string) string {
	return m.rule.Apply(host)
}

// MatchesHost reports whether host, after substitution, is one of the domains.
func (m *Matcher) MatchesHost(host string) bool {
	_, ok := m.set[m.FinalHost(host)]
	return ok
}

// Matches reports whether the request host matches.
func (m *Matcher) Matches(r Request) bool {
	return m.MatchesHost(r.Host())
}

type hostRequest string

func (h hostRequest) Host() string { return string(h) }

// FromHTTP adapts an *http.Request. The port, if any, is not part of the host.
func FromHTTP(r *http.Request) Request {
	return hostRequest(StripPort(r.Host))
}

// StripPort returns hostport without its port and IPv6 brackets.
func StripPort(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
}
