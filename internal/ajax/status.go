package ajax

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// UnknownStatusError is returned when a symbolic status has no standard HTTP code.
type UnknownStatusError struct {
	Symbol string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("ajax: unknown status %q", e.Symbol)
}

// Status is an HTTP status given either as a number or as a symbol such as
// "not_found". The zero value is "ok".
type Status struct {
	code   int
	symbol string
}

// Code returns a numeric Status.
func Code(code int) Status {
	return Status{code: code}
}

// Symbol returns a symbolic Status. The symbol is resolved lazily, so an
// unknown symbol only fails when a numeric code is requested.
func Symbol(name string) Status {
	return Status{symbol: name}
}

// IsSymbolic reports whether the status was given by name.
func (s Status) IsSymbolic() bool {
	return s.symbol != ""
}

// Numeric returns the HTTP status code.
func (s Status) Numeric() (int, error) {
	if s.symbol == "" {
		if s.code == 0 {
			return http.StatusOK, nil
		}
		return s.code, nil
	}
	code, ok := statusCodes[s.symbol]
	if !ok {
		return 0, &UnknownStatusError{Symbol: s.symbol}
	}
	return code, nil
}

// Original returns the status in the form it was given: a string for
// symbolic statuses, an int otherwise.
func (s Status) Original() any {
	switch {
	case s.symbol != "":
		return s.symbol
	case s.code == 0:
		return "ok"
	default:
		return s.code
	}
}

func (s Status) String() string {
	return fmt.Sprint(s.Original())
}

// MarshalJSON encodes the status in its original form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Original())
}

// statusCodes maps symbolized reason phrases ("Not Found" -> "not_found")
// to their codes.
var statusCodes = func() map[string]int {
	m := make(map[string]int)
	for code := 100; code < 600; code++ {
		if text := http.StatusText(code); text != "" {
			m[symbolize(text)] = code
		}
	}
	return m
}()

var symbolReplacer = strings.NewReplacer(" ", "_", "-", "_", "'", "_")

func symbolize(text string) string {
	return symbolReplacer.Replace(strings.ToLower(text))
}
