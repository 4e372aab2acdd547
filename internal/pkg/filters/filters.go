// Package filters compiles the CLI's message filter expressions into a
// predicate over parsed SIP messages.
package filters

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/sipcraft/sofiacat/internal/pkg/sip"
	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

// Options are the raw filter expressions collected from flags and config.
type Options struct {
	Methods   []string
	Excludes  []string
	CallID    string
	Direction string
	Address   string
	Headers   []string // NAME=REGEX
}

// FromViper collects filter options from the filter.* config keys the CLI
// flags are bound to.
func FromViper() Options {
	return Options{
		Methods:   viper.GetStringSlice("filter.method"),
		Excludes:  viper.GetStringSlice("filter.exclude"),
		CallID:    viper.GetString("filter.call_id"),
		Direction: viper.GetString("filter.direction"),
		Address:   viper.GetString("filter.address"),
		Headers:   viper.GetStringSlice("filter.header"),
	}
}

// CompileError reports an unusable filter expression.
type CompileError struct {
	Expr   string
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Expr, e.Reason)
}

type headerFilter struct {
	name    string
	pattern *regexp.Regexp
}

// Filters is a compiled message predicate. The zero options compile to a
// predicate matching everything.
type Filters struct {
	methods   []string
	excludes  []string
	callID    *regexp.Regexp
	direction *sofia.Direction
	address   *regexp.Regexp
	headers   []headerFilter
}

// Compile validates and compiles the filter options.
func Compile(opts Options) (*Filters, error) {
	f := &Filters{}

	for _, m := range opts.Methods {
		f.methods = append(f.methods, strings.ToUpper(m))
	}
	for _, m := range opts.Excludes {
		f.excludes = append(f.excludes, strings.ToUpper(m))
	}

	if opts.CallID != "" {
		re, err := regexp.Compile(opts.CallID)
		if err != nil {
			return nil, &CompileError{Expr: opts.CallID, Reason: err.Error()}
		}
		f.callID = re
	}

	switch opts.Direction {
	case "":
	case "recv":
		d := sofia.Recv
		f.direction = &d
	case "sent":
		d := sofia.Sent
		f.direction = &d
	default:
		return nil, &CompileError{Expr: opts.Direction, Reason: "expected recv or sent"}
	}

	if opts.Address != "" {
		re, err := regexp.Compile(opts.Address)
		if err != nil {
			return nil, &CompileError{Expr: opts.Address, Reason: err.Error()}
		}
		f.address = re
	}

	for _, spec := range opts.Headers {
		name, expr, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, &CompileError{Expr: spec, Reason: "expected NAME=REGEX"}
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, &CompileError{Expr: spec, Reason: err.Error()}
		}
		f.headers = append(f.headers, headerFilter{name: name, pattern: re})
	}

	return f, nil
}

// Matches reports whether the message passes every configured filter.
func (f *Filters) Matches(msg *sip.Message) bool {
	if len(f.methods) > 0 {
		method, _ := msg.Method()
		if !containsFold(f.methods, method) {
			return false
		}
	}

	if len(f.excludes) > 0 {
		method, _ := msg.Method()
		if containsFold(f.excludes, method) {
			return false
		}
	}

	if f.callID != nil {
		cid, ok := msg.CallID()
		if !ok || !f.callID.MatchString(cid) {
			return false
		}
	}

	if f.direction != nil && msg.Direction != *f.direction {
		return false
	}

	if f.address != nil && !f.address.MatchString(msg.Address) {
		return false
	}

	for _, hf := range f.headers {
		matched := false
		for _, h := range msg.Headers {
			if strings.EqualFold(h.Name, hf.name) && hf.pattern.MatchString(h.Value) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
