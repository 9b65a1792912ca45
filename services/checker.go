package services

import (
	"fmt"

	"draft-submission-api/config"
)

// CheckResult is one checker's verdict. Passed is nil when the checker
// could not reach a conclusion.
type CheckResult struct {
	Passed   *bool
	Message  string
	Errors   []string
	Warnings []string
	Items    map[string]any
}

// Checker is the plugin surface. A checker must additionally implement at
// least one of the capability interfaces below; the registry verifies that
// at build time so a misconfigured checker refuses startup instead of
// surprising at runtime.
type Checker interface {
	Name() string
}

type FileTextChecker interface {
	Checker
	CheckFileText(path string) (CheckResult, error)
}

type FileXMLChecker interface {
	Checker
	CheckFileXML(path string) (CheckResult, error)
}

type FragmentTextChecker interface {
	Checker
	CheckFragmentText(fragment string) (CheckResult, error)
}

type FragmentXMLChecker interface {
	Checker
	CheckFragmentXML(fragment string) (CheckResult, error)
}

// Capability flags, resolved once when the registry is built rather than
// probed per call.
type Capability uint8

const (
	CapFileText Capability = 1 << iota
	CapFileXML
	CapFragmentText
	CapFragmentXML
)

func (c Capability) Has(cap Capability) bool {
	return c&cap != 0
}

func capabilitiesOf(c Checker) Capability {
	var caps Capability
	if _, ok := c.(FileTextChecker); ok {
		caps |= CapFileText
	}
	if _, ok := c.(FileXMLChecker); ok {
		caps |= CapFileXML
	}
	if _, ok := c.(FragmentTextChecker); ok {
		caps |= CapFragmentText
	}
	if _, ok := c.(FragmentXMLChecker); ok {
		caps |= CapFragmentXML
	}
	return caps
}

// RegisteredChecker pairs a checker with its resolved capabilities.
type RegisteredChecker struct {
	Checker      Checker
	Capabilities Capability
}

// Registry holds the configured checkers in execution order.
type Registry struct {
	checkers []RegisteredChecker
}

// Checkers returns the registered checkers in order.
func (r *Registry) Checkers() []RegisteredChecker {
	return r.checkers
}

// checkerConstructors maps configured names to compiled-in constructors.
// A constructor may return nil to signal "not available with these
// settings" (e.g. no external binary configured), which is a startup error
// when the name was explicitly listed.
var checkerConstructors = map[string]func(config.Settings) Checker{
	"textual": func(config.Settings) Checker { return &TextualChecker{MaxLineLength: 72} },
	"xmlwf":   func(config.Settings) Checker { return &XMLWellFormedChecker{} },
	"extnits": func(s config.Settings) Checker {
		if s.NitsBinary == "" {
			return nil
		}
		return &ExternalNitsChecker{Binary: s.NitsBinary}
	},
}

// BuildRegistry instantiates every configured checker and validates it.
// Any unresolvable name or capability-less checker fails the build; the
// process must refuse to start on error.
func BuildRegistry(settings config.Settings, names []string) (*Registry, error) {
	reg := &Registry{}
	for _, name := range names {
		ctor, ok := checkerConstructors[name]
		if !ok {
			return nil, fmt.Errorf("checker registry: unknown checker %q", name)
		}
		checker := ctor(settings)
		if checker == nil {
			return nil, fmt.Errorf("checker registry: checker %q cannot be instantiated with the current settings", name)
		}
		caps := capabilitiesOf(checker)
		if caps == 0 {
			return nil, fmt.Errorf("checker registry: checker %q implements no recognized check method", name)
		}
		reg.checkers = append(reg.checkers, RegisteredChecker{Checker: checker, Capabilities: caps})
	}
	return reg, nil
}
