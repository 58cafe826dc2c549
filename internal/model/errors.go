package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Sentinels for errors.Is. The structured types below unwrap to one of them.
var (
	ErrConfigLoad = errors.New("config load failed")
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate")
	ErrValidation = errors.New("validation failed")
)

// Kind names the entity an error is about.
type Kind string

const (
	KindChore     Kind = "chore"
	KindPrivilege Kind = "privilege"
	KindAssignee  Kind = "assignee"
)

// ConfigLoadError rejects a whole configuration document. Err may be a joined
// error carrying every individual problem.
type ConfigLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigLoadError) Error() string {
	var b strings.Builder
	b.WriteString("load config")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", strings.ReplaceAll(e.Err.Error(), "\n", "; "))
	}
	return b.String()
}

func (e *ConfigLoadError) Is(target error) bool { return target == ErrConfigLoad }

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// NotFoundError reports an identifier that did not resolve.
type NotFoundError struct {
	Kind     Kind
	Assignee string
	Slug     string
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Kind == KindAssignee:
		return fmt.Sprintf("assignee %q not found", e.Assignee)
	case e.Assignee != "":
		return fmt.Sprintf("%s %q not found for assignee %q", e.Kind, e.Slug, e.Assignee)
	default:
		return fmt.Sprintf("%s slug %q not found", e.Kind, e.Slug)
	}
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type DuplicateError struct {
	Kind Kind
	Slug string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s slug %q", e.Kind, e.Slug)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// ValidationError rejects a parameter before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// BatchError collects per-target failures of a fan-out operation. Targets
// not listed succeeded.
type BatchError struct {
	Failures map[string]error
}

func (e *BatchError) Error() string {
	targets := make([]string, 0, len(e.Failures))
	for t := range e.Failures {
		targets = append(targets, t)
	}
	slices.Sort(targets)
	parts := make([]string, 0, len(targets))
	for _, t := range targets {
		parts = append(parts, fmt.Sprintf("%s: %v", t, e.Failures[t]))
	}
	return fmt.Sprintf("%d of batch failed: %s", len(targets), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		out = append(out, err)
	}
	return out
}

// IsClientError reports whether err was caused by caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConfigLoad)
}
