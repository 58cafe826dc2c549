// Package config loads, validates and persists the chores document and
// watches it for external edits.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/simplechores/internal/model"
)

// Parse decodes a chores document. Unknown keys are rejected, defaults are
// applied and slugs normalized before the snapshot is validated as a whole.
// An empty document yields an empty snapshot. Every failure is a
// *model.ConfigLoadError.
func Parse(data []byte) (*model.Snapshot, error) {
	var snap model.Snapshot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil && !errors.Is(err, io.EOF) {
		return nil, &model.ConfigLoadError{Reason: "parse yaml", Err: err}
	}

	for i, c := range snap.Chores {
		if model.NormalizeSlug(c.Slug) == "" {
			return nil, &model.ConfigLoadError{Err: &model.ValidationError{
				Field:  fmt.Sprintf("chores[%d].slug", i),
				Reason: fmt.Sprintf("slug %q is empty after normalization", c.Slug),
			}}
		}
	}
	for i, p := range snap.Privileges {
		if model.NormalizeSlug(p.Slug) == "" {
			return nil, &model.ConfigLoadError{Err: &model.ValidationError{
				Field:  fmt.Sprintf("privileges[%d].slug", i),
				Reason: fmt.Sprintf("slug %q is empty after normalization", p.Slug),
			}}
		}
	}

	snap.Normalize()
	if err := snap.Validate(); err != nil {
		return nil, &model.ConfigLoadError{Err: err}
	}
	return &snap, nil
}

// Encode writes snap as YAML with a fixed field order and enums as their
// string values.
func Encode(snap *model.Snapshot) ([]byte, error) {
	if snap == nil {
		snap = &model.Snapshot{}
	}
	out := snap.Clone()
	out.Normalize()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
