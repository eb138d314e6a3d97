package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/sce/internal/ir"
)

// marshalJSON converts a value to JSON TEXT for storage.
// Uses json.Encoder with HTML escaping disabled. Symbols are stored exactly
// as the engine produced them; canonical JSON would NFC normalize them.
func marshalJSON(what string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// marshalWord stores a nil word as [] so it reads back non-nil.
func marshalWord(w ir.Word) (string, error) {
	return marshalJSON("word", w.Clone())
}

func marshalDiagnostics(d []ir.Diagnostic) (string, error) {
	if d == nil {
		d = []ir.Diagnostic{}
	}
	return marshalJSON("diagnostics", d)
}

func marshalSites(s []ir.Span) (string, error) {
	if s == nil {
		s = []ir.Span{}
	}
	return marshalJSON("sites", s)
}

func unmarshalWord(data string) (ir.Word, error) {
	w := ir.Word{}
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("unmarshal word: %w", err)
	}
	if w == nil {
		w = ir.Word{}
	}
	return w, nil
}

// unmarshalDiagnostics returns nil for an empty list, matching how the
// engine leaves Diagnostics unset.
func unmarshalDiagnostics(data string) ([]ir.Diagnostic, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var d []ir.Diagnostic
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	return d, nil
}

func unmarshalSites(data string) ([]ir.Span, error) {
	var s []ir.Span
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("unmarshal sites: %w", err)
	}
	return s, nil
}
