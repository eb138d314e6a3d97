// Package compiler turns rule source into an immutable ir.Ruleset.
//
// Source is one statement per line: category edits ("V = a, e, i") and
// sound-change rules ("[P] > [B] / [V]_[V]"). Syntax errors fail the whole
// unit with a positioned CompileError. Semantic conditions such as an
// undefined category never fail compilation; they are recorded as rule
// diagnostics and the affected branch is disabled or checked per site by
// the engine.
package compiler

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/roach88/sce/internal/category"
	"github.com/roach88/sce/internal/ir"
	"github.com/roach88/sce/internal/segment"
)

// DefaultOptionalClass is the class of an "@optional" rule written without
// an explicit "=class".
const DefaultOptionalClass = "default"

// CompileError is a syntax error with its source position.
type CompileError struct {
	Pos     lexer.Position
	Message string
}

func (e *CompileError) Error() string {
	if e.Pos.Line > 0 {
		if e.Pos.Filename != "" {
			return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Message)
		}
		return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	return e.Message
}

// IsCompileError reports whether err is a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// Option configures Compile.
type Option func(*options)

type options struct {
	seg      *segment.Segmenter
	filename string
}

// WithSegmenter sets the segmenter used for literal text.
// The default has no polygraphs.
func WithSegmenter(s *segment.Segmenter) Option {
	return func(o *options) {
		if s != nil {
			o.seg = s
		}
	}
}

// WithFilename sets the file name reported in CompileError positions.
func WithFilename(name string) Option {
	return func(o *options) {
		o.filename = name
	}
}

// Compile parses src against the categories already in table and returns
// the compiled ruleset. The table is not modified: category statements in
// src edit a private copy, and each rule sees the definitions in effect at
// its own line.
func Compile(src string, table *category.Table, opts ...Option) (*ir.Ruleset, error) {
	o := options{seg: segment.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	stmts, err := parse(o.filename, src)
	if err != nil {
		return nil, err
	}

	tbl := category.NewTable()
	if table != nil {
		tbl = table.Clone()
	}
	l := &lowerer{tbl: tbl, seg: o.seg}

	rs := &ir.Ruleset{Rules: []ir.Rule{}}
	for _, st := range stmts {
		if st.cat != nil {
			rs.CategoryDiagnostics = append(rs.CategoryDiagnostics, l.lowerCategory(st.cat, st.pos.Line)...)
			continue
		}
		rule, err := l.lowerRule(len(rs.Rules), st)
		if err != nil {
			var ce *CompileError
			if errors.As(err, &ce) && ce.Pos.Filename == "" {
				ce.Pos.Filename = o.filename
			}
			return nil, err
		}
		rs.Rules = append(rs.Rules, rule)
	}

	rs.Categories = tbl.Arena()
	rs.Names = tbl.Names()
	return rs, nil
}
