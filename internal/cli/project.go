package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/sce/internal/category"
	"github.com/roach88/sce/internal/compiler"
	"github.com/roach88/sce/internal/engine"
	"github.com/roach88/sce/internal/ir"
	"github.com/roach88/sce/internal/segment"
)

// isProjectFile reports whether path names a CUE or YAML project rather
// than a bare rules file.
func isProjectFile(path string) bool {
	switch filepath.Ext(path) {
	case ".cue", ".yaml", ".yml":
		return true
	}
	return false
}

// loadInput accepts either a project file or a bare rules file. A bare
// rules file becomes a project with default segmentation and no lexicon.
func loadInput(path string) (*Project, error) {
	if isProjectFile(path) {
		return LoadProject(path)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading rules file: %v", err)}
	}
	base := filepath.Base(path)
	return &Project{
		Name:      strings.TrimSuffix(base, filepath.Ext(base)),
		Rules:     string(data),
		Dir:       filepath.Dir(path),
		RulesName: path,
	}, nil
}

// Segmenter builds the project's segmenter. An empty separator means the
// default one.
func (p *Project) Segmenter() *segment.Segmenter {
	sep := p.Separator
	if sep == "" {
		sep = segment.DefaultSeparator
	}
	return segment.New(p.Graphs, sep, p.Normalize)
}

// Table defines the project categories, in order, on a fresh table.
func (p *Project) Table(seg *segment.Segmenter) *category.Table {
	tbl := category.NewTable()
	for _, c := range p.Categories {
		members := make([]ir.Word, len(c.Members))
		for i, m := range c.Members {
			members[i] = seg.Split(m)
		}
		tbl.Define(c.Name, members)
	}
	return tbl
}

// Compile compiles the project rules. The error is a
// *compiler.CompileError for syntax problems.
func (p *Project) Compile(seg *segment.Segmenter) (*ir.Ruleset, error) {
	return compiler.Compile(p.Rules, p.Table(seg),
		compiler.WithSegmenter(seg),
		compiler.WithFilename(p.RulesName))
}

// Words segments the lexicon.
func (p *Project) Words(seg *segment.Segmenter) []ir.Word {
	words := make([]ir.Word, len(p.Lexicon))
	for i, s := range p.Lexicon {
		words[i] = seg.Split(s)
	}
	return words
}

// EngineOptions turns the project settings into engine options.
// Zero values keep the engine defaults.
func (p *Project) EngineOptions(logger *slog.Logger) []engine.Option {
	opts := []engine.Option{engine.WithLogger(logger)}
	if p.MaxPasses > 0 {
		opts = append(opts, engine.WithMaxPasses(p.MaxPasses))
	}
	if p.Workers > 0 {
		opts = append(opts, engine.WithWorkers(p.Workers))
	}
	if len(p.DisabledOptional) > 0 {
		opts = append(opts, engine.WithDisabledOptional(p.DisabledOptional...))
	}
	return opts
}

// compileProject compiles p and reports failures through the formatter.
// Compile errors are command errors (exit 2) with the rule position.
func compileProject(f *OutputFormatter, p *Project, seg *segment.Segmenter) (*ir.Ruleset, error) {
	rs, err := p.Compile(seg)
	if err == nil {
		return rs, nil
	}
	var details any
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		details = map[string]any{
			"file":   ce.Pos.Filename,
			"line":   ce.Pos.Line,
			"column": ce.Pos.Column,
		}
	}
	return nil, f.fail(ExitCommandError, ErrCodeCompileFailed, "compiling rules", err, details)
}

// reportLoadError reports a project loading failure (exit 2).
func reportLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		var details any
		if le.Pos.IsValid() {
			details = map[string]any{
				"file":   le.Pos.Filename(),
				"line":   le.Pos.Line(),
				"column": le.Pos.Column(),
			}
		}
		return f.fail(ExitCommandError, le.Code, "loading project", err, details)
	}
	return f.fail(ExitCommandError, ErrCodeLoadFailed, "loading project", err, nil)
}
