package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sce/internal/harness"
)

// Project describes one sound-change project: how to segment text, the
// categories and rules, and the lexicon to evolve.
//
// Projects are written in CUE (.cue) or YAML (.yaml, .yml):
//
//	name: "latin-to-spanish"
//	graphs: ["ch", "qu"]
//	categories: {
//		V: ["a", "e", "i", "o", "u"]
//	}
//	rules_file: "rules.sc"
//	lexicon_file: "words.txt"
//	max_passes: 50
type Project struct {
	Name             string             `json:"name" yaml:"name"`
	Graphs           []string           `json:"graphs,omitempty" yaml:"graphs,omitempty"`
	Separator        string             `json:"separator,omitempty" yaml:"separator,omitempty"`
	Normalize        bool               `json:"normalize,omitempty" yaml:"normalize,omitempty"`
	Categories       harness.Categories `json:"-" yaml:"categories,omitempty"`
	Rules            string             `json:"rules,omitempty" yaml:"rules,omitempty"`
	RulesFile        string             `json:"rules_file,omitempty" yaml:"rules_file,omitempty"`
	Lexicon          []string           `json:"lexicon,omitempty" yaml:"lexicon,omitempty"`
	LexiconFile      string             `json:"lexicon_file,omitempty" yaml:"lexicon_file,omitempty"`
	MaxPasses        int                `json:"max_passes,omitempty" yaml:"max_passes,omitempty"`
	DisabledOptional []string           `json:"disabled_optional,omitempty" yaml:"disabled_optional,omitempty"`
	Workers          int                `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Dir is the directory rules_file and lexicon_file are relative to.
	Dir string `json:"-" yaml:"-"`

	// RulesName names the rules source in compile errors.
	RulesName string `json:"-" yaml:"-"`
}

// projectFields lists the keys a CUE project may use.
var projectFields = map[string]bool{
	"name": true, "graphs": true, "separator": true, "normalize": true,
	"categories": true, "rules": true, "rules_file": true, "lexicon": true,
	"lexicon_file": true, "max_passes": true, "disabled_optional": true,
	"workers": true,
}

// LoadError represents an error that occurred during project loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// LoadProject reads a project file and resolves its rules and lexicon
// files. The format follows the file extension.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("project file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading project file: %v", err)}
	}

	var p *Project
	switch ext := filepath.Ext(path); ext {
	case ".cue":
		p, err = parseCUEProject(path, data)
	case ".yaml", ".yml":
		p, err = parseYAMLProject(data)
	default:
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("unsupported project format %q (want .cue, .yaml, or .yml)", ext)}
	}
	if err != nil {
		return nil, err
	}

	p.Dir = filepath.Dir(path)
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := p.resolve(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseYAMLProject(data []byte) (*Project, error) {
	var p Project
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing YAML: %v", err)}
	}
	return &p, nil
}

func parseCUEProject(path string, data []byte) (*Project, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, cueLoadError(ErrCodeBuildFailed, err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeBuildFailed, err)
	}

	iter, err := value.Fields()
	if err != nil {
		return nil, cueLoadError(ErrCodeBuildFailed, err)
	}
	for iter.Next() {
		if !projectFields[iter.Selector().String()] {
			return nil, &LoadError{
				Code:    ErrCodeUnknownField,
				Message: fmt.Sprintf("unknown project field %q", iter.Selector().String()),
				Pos:     iter.Value().Pos(),
			}
		}
	}

	var p Project
	if err := value.Decode(&p); err != nil {
		return nil, cueLoadError(ErrCodeBuildFailed, err)
	}

	// Struct field order is declaration order, which Decode into a map
	// would lose.
	cats := value.LookupPath(cue.ParsePath("categories"))
	if cats.Exists() {
		iter, err := cats.Fields()
		if err != nil {
			return nil, cueLoadError(ErrCodeBuildFailed, err)
		}
		for iter.Next() {
			var members []string
			if err := iter.Value().Decode(&members); err != nil {
				return nil, cueLoadError(ErrCodeBuildFailed, err)
			}
			p.Categories = append(p.Categories, harness.CategoryDef{
				Name:    iter.Selector().Unquoted(),
				Members: members,
			})
		}
	}
	return &p, nil
}

// cueLoadError converts a CUE error, keeping the first position.
func cueLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
		le.Message = cueerrors.Details(err, nil)
		le.Message = strings.TrimSpace(le.Message)
	}
	return le
}

// resolve reads rules_file and lexicon_file and checks the project is
// usable.
func (p *Project) resolve() error {
	if p.Rules != "" && p.RulesFile != "" {
		return &LoadError{Code: ErrCodeInvalidProject, Message: "rules and rules_file are mutually exclusive"}
	}
	if p.MaxPasses < 0 || p.Workers < 0 {
		return &LoadError{Code: ErrCodeInvalidProject, Message: "max_passes and workers must be non-negative"}
	}

	p.RulesName = p.Name
	if p.RulesFile != "" {
		path := p.path(p.RulesFile)
		data, err := os.ReadFile(path)
		if err != nil {
			return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules file: %v", err)}
		}
		p.Rules = string(data)
		p.RulesName = p.RulesFile
	}

	if p.LexiconFile != "" {
		words, err := ReadLexicon(p.path(p.LexiconFile))
		if err != nil {
			return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("lexicon file: %v", err)}
		}
		p.Lexicon = append(p.Lexicon, words...)
	}
	return nil
}

func (p *Project) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Dir, rel)
}

// ReadLexicon reads one word per line. Blank lines and lines starting
// with "//" are skipped; surrounding whitespace is trimmed.
func ReadLexicon(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
