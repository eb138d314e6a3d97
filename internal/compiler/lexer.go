package compiler

import (
	"errors"

	"github.com/alecthomas/participle/v2/lexer"
)

// ruleLexer tokenizes rule source. Alternatives are tried in order, so the
// multi-character operators precede their single-character prefixes.
// Lowercase rules are elided by the lexer.
var ruleLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "comment", Pattern: `//[^\r\n]*`},
	{Name: "Newline", Pattern: `\r?\n`},
	{Name: "whitespace", Pattern: `[ \t\r\f\v]+`},
	{Name: "Escape", Pattern: `\\[^\r\n]`},
	{Name: "Punct", Pattern: `\+=|-=|\*\*\?|\*\*|\*\?|[\[\]{}<>()@!%_,*?+\-/=&"#|]`},
	{Name: "Text", Pattern: `[^\s\\\[\]{}<>()@!%_,*?+\-/=&"#|]+`},
})

type tokKind int

const (
	tokEOF tokKind = iota
	tokNewline
	tokPunct
	tokText
	tokEscape
)

// token is a significant token; the lexer drops whitespace and comments.
type token struct {
	kind tokKind
	val  string
	pos  lexer.Position
}

// end returns the byte offset just past the token.
func (t token) end() int {
	return t.pos.Offset + len(t.val)
}

// tokenize lexes src into significant tokens, terminated by tokEOF.
func tokenize(filename, src string) ([]token, error) {
	lex, err := ruleLexer.LexString(filename, src)
	if err != nil {
		return nil, lexError(err)
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, lexError(err)
	}

	syms := ruleLexer.Symbols()
	kinds := map[lexer.TokenType]tokKind{
		lexer.EOF:       tokEOF,
		syms["Newline"]: tokNewline,
		syms["Punct"]:   tokPunct,
		syms["Text"]:    tokText,
		syms["Escape"]:  tokEscape,
	}

	toks := make([]token, len(raw))
	for i, t := range raw {
		toks[i] = token{kind: kinds[t.Type], val: t.Value, pos: t.Pos}
	}
	return toks, nil
}

// lexError converts a participle lexer error into a CompileError.
func lexError(err error) error {
	var pe interface {
		Position() lexer.Position
		Message() string
	}
	if errors.As(err, &pe) {
		return &CompileError{Pos: pe.Position(), Message: pe.Message()}
	}
	return &CompileError{Message: err.Error()}
}
