package outstage

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dekarrin/tameparse/internal/tameparse/binout"
	"github.com/dekarrin/tameparse/internal/tameparse/lexer"
	"github.com/dekarrin/tameparse/internal/tameparse/rewrite"
)

func exprLexerPatterns() []lexer.Pattern {
	return []lexer.Pattern{
		{Name: "+", Regex: `\+`},
		{Name: "*", Regex: `\*`},
		{Name: "(", Regex: `\(`},
		{Name: ")", Regex: `\)`},
		{Name: "id", Regex: `[a-z]+`},
	}
}

func Test_Pipeline_CompilesExprLanguageEndToEnd(t *testing.T) {
	assert := assert.New(t)

	lb := LexerBlock{Patterns: exprLexerPatterns()}
	pb := ParserBlock{
		Grammar: GrammarBlock{
			Terminals: []string{"+", "*", "(", ")", "id"},
			Rules: []RuleBlock{
				{NonTerminal: "E", Productions: [][]string{{"E", "+", "T"}, {"T"}}},
				{NonTerminal: "T", Productions: [][]string{{"T", "*", "F"}, {"F"}}},
				{NonTerminal: "F", Productions: [][]string{{"(", "E", ")"}, {"id"}}},
			},
			Start: "E",
		},
		Precedence: PrecedenceBlock{Entries: []PrecedenceEntry{
			{Symbols: []string{"+"}, Assoc: rewrite.Left},
			{Symbols: []string{"*"}, Assoc: rewrite.Left},
		}},
	}

	backend := &DebugBackend{}
	result, err := Pipeline(context.Background(), binout.Meta{LanguageName: "expr", GeneratorVersionString: "1.0.0"}, lb, pb, backend)
	assert.NoError(err)
	assert.NotNil(result.Table)
	assert.NotEmpty(result.RuleOrder)
	assert.Empty(result.Unresolved, "the layered E/T/F grammar leaves no conflict unresolved")
	assert.Contains(backend.String(), "language: expr")
	assert.Contains(backend.String(), "lexer:")
	assert.Contains(backend.String(), "parser:")
}

func Test_Pipeline_EmitsThroughBinoutWriter(t *testing.T) {
	assert := assert.New(t)

	lb := LexerBlock{Patterns: []lexer.Pattern{
		{Name: "+", Regex: `\+`},
		{Name: "id", Regex: `[a-z]+`},
	}}
	pb := ParserBlock{
		Grammar: GrammarBlock{
			Terminals: []string{"+", "id"},
			Rules: []RuleBlock{
				{NonTerminal: "E", Productions: [][]string{{"E", "+", "id"}, {"id"}}},
			},
			Start: "E",
		},
	}

	w := binout.NewWriter(binary.LittleEndian)
	_, err := Pipeline(context.Background(), binout.Meta{LanguageName: "expr2", GeneratorVersionString: "1.0.0"}, lb, pb, w)
	assert.NoError(err)

	data, err := w.Bytes()
	assert.NoError(err)
	assert.True(len(data) > 64)
}

func Test_Pipeline_NilBackendStillReturnsResult(t *testing.T) {
	assert := assert.New(t)

	lb := LexerBlock{Patterns: []lexer.Pattern{{Name: "id", Regex: `[a-z]+`}}}
	pb := ParserBlock{
		Grammar: GrammarBlock{
			Terminals: []string{"id"},
			Rules:     []RuleBlock{{NonTerminal: "S", Productions: [][]string{{"id"}}}},
			Start:     "S",
		},
	}

	result, err := Pipeline(context.Background(), binout.Meta{LanguageName: "x"}, lb, pb, nil)
	assert.NoError(err)
	assert.NotNil(result.Lexer)
}
