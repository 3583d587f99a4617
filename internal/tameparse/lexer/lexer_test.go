package lexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildSampleLexer(t *testing.T) *Lexer {
	lx, err := Compile(context.Background(), []Pattern{
		{Name: "identifier", Regex: "[A-Za-z][A-Za-z0-9]*", Eager: false},
		{Name: "if", Regex: "if", Eager: false, Weak: true},
		{Name: "number", Regex: "[0-9]+", Eager: false},
		{Name: "ws", Regex: "[ \t]+", Eager: true},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return lx
}

func Test_Compile_ProducesNonTrivialTable(t *testing.T) {
	assert := assert.New(t)
	lx := buildSampleLexer(t)
	stats := lx.Stats()
	assert.Greater(stats.States, 1)
	assert.Greater(stats.Atoms, 0)
	assert.Equal(1, stats.WeakTerminals)
}

func Test_Scan_LongestMatchWinsOverShorterKeyword(t *testing.T) {
	assert := assert.New(t)
	lx := buildSampleLexer(t)

	toks, err := ScanAll(lx, "iffy")
	assert.NoError(err)
	if assert.Len(toks, 1) {
		assert.Equal("identifier", toks[0].Symbol)
		assert.Equal("iffy", toks[0].Lexeme)
	}
}

func Test_Scan_EqualLengthTieGoesToFirstDeclaredPattern(t *testing.T) {
	assert := assert.New(t)
	lx := buildSampleLexer(t)

	toks, err := ScanAll(lx, "if")
	assert.NoError(err)
	if assert.Len(toks, 1) {
		// identifier and "if" both match length 2; identifier was declared
		// first so it wins the tie per spec's "lowest symbol id" rule. The
		// weak_to_strong demotion back to "if" in states that expect it is
		// the rewriter's (component H) job, not the lexer's.
		assert.Equal("identifier", toks[0].Symbol)
	}
}

func Test_Scan_EagerAcceptStopsImmediately(t *testing.T) {
	assert := assert.New(t)
	lx := buildSampleLexer(t)

	toks, err := ScanAll(lx, "a  b")
	assert.NoError(err)
	var syms []string
	for _, tok := range toks {
		syms = append(syms, tok.Symbol)
	}
	// ws is eager, so each space is its own token.
	assert.Equal([]string{"identifier", "ws", "ws", "identifier"}, syms)
}

func Test_Scan_UnrecognizedInputAdvancesOneSymbol(t *testing.T) {
	assert := assert.New(t)
	lx := buildSampleLexer(t)

	sc := NewScanner(lx, "#a")
	_, got, err := sc.Next()
	assert.True(got)
	assert.Error(err)
	assert.Equal(1, sc.pos)

	tok, got, err := sc.Next()
	assert.True(got)
	assert.NoError(err)
	assert.Equal("identifier", tok.Symbol)
}
