package regexfe

import (
	"testing"

	"github.com/dekarrin/tameparse/internal/tameparse/fa"
	"github.com/dekarrin/tameparse/internal/tameparse/symbols"
	"github.com/stretchr/testify/assert"
)

func mergeAny(members []bool) bool {
	for _, m := range members {
		if m {
			return true
		}
	}
	return false
}

// compile builds a fragment, runs subset construction, and returns a simple
// accepts(string) closure for use in test assertions.
func compile(t *testing.T, pattern string, ci bool) func(string) bool {
	t.Helper()
	frag, err := Parse(pattern, ci)
	assert.NoError(t, err)

	dfa, partition := frag.NFA().ToDFA([]fa.StateID{frag.Start()}, mergeAny)
	tr := symbols.NewTranslator(partition)

	return func(input string) bool {
		cur := dfa.Start
		for _, r := range input {
			atom := tr.Lookup(symbols.Symbol(r))
			if atom == symbols.NoAtom {
				return false
			}
			next, ok := dfa.Next(cur, atom)
			if !ok {
				return false
			}
			cur = next
		}
		return dfa.Value(cur)
	}
}

func Test_Literal_Juxtaposition(t *testing.T) {
	accepts := compile(t, "abc", false)
	assert.True(t, accepts("abc"))
	assert.False(t, accepts("ab"))
	assert.False(t, accepts("abcd"))
}

func Test_Alternation(t *testing.T) {
	accepts := compile(t, "cat|dog", false)
	assert.True(t, accepts("cat"))
	assert.True(t, accepts("dog"))
	assert.False(t, accepts("cow"))
}

func Test_KleeneStar(t *testing.T) {
	accepts := compile(t, "ab*c", false)
	assert.True(t, accepts("ac"))
	assert.True(t, accepts("abc"))
	assert.True(t, accepts("abbbbc"))
	assert.False(t, accepts("abd"))
}

func Test_Plus(t *testing.T) {
	accepts := compile(t, "a+", false)
	assert.True(t, accepts("a"))
	assert.True(t, accepts("aaaa"))
	assert.False(t, accepts(""))
}

func Test_Optional(t *testing.T) {
	accepts := compile(t, "colou?r", false)
	assert.True(t, accepts("color"))
	assert.True(t, accepts("colour"))
	assert.False(t, accepts("colouur"))
}

func Test_CharacterClass_RangeAndNegation(t *testing.T) {
	accepts := compile(t, "[a-c]", false)
	assert.True(t, accepts("a"))
	assert.True(t, accepts("c"))
	assert.False(t, accepts("d"))

	negated := compile(t, "[^a-c]", false)
	assert.False(t, negated("a"))
	assert.True(t, negated("d"))
}

func Test_Grouping(t *testing.T) {
	accepts := compile(t, "(ab)+", false)
	assert.True(t, accepts("ab"))
	assert.True(t, accepts("abab"))
	assert.False(t, accepts("aba"))
}

func Test_EscapeSequences(t *testing.T) {
	accepts := compile(t, `\t`, false)
	assert.True(t, accepts("\t"))

	hex := compile(t, `\x41`, false)
	assert.True(t, hex("A"))

	unicodeEsc := compile(t, `\u0041`, false)
	assert.True(t, unicodeEsc("A"))

	octal := compile(t, `\101`, false)
	assert.True(t, octal("A"))
}

func Test_CaseInsensitive(t *testing.T) {
	accepts := compile(t, "abc", true)
	assert.True(t, accepts("abc"))
	assert.True(t, accepts("ABC"))
	assert.True(t, accepts("AbC"))
	assert.False(t, accepts("abd"))
}

func Test_DotExcludesNewline(t *testing.T) {
	accepts := compile(t, ".", false)
	assert.True(t, accepts("x"))
	assert.False(t, accepts("\n"))
}
