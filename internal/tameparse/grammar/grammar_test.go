package grammar

import (
	"testing"

	"github.com/dekarrin/tameparse/internal/coll"
	"github.com/stretchr/testify/assert"
)

// buildExprGrammar is the textbook E -> E + T | T ; T -> T * F | F ; F -> ( E ) | id
// grammar used throughout the purple dragon book's LR examples.
func buildExprGrammar() Grammar {
	g := New()
	g.AddTerm("+")
	g.AddTerm("*")
	g.AddTerm("(")
	g.AddTerm(")")
	g.AddTerm("id")

	g.AddRule("E", []string{"E", "+", "T"})
	g.AddRule("E", []string{"T"})
	g.AddRule("T", []string{"T", "*", "F"})
	g.AddRule("T", []string{"F"})
	g.AddRule("F", []string{"(", "E", ")"})
	g.AddRule("F", []string{"id"})

	return g
}

func Test_Grammar_Validate(t *testing.T) {
	g := buildExprGrammar()
	assert.NoError(t, g.Validate())
}

func Test_Grammar_Validate_UndeclaredSymbol(t *testing.T) {
	g := New()
	g.AddRule("S", []string{"a"})
	assert.Error(t, g.Validate())
}

func Test_Grammar_FIRST(t *testing.T) {
	assert := assert.New(t)
	g := buildExprGrammar()

	first := g.FIRST("E")
	assert.True(first.Has("("))
	assert.True(first.Has("id"))
	assert.False(first.Has("+"))
}

func Test_Grammar_FOLLOW(t *testing.T) {
	assert := assert.New(t)
	g := buildExprGrammar()

	follow := g.FOLLOW("E")
	assert.True(follow.Has(EndOfInput))
	assert.True(follow.Has("+"))
	assert.True(follow.Has(")"))
}

func Test_Grammar_LR0Items_ProducesCanonicalCollection(t *testing.T) {
	assert := assert.New(t)
	g := buildExprGrammar()

	items := g.LR0Items()
	assert.Greater(items.Len(), 1)

	// every state should be reachable and non-empty
	for _, key := range items.Elements() {
		assert.Greater(items.Get(key).Len(), 0)
	}
}

func Test_Grammar_Augmented_AddsFreshStart(t *testing.T) {
	assert := assert.New(t)
	g := buildExprGrammar()
	aug := g.Augmented()

	assert.NotEqual(g.StartSymbol(), aug.StartSymbol())
	rule := aug.Rule(aug.StartSymbol())
	assert.Len(rule.Productions, 1)
	assert.Equal([]string{"E"}, []string(rule.Productions[0]))
}

func Test_Grammar_RemoveEpsilons(t *testing.T) {
	assert := assert.New(t)
	g := New()
	g.AddTerm("a")
	g.AddRule("S", []string{"A", "a"})
	g.AddRule("A", []string{"a"})
	g.AddRule("A", nil) // epsilon

	out := g.RemoveEpsilons()
	rule := out.Rule("S")
	// S -> A a should expand to S -> A a | a (dropping the nullable A)
	assert.Len(rule.Productions, 2)
}

func Test_LR0Item_StringRoundTrip(t *testing.T) {
	assert := assert.New(t)
	item := LR0Item{NonTerminal: "E", Left: []string{"E", "+"}, Right: []string{"T"}}
	parsed, err := ParseLR0Item(item.String())
	assert.NoError(err)
	assert.True(item.Equal(parsed))
}

func Test_CoreSet_IgnoresLookahead(t *testing.T) {
	assert := assert.New(t)
	s1 := coll.NewVSet[LR1Item]()
	s2 := coll.NewVSet[LR1Item]()

	i1 := LR1Item{LR0Item: LR0Item{NonTerminal: "E", Right: []string{"T"}}, Lookahead: "+"}
	i2 := LR1Item{LR0Item: LR0Item{NonTerminal: "E", Right: []string{"T"}}, Lookahead: "$"}

	s1.Set(i1.String(), i1)
	s2.Set(i2.String(), i2)

	assert.True(EqualCoreSets(s1, s2))
}
