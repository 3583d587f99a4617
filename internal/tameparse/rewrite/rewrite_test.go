package rewrite

import (
	"testing"

	"github.com/dekarrin/tameparse/internal/tameparse/grammar"
	"github.com/dekarrin/tameparse/internal/tameparse/lalr"
	"github.com/stretchr/testify/assert"
)

func buildExprGrammar() grammar.Grammar {
	g := grammar.New()
	g.AddTerm("+")
	g.AddTerm("*")
	g.AddTerm("(")
	g.AddTerm(")")
	g.AddTerm("id")

	g.AddRule("E", []string{"E", "+", "E"})
	g.AddRule("E", []string{"E", "*", "E"})
	g.AddRule("E", []string{"(", "E", ")"})
	g.AddRule("E", []string{"id"})
	return g
}

func Test_ApplyPrecedence_ResolvesAmbiguousExprGrammar(t *testing.T) {
	assert := assert.New(t)
	g := buildExprGrammar()
	table, err := lalr.Build(g)
	assert.NoError(err)
	assert.NotEmpty(table.Conflicts, "the unparenthesised E grammar should be ambiguous before precedence")

	prec := PrecedenceTable{
		"+": {Precedence: 1, Assoc: Left},
		"*": {Precedence: 2, Assoc: Left},
	}
	unresolved := ApplyPrecedence(table, prec, nil)
	assert.Empty(unresolved)

	for _, c := range table.Conflicts {
		st := findState(table, c.State)
		action := st.Terminals[c.Symbol]
		assert.NotEqual(lalr.Action{}, action)
	}
}

func Test_ApplyPrecedence_NonassocRemovesAction(t *testing.T) {
	assert := assert.New(t)
	g := buildExprGrammar()
	table, err := lalr.Build(g)
	assert.NoError(err)

	prec := PrecedenceTable{
		"+": {Precedence: 1, Assoc: Nonassoc},
		"*": {Precedence: 1, Assoc: Nonassoc},
	}
	ApplyPrecedence(table, prec, nil)
	// "+" and "*" share one Nonassoc level, so every shift/reduce conflict
	// between them is resolved by removing the action for that cell.
	assert.NotEmpty(table.Conflicts)
	for _, c := range table.Conflicts {
		_, ok := findState(table, c.State).Terminals[c.Symbol]
		assert.False(ok, "state %d still has an action on %q", c.State, c.Symbol)
	}
}

func Test_ApplyWeakRewrite_ReportsWeakToStrongEquivalence(t *testing.T) {
	assert := assert.New(t)
	g := grammar.New()
	g.AddTerm("identifier")
	g.AddTerm("if")
	g.AddRule("stmt", []string{"identifier"})
	g.AddRule("stmt", []string{"if"})

	table, err := lalr.Build(g)
	assert.NoError(err)

	equivalences := ApplyWeakRewrite(table, map[string]string{"if": "identifier"})
	assert.Len(equivalences, 1)
	assert.Equal("if", equivalences[0].Weak)
	assert.Equal("identifier", equivalences[0].Strong)
}

func Test_ApplyGuardRewrite_ReplacesShiftWithGuardAction(t *testing.T) {
	assert := assert.New(t)
	table := &lalr.Table{States: []*lalr.State{
		{ID: 0, Terminals: map[string]lalr.Action{
			"$cast": {Kind: lalr.Shift, Target: 7},
		}},
	}}
	ApplyGuardRewrite(table, map[string]int{"$cast": 2})
	assert.Equal(lalr.GuardKind, table.States[0].Terminals["$cast"].Kind)
	assert.Equal(2, table.States[0].Terminals["$cast"].Target)
}

func findState(table *lalr.Table, id int) *lalr.State {
	for _, st := range table.States {
		if st.ID == id {
			return st
		}
	}
	return nil
}
