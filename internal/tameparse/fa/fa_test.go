package fa

import (
	"testing"

	"github.com/dekarrin/tameparse/internal/coll"
	"github.com/stretchr/testify/assert"
)

// buildSampleNFA constructs the textbook NFA for (a|b)*abb over string
// labels, the same example automaton.go's tests use for subset construction.
func buildSampleNFA() *NFA[string, string] {
	n := NewNFA[string, string]("")
	for _, s := range []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10"} {
		n.AddState(s, "")
	}
	n.Start = "0"
	n.AddEpsilon("0", "1")
	n.AddEpsilon("0", "7")
	n.AddEpsilon("1", "2")
	n.AddEpsilon("1", "4")
	n.AddTransition("2", "a", "3")
	n.AddTransition("4", "b", "5")
	n.AddEpsilon("3", "6")
	n.AddEpsilon("5", "6")
	n.AddEpsilon("6", "1")
	n.AddEpsilon("6", "7")
	n.AddTransition("7", "a", "8")
	n.AddTransition("8", "b", "9")
	n.AddTransition("9", "b", "10")
	n.SetValue("10", "ACCEPT")
	return n
}

func Test_EpsilonClosure(t *testing.T) {
	assert := assert.New(t)
	n := buildSampleNFA()

	closure := n.EpsilonClosure("0")
	expected := coll.NewStringSet("0", "1", "2", "4", "7")
	assert.True(closure.Equal(expected))
}

func Test_Move(t *testing.T) {
	assert := assert.New(t)
	n := buildSampleNFA()

	start := n.EpsilonClosureOfSet(coll.NewStringSet(n.Start))
	onA := n.Move(start, "a")
	assert.True(onA.Equal(coll.NewStringSet("3", "8")))
}

func Test_SubsetConstruct_AcceptsSameLanguage(t *testing.T) {
	assert := assert.New(t)
	n := buildSampleNFA()

	merge := func(members []string) string {
		for _, m := range members {
			if m == "ACCEPT" {
				return "ACCEPT"
			}
		}
		return ""
	}

	dfa := SubsetConstruct[string, string](n, []StateID{n.Start}, merge)

	accepts := func(input []string) bool {
		cur := dfa.Start
		for _, label := range input {
			next, ok := dfa.Next(cur, label)
			if !ok {
				return false
			}
			cur = next
		}
		return dfa.Value(cur) == "ACCEPT"
	}

	assert.True(accepts([]string{"a", "b", "b"}))
	assert.True(accepts([]string{"a", "b", "a", "b", "b"}))
	assert.True(accepts([]string{"b", "a", "b", "b"}))
	assert.False(accepts([]string{"a", "b"}))
	assert.False(accepts([]string{"b", "b", "a"}))

	// determinism: at most one transition per label per state
	for _, s := range dfa.States() {
		seenLabels := map[string]bool{}
		for _, label := range n.Labels() {
			if _, ok := dfa.Next(s, label); ok {
				assert.False(seenLabels[label])
				seenLabels[label] = true
			}
		}
	}
}

func Test_Join_Juxtaposition(t *testing.T) {
	assert := assert.New(t)

	// left: single transition s0 -x-> s1 (accept)
	left := NewNFA[string, string]("")
	left.AddState("s0", "")
	left.AddState("s1", "ACCEPT")
	left.AddTransition("s0", "x", "s1")
	left.Start = "s0"

	// right: single transition s0 -y-> s1 (accept)
	right := NewNFA[string, string]("")
	right.AddState("s0", "")
	right.AddState("s1", "ACCEPT")
	right.AddTransition("s0", "y", "s1")
	right.Start = "s0"

	// join left's accept state to right's start, prefixed to avoid collision
	left.Join(right, "r:", [][2]StateID{{"s1", "s0"}}, nil, nil)

	merge := func(members []string) string {
		for _, m := range members {
			if m == "ACCEPT" {
				return "ACCEPT"
			}
		}
		return ""
	}
	dfa := SubsetConstruct[string, string](left,[]StateID{left.Start}, merge)

	cur := dfa.Start
	next, ok := dfa.Next(cur, "x")
	assert.True(ok)
	cur = next
	next, ok = dfa.Next(cur, "y")
	assert.True(ok)
	assert.Equal("ACCEPT", dfa.Value(next))
}

func Test_DFA_ToNFA_KeepsTransitions(t *testing.T) {
	assert := assert.New(t)

	d := NewDFA[string, string]()
	d.AddState("a", "")
	d.AddState("b", "ACCEPT")
	d.AddTransition("a", "x", "b")
	d.Start = "a"

	n := d.ToNFA("")
	assert.Equal("b", n.Move(coll.NewStringSet("a"), "x").Elements()[0])
}
