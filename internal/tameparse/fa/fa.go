// Package fa is the generic finite-automaton engine shared by the regex
// front-end / lexer compiler (spec components B, C, D) and the LALR viable-
// prefix automaton (component G). It is a direct generalization of the
// teacher's internal/ictiobus/automaton package: automaton.go there defines
// NFA[E]/DFA[E] keyed by string transition labels only (grammar symbols);
// here the transition label type is itself a type parameter L, so the same
// epsilon-closure/subset-construction machinery serves both string-labelled
// LALR item automata and symbols.AtomID-labelled lexer automata, rather than
// copy-pasting the engine twice.
package fa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dekarrin/tameparse/internal/coll"
)

// StateID names a state. States are interned by name (not by pointer), the
// same convention automaton.go uses so that kernel/subset equality can be
// checked by comparing the (sorted) name of the value set.
type StateID = string

// Transition is one (label, destination) edge. NFAs allow several
// transitions per label per state; DFAs allow at most one.
type Transition[L comparable] struct {
	Label L
	Next  StateID
}

func (t Transition[L]) String() string {
	return fmt.Sprintf("=(%v)=> %s", t.Label, t.Next)
}

// NFA is a non-deterministic finite automaton over label type L, with a
// value of type E attached to each state (spec §3.2: a DFA/NFA state is an
// id plus an ordered set of transitions; the attached value lets callers
// pack richer per-state data — an LR item set, or a list of accept actions
// — without the engine knowing about it).
type NFA[E any, L comparable] struct {
	Start   StateID
	Epsilon L

	states map[StateID]*nfaState[E, L]
}

type nfaState[E any, L comparable] struct {
	name        string
	value       E
	transitions map[L][]Transition[L]
}

// NewNFA creates an empty NFA. epsilon is the label value used to mark
// epsilon transitions (spec §3.2 — "ε is modeled as a reserved atom id"; for
// string-labelled automata this is conventionally the empty string).
func NewNFA[E any, L comparable](epsilon L) *NFA[E, L] {
	return &NFA[E, L]{Epsilon: epsilon, states: map[StateID]*nfaState[E, L]{}}
}

func (n *NFA[E, L]) AddState(name StateID, value E) {
	if _, ok := n.states[name]; ok {
		return
	}
	n.states[name] = &nfaState[E, L]{name: name, value: value, transitions: map[L][]Transition[L]{}}
}

func (n *NFA[E, L]) HasState(name StateID) bool {
	_, ok := n.states[name]
	return ok
}

func (n *NFA[E, L]) SetValue(name StateID, v E) {
	s, ok := n.states[name]
	if !ok {
		panic(fmt.Sprintf("fa: set value on non-existent state %q", name))
	}
	s.value = v
}

func (n *NFA[E, L]) Value(name StateID) E {
	s, ok := n.states[name]
	if !ok {
		panic(fmt.Sprintf("fa: get value on non-existent state %q", name))
	}
	return s.value
}

func (n *NFA[E, L]) AddTransition(from StateID, label L, to StateID) {
	s, ok := n.states[from]
	if !ok {
		panic(fmt.Sprintf("fa: transition from non-existent state %q", from))
	}
	if _, ok := n.states[to]; !ok {
		panic(fmt.Sprintf("fa: transition to non-existent state %q", to))
	}
	s.transitions[label] = append(s.transitions[label], Transition[L]{Label: label, Next: to})
}

func (n *NFA[E, L]) AddEpsilon(from, to StateID) {
	n.AddTransition(from, n.Epsilon, to)
}

// States returns the (unordered) set of state names.
func (n *NFA[E, L]) States() []StateID {
	out := make([]StateID, 0, len(n.states))
	for k := range n.states {
		out = append(out, k)
	}
	return out
}

// EpsilonClosure returns the set of states reachable from s via zero or more
// epsilon transitions.
func (n *NFA[E, L]) EpsilonClosure(s StateID) coll.StringSet {
	closure := coll.NewStringSet()
	var stack coll.Stack[StateID]
	stack.Push(s)

	for stack.Len() > 0 {
		cur := stack.Pop()
		if closure.Has(cur) {
			continue
		}
		closure.Add(cur)

		st, ok := n.states[cur]
		if !ok {
			continue
		}
		for _, t := range st.transitions[n.Epsilon] {
			stack.Push(t.Next)
		}
	}
	return closure
}

func (n *NFA[E, L]) EpsilonClosureOfSet(set coll.StringSet) coll.StringSet {
	all := coll.NewStringSet()
	for s := range set {
		all.AddAll(n.EpsilonClosure(s))
	}
	return all
}

// Move returns the set of states reachable from any state in set via one
// transition on label a (purple dragon book's MOVE(T, a), as in automaton.go).
func (n *NFA[E, L]) Move(set coll.StringSet, a L) coll.StringSet {
	out := coll.NewStringSet()
	for s := range set {
		st, ok := n.states[s]
		if !ok {
			continue
		}
		for _, t := range st.transitions[a] {
			out.Add(t.Next)
		}
	}
	return out
}

// Edge is one (from, label, to) transition, as returned by AllTransitions.
type Edge[L comparable] struct {
	From  StateID
	Label L
	To    StateID
}

// AllTransitions returns every transition in the NFA, including epsilon
// transitions (label == n.Epsilon), in no particular order. Used by callers
// that need to rebuild or re-key the transition relation wholesale, such as
// RangeNFA's Join.
func (n *NFA[E, L]) AllTransitions() []Edge[L] {
	var out []Edge[L]
	for name, st := range n.states {
		for label, ts := range st.transitions {
			for _, t := range ts {
				out = append(out, Edge[L]{From: name, Label: label, To: t.Next})
			}
		}
	}
	return out
}

// Labels returns every distinct non-epsilon label used by a transition
// somewhere in the NFA.
func (n *NFA[E, L]) Labels() []L {
	seen := map[L]bool{}
	var out []L
	for _, st := range n.states {
		for label := range st.transitions {
			if label == n.Epsilon {
				continue
			}
			if !seen[label] {
				seen[label] = true
				out = append(out, label)
			}
		}
	}
	return out
}

// Join splices other into n: every state of other is copied in under a
// prefix (so that the same fragment, e.g. a single-character NFA, can be
// joined into a bigger construction more than once without name collisions),
// then wires three kinds of extra edges on top of the copied transitions:
//
//   - joins: epsilon transitions from a state named in n to a state named in
//     other (by its pre-prefix name), e.g. wiring n's old accept state to
//     other's start state for juxtaposition (spec §4.3, concatenation).
//   - exits: epsilon transitions from a state named in other out to a state
//     already in n, e.g. wiring other's accept state to a shared new accept
//     state for alternation/Kleene-star (spec §4.3).
//   - renames: states of other, once copied in, that should additionally be
//     reachable under an alias already used in n (format "alias:otherName"),
//     used when a combinator wants the joined fragment's start or accept
//     state to also answer to a name the caller already holds a reference
//     to.
//
// This restores the Join combinator that the regex front end's Thompson-
// construction helpers (createJuxtapositionFA, createKleeneStarFA,
// createAlternationFA) call but which the teacher's automaton.go never
// defines — generalized here to the label type L rather than being fixed to
// a single concrete automaton.
func (n *NFA[E, L]) Join(other *NFA[E, L], prefix string, joins, exits [][2]StateID, renames []string) {
	rename := func(name StateID) StateID { return prefix + name }

	for _, name := range other.States() {
		newName := rename(name)
		if n.HasState(newName) {
			panic(fmt.Sprintf("fa: Join name collision on state %q", newName))
		}
		n.AddState(newName, other.Value(name))
	}
	for _, name := range other.States() {
		st := other.states[name]
		for label, transList := range st.transitions {
			for _, t := range transList {
				n.AddTransition(rename(name), label, rename(t.Next))
			}
		}
	}
	for _, j := range joins {
		n.AddEpsilon(j[0], rename(j[1]))
	}
	for _, e := range exits {
		n.AddEpsilon(rename(e[0]), e[1])
	}
	for _, r := range renames {
		parts := strings.SplitN(r, ":", 2)
		if len(parts) != 2 {
			panic(fmt.Sprintf("fa: Join rename %q must be \"alias:otherName\"", r))
		}
		alias, otherName := parts[0], rename(parts[1])
		if !n.HasState(alias) {
			n.AddState(alias, n.Value(otherName))
		}
		n.AddEpsilon(alias, otherName)
	}
}

func (n *NFA[E, L]) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<START: %q, STATES:", n.Start))
	names := make([]string, 0, len(n.states))
	for k := range n.states {
		names = append(names, k)
	}
	sort.Strings(names)
	for i, name := range names {
		st := n.states[name]
		sb.WriteString(fmt.Sprintf("\n\t(%s [", name))
		labels := make([]string, 0)
		for label, ts := range st.transitions {
			for _, t := range ts {
				labels = append(labels, fmt.Sprintf("%v", Transition[L]{Label: label, Next: t.Next}))
			}
		}
		sort.Strings(labels)
		sb.WriteString(strings.Join(labels, ", "))
		sb.WriteString("])")
		if i+1 < len(names) {
			sb.WriteRune(',')
		}
	}
	sb.WriteRune('>')
	return sb.String()
}
