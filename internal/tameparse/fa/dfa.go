package fa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dekarrin/tameparse/internal/coll"
)

// DFA is a deterministic finite automaton: at most one transition per label
// per state, no epsilon transitions (spec §3.2).
type DFA[E any, L comparable] struct {
	Start StateID

	states map[StateID]*dfaState[E, L]
}

type dfaState[E any, L comparable] struct {
	name        string
	value       E
	transitions map[L]StateID
}

func NewDFA[E any, L comparable]() *DFA[E, L] {
	return &DFA[E, L]{states: map[StateID]*dfaState[E, L]{}}
}

func (d *DFA[E, L]) AddState(name StateID, value E) {
	if _, ok := d.states[name]; ok {
		return
	}
	d.states[name] = &dfaState[E, L]{name: name, value: value, transitions: map[L]StateID{}}
}

func (d *DFA[E, L]) HasState(name StateID) bool {
	_, ok := d.states[name]
	return ok
}

func (d *DFA[E, L]) SetValue(name StateID, v E) {
	s, ok := d.states[name]
	if !ok {
		panic(fmt.Sprintf("fa: set value on non-existent dfa state %q", name))
	}
	s.value = v
}

func (d *DFA[E, L]) Value(name StateID) E {
	s, ok := d.states[name]
	if !ok {
		panic(fmt.Sprintf("fa: get value on non-existent dfa state %q", name))
	}
	return s.value
}

func (d *DFA[E, L]) AddTransition(from StateID, label L, to StateID) {
	s, ok := d.states[from]
	if !ok {
		panic(fmt.Sprintf("fa: transition from non-existent dfa state %q", from))
	}
	if _, ok := d.states[to]; !ok {
		panic(fmt.Sprintf("fa: transition to non-existent dfa state %q", to))
	}
	s.transitions[label] = to
}

// Next returns the destination of the transition on label from state, or ""
// (the zero StateID) if there is none.
func (d *DFA[E, L]) Next(from StateID, label L) (StateID, bool) {
	s, ok := d.states[from]
	if !ok {
		return "", false
	}
	to, ok := s.transitions[label]
	return to, ok
}

func (d *DFA[E, L]) States() []StateID {
	out := make([]StateID, 0, len(d.states))
	for k := range d.states {
		out = append(out, k)
	}
	return out
}

func (d *DFA[E, L]) RemoveState(name StateID) {
	delete(d.states, name)
}

// ToNFA converts a DFA to an NFA over the same label/value types, since
// several callers (e.g. the LALR state-merge pass) need to add
// non-deterministic transitions to what started as deterministic structure.
func (d *DFA[E, L]) ToNFA(epsilon L) *NFA[E, L] {
	n := NewNFA[E, L](epsilon)
	n.Start = d.Start
	for name, st := range d.states {
		n.AddState(name, st.value)
	}
	for name, st := range d.states {
		for label, to := range st.transitions {
			n.AddTransition(name, label, to)
		}
	}
	return n
}

func (d *DFA[E, L]) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<START: %q, STATES:", d.Start))
	names := make([]string, 0, len(d.states))
	for k := range d.states {
		names = append(names, k)
	}
	sort.Strings(names)
	for i, name := range names {
		st := d.states[name]
		sb.WriteString(fmt.Sprintf("\n\t(%s [", name))
		var labels []string
		for label, to := range st.transitions {
			labels = append(labels, fmt.Sprintf("=(%v)=> %s", label, to))
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

// SubsetConstruct runs algorithm 3.20 from the purple dragon book (the same
// one automaton.go's NFA.ToDFA implements for string-labelled LALR
// automata): the initial DFA state is the epsilon-closure of initials, and
// each subsequent state is the epsilon-closure of MOVE(T, a) for every
// reachable subset T and label a. merge combines the NFA-state values of a
// subset into the DFA state's value (spec §4.2: "accept actions of all
// member NDFA states are merged into the resulting DFA state").
//
// When len(initials) > 1, the epsilon-closure of every initial state is
// discovered first, in order, and the first one becomes Start. DFA states
// are named by their member sets; the other initial states are not numbered
// or marked in the returned DFA.
func SubsetConstruct[E any, L comparable](n *NFA[E, L], initials []StateID, merge func(members []E) E) *DFA[E, L] {
	dfa := NewDFA[E, L]()

	nameOf := func(set coll.StringSet) string {
		return strings.Join(coll.SortedStrings(set), ",")
	}

	closures := make([]coll.StringSet, len(initials))
	for i, s := range initials {
		closures[i] = n.EpsilonClosureOfSet(coll.NewStringSet(s))
	}

	discovered := coll.NewVSet[coll.StringSet]()
	order := []string{}
	for _, c := range closures {
		key := nameOf(c)
		if !discovered.Has(key) {
			discovered.Set(key, c)
			order = append(order, key)
		}
	}

	labels := n.Labels()

	type edge struct {
		from, to string
		label    L
	}
	var edges []edge

	for qi := 0; qi < len(order); qi++ {
		key := order[qi]
		T := discovered.Get(key)

		members := make([]E, 0, len(T))
		for _, s := range coll.SortedStrings(T) {
			members = append(members, n.Value(s))
		}
		dfa.AddState(key, merge(members))

		for _, a := range labels {
			U := n.EpsilonClosureOfSet(n.Move(T, a))
			if U.Empty() {
				continue
			}
			uKey := nameOf(U)
			if !discovered.Has(uKey) {
				discovered.Set(uKey, U)
				order = append(order, uKey)
			}
			edges = append(edges, edge{from: key, to: uKey, label: a})
		}
	}

	// every target state exists only once the whole worklist is drained
	for _, e := range edges {
		dfa.AddTransition(e.from, e.label, e.to)
	}

	if len(order) > 0 {
		dfa.Start = order[0]
	}

	return dfa
}
