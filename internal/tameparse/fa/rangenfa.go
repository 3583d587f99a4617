package fa

import (
	"fmt"

	"github.com/dekarrin/tameparse/internal/tameparse/symbols"
)

// setRef is an opaque handle to one of the original symbol ranges supplied
// to a transition, so that RangeNFA can satisfy fa.NFA's `L comparable`
// constraint (symbols.Set itself holds a slice and is not comparable) while
// still storing "the original set at construction time" per spec §4.2.
type setRef int32

const epsilonRef setRef = -1

// RangeNFA is the pre-partition NDFA of spec §4.2 component B: transitions
// are recorded against the literal symbols.Set the caller supplied (e.g. a
// regex character class), not yet rewritten onto disjoint atoms. Partitioning
// is deferred to ToUniqueSymbols, matching the spec's "transitions are
// stored keyed by the original set at construction time; partitioning is
// deferred until compilation."
type RangeNFA[E any] struct {
	inner   *NFA[E, setRef]
	setOf   map[setRef]symbols.Set
	nextRef setRef
}

func NewRangeNFA[E any]() *RangeNFA[E] {
	return &RangeNFA[E]{
		inner: NewNFA[E, setRef](epsilonRef),
		setOf: map[setRef]symbols.Set{},
	}
}

func (r *RangeNFA[E]) AddState(name StateID, value E) { r.inner.AddState(name, value) }
func (r *RangeNFA[E]) HasState(name StateID) bool     { return r.inner.HasState(name) }
func (r *RangeNFA[E]) SetValue(name StateID, v E)     { r.inner.SetValue(name, v) }
func (r *RangeNFA[E]) Value(name StateID) E           { return r.inner.Value(name) }
func (r *RangeNFA[E]) States() []StateID              { return r.inner.States() }

func (r *RangeNFA[E]) Start() StateID     { return r.inner.Start }
func (r *RangeNFA[E]) SetStart(s StateID) { r.inner.Start = s }

// AddTransition records a transition on the literal set (spec §4.2:
// add_transition(from, set, to)). Each call is given its own reference even
// if an identical set was already used elsewhere — partitioning only cares
// about set *value*, not which ref produced it, so this costs nothing.
func (r *RangeNFA[E]) AddTransition(from StateID, set symbols.Set, to StateID) {
	ref := r.nextRef
	r.nextRef++
	r.setOf[ref] = set
	r.inner.AddTransition(from, ref, to)
}

func (r *RangeNFA[E]) AddEpsilon(from, to StateID) {
	r.inner.AddEpsilon(from, to)
}

func (r *RangeNFA[E]) EpsilonClosure(s StateID) []StateID {
	return r.inner.EpsilonClosure(s).Elements()
}

// Join splices other into r under prefix, mirroring fa.NFA.Join: other's
// states and transitions are copied in (re-keying other's set refs into r's
// own ref space so the two fragments' transitions don't collide), then
// joins/exits/renames wire the two fragments together. Used by the regex
// front end's Thompson combinators (juxtaposition, alternation, Kleene
// star).
func (r *RangeNFA[E]) Join(other *RangeNFA[E], prefix string, joins, exits [][2]StateID, renames []string) {
	offset := r.nextRef
	for ref, set := range other.setOf {
		r.setOf[ref+offset] = set
	}
	r.nextRef += other.nextRef

	shifted := NewNFA[E, setRef](epsilonRef)
	for _, name := range other.inner.States() {
		shifted.AddState(name, other.inner.Value(name))
	}
	for _, e := range other.inner.AllTransitions() {
		newLabel := e.Label
		if newLabel != epsilonRef {
			newLabel += offset
		}
		shifted.AddTransition(e.From, newLabel, e.To)
	}

	r.inner.Join(shifted, prefix, joins, exits, renames)
}

// ToUniqueSymbols implements spec §4.2's to_ndfa_with_unique_symbols():
// partitions every set used by any transition, then rewrites each
// transition into one transition per atom of its original set. The returned
// partition is exposed so lexer compilation (component D) can build the
// parallel symbol->atom translator.
func (r *RangeNFA[E]) ToUniqueSymbols() (*NFA[E, symbols.AtomID], symbols.Partition) {
	refs := make([]setRef, 0, len(r.setOf))
	sets := make([]symbols.Set, 0, len(r.setOf))
	for ref, set := range r.setOf {
		refs = append(refs, ref)
		sets = append(sets, set)
	}
	partition := symbols.NewPartition(sets)

	atomsByRef := map[setRef][]symbols.AtomID{}
	for i, ref := range refs {
		atomsByRef[ref] = partition.AtomsOf(i)
	}

	out := NewNFA[E, symbols.AtomID](symbols.EpsilonAtom)
	for _, name := range r.inner.States() {
		out.AddState(name, r.inner.Value(name))
	}
	out.Start = r.inner.Start

	for _, e := range r.inner.AllTransitions() {
		if e.Label == epsilonRef {
			out.AddEpsilon(e.From, e.To)
			continue
		}
		for _, atom := range atomsByRef[e.Label] {
			out.AddTransition(e.From, atom, e.To)
		}
	}

	return out, partition
}

// ToDFA implements spec §4.2's to_dfa(initial_states): subset construction
// over the atom-labelled NFA produced by ToUniqueSymbols. merge combines the
// accept-info of every NFA state in a subset into the DFA state's accept
// info (e.g. preferring eager accepts, lowest symbol id — component D's
// concern, not this one's).
func (r *RangeNFA[E]) ToDFA(initials []StateID, merge func([]E) E) (*DFA[E, symbols.AtomID], symbols.Partition) {
	unique, partition := r.ToUniqueSymbols()
	return SubsetConstruct[E, symbols.AtomID](unique, initials, merge), partition
}

// Clone returns a deep copy of r with every state renamed via rename. Used
// by the regex front end's `+` quantifier rewrite (e+ == e e*), which needs
// two independently-joinable copies of the same sub-fragment.
func (r *RangeNFA[E]) Clone(rename func(StateID) StateID) *RangeNFA[E] {
	out := NewRangeNFA[E]()
	for _, name := range r.inner.States() {
		out.inner.AddState(rename(name), r.inner.Value(name))
	}
	out.inner.Start = rename(r.inner.Start)
	for _, e := range r.inner.AllTransitions() {
		if e.Label == epsilonRef {
			out.AddEpsilon(rename(e.From), rename(e.To))
			continue
		}
		out.AddTransition(rename(e.From), r.setOf[e.Label], rename(e.To))
	}
	return out
}

func (r *RangeNFA[E]) String() string {
	return fmt.Sprintf("RangeNFA%s", r.inner.String())
}
