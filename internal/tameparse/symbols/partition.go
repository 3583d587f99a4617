package symbols

import "sort"

// AtomID is the stable small integer id assigned to a partition atom.
type AtomID int32

// NoAtom is the reserved id returned by a Translator lookup that matches no
// atom, per the lexer runtime contract (spec §6.3).
const NoAtom AtomID = -1

// EpsilonAtom is the reserved atom id used to mark epsilon transitions in an
// NDFA, per spec §3.2 ("ε is modeled as a reserved atom id").
const EpsilonAtom AtomID = -2

// Atom is one elementary interval of the partition, plus the stable id
// assigned to it.
type Atom struct {
	ID    AtomID
	Range Range
}

// Partition is the result of partitioning a collection of (possibly
// overlapping) sets into disjoint atoms such that every original set is a
// union of whole atoms (spec §3.1 invariant).
type Partition struct {
	Atoms []Atom

	// membership[setIndex] is the set of atom ids that make up the
	// originally-supplied set at that index.
	membership [][]AtomID
}

// AtomsOf returns the atom ids that make up the setIndex'th set passed to
// Partition.
func (p Partition) AtomsOf(setIndex int) []AtomID {
	return p.membership[setIndex]
}

// NumAtoms is the number of atoms in the partition.
func (p Partition) NumAtoms() int { return len(p.Atoms) }

// NewPartition implements the sweep-line algorithm of spec §4.1: collect
// every range endpoint across all input sets, sort, sweep; for each
// elementary interval between consecutive endpoints that at least one set
// covers, emit one atom and add it to the membership of every set that
// contains it. Each atom is one contiguous range; intervals with the same
// membership are not merged into one atom.
//
// Atom ids are assigned in ascending order of the atom's lower bound, per
// the determinism tie-break in §4.1.
func NewPartition(sets []Set) Partition {
	type endpoint struct {
		pos    Symbol
		isOpen bool // true = range start (Lo), false = range end (Hi)
		set    int
	}

	var endpoints []endpoint
	for si, s := range sets {
		for _, r := range s.Ranges() {
			endpoints = append(endpoints, endpoint{pos: r.Lo, isOpen: true, set: si})
			endpoints = append(endpoints, endpoint{pos: r.Hi, isOpen: false, set: si})
		}
	}

	if len(endpoints) == 0 {
		return Partition{membership: make([][]AtomID, len(sets))}
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].pos != endpoints[j].pos {
			return endpoints[i].pos < endpoints[j].pos
		}
		// process closes before opens at the same position so an interval
		// ending exactly where another begins doesn't spuriously merge
		if endpoints[i].isOpen != endpoints[j].isOpen {
			return !endpoints[i].isOpen
		}
		return endpoints[i].set < endpoints[j].set
	})

	positions := make([]Symbol, 0, len(endpoints))
	seen := map[Symbol]bool{}
	for _, e := range endpoints {
		if !seen[e.pos] {
			seen[e.pos] = true
			positions = append(positions, e.pos)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	active := map[int]bool{}
	eventsAt := map[Symbol][]endpoint{}
	for _, e := range endpoints {
		eventsAt[e.pos] = append(eventsAt[e.pos], e)
	}

	p := Partition{membership: make([][]AtomID, len(sets))}
	var nextID AtomID

	// Every covered interval gets a fresh atom id; no interval is merged
	// with another that has the same members.
	for i := 0; i < len(positions); i++ {
		pos := positions[i]
		for _, e := range eventsAt[pos] {
			if e.isOpen {
				active[e.set] = true
			} else {
				delete(active, e.set)
			}
		}
		if i+1 >= len(positions) {
			break
		}
		next := positions[i+1]
		if len(active) == 0 || pos >= next {
			continue
		}

		members := make([]int, 0, len(active))
		for si := range active {
			members = append(members, si)
		}
		sort.Ints(members)

		atomID := nextID
		nextID++
		p.Atoms = append(p.Atoms, Atom{ID: atomID, Range: Range{Lo: pos, Hi: next}})
		for _, si := range members {
			p.membership[si] = append(p.membership[si], atomID)
		}
	}

	return p
}

// Translator is an immutable compact map from symbol to atom id, built once
// per lexer (spec §3.1/§4.1), implemented as a sorted-range binary search.
type Translator struct {
	los  []Symbol
	his  []Symbol
	ids  []AtomID
}

// NewTranslator builds the symbol -> atom id lookup from a completed
// partition.
func NewTranslator(p Partition) Translator {
	t := Translator{}
	atoms := append([]Atom{}, p.Atoms...)
	sort.Slice(atoms, func(i, j int) bool { return atoms[i].Range.Lo < atoms[j].Range.Lo })
	for _, a := range atoms {
		t.los = append(t.los, a.Range.Lo)
		t.his = append(t.his, a.Range.Hi)
		t.ids = append(t.ids, a.ID)
	}
	return t
}

// Lookup returns the atom containing sym, or NoAtom if sym falls in none of
// the partition's elementary intervals. Runs in O(log atoms).
func (t Translator) Lookup(sym Symbol) AtomID {
	i := sort.Search(len(t.his), func(i int) bool { return t.his[i] > sym })
	if i < len(t.los) && t.los[i] <= sym {
		return t.ids[i]
	}
	return NoAtom
}

func (t Translator) NumAtoms() int { return len(t.ids) }
