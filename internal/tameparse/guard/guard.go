// Package guard implements spec component F: context-free lookahead
// predicates packaged as synthetic terminals, each with its own standalone
// sub-parser: the canonical LR(0) collection rooted at the guard's rule. The
// sub-parser has no EndOfGuard-accepting state. Guards
// have no direct analog in the retrieval pack — the teacher's grammar never
// needed lookahead predicates — so this is grounded directly on the grammar
// model (component E) this package is built on top of: a guard's rule is
// just another nonterminal in the same Grammar, and INITIAL/the sub-parser
// reuse grammar's own FIRST and canonical-collection machinery rather than
// introducing a parallel closure algorithm.
package guard

import (
	"fmt"

	"github.com/dekarrin/tameparse/internal/coll"
	"github.com/dekarrin/tameparse/internal/tameparse/grammar"
)

// EndOfGuard is the name reserved for the synthetic lookahead symbol that
// ends a guard's match. Compile does not use it: the sub-parser it builds
// has no state that accepts on EndOfGuard.
const EndOfGuard = "$guard"

// Guard is one guard predicate: Symbol is the synthetic terminal name the
// main grammar uses in place of the predicate; RuleID names the
// nonterminal (already present in the grammar) whose productions define
// what the predicate matches; Priority breaks ties between guards that
// share a starting symbol; CanClash opts out of the ambiguity error when
// two guards' INITIAL sets legitimately overlap.
type Guard struct {
	Symbol   string
	RuleID   string
	Priority int
	CanClash bool
}

// First returns FIRST(guard): per spec §4.6, a guard item's own FIRST set is
// just the guard item itself (it is opaque to the surrounding grammar's
// FIRST computation until INITIAL below resolves what it can actually
// start with).
func First(g Guard) coll.StringSet {
	return coll.NewStringSet(g.Symbol)
}

// Initial computes INITIAL(guard): FIRST of the guard's own rule, with any
// nested guard symbols recursively expanded into their own INITIAL sets
// (spec §4.6: "recursively expanding nested guards"). guards maps a
// synthetic guard symbol back to its Guard definition, so a rule that
// itself starts with another guard is resolved transitively.
func Initial(g Guard, gram *grammar.Grammar, guards map[string]Guard) coll.StringSet {
	return initial(g, gram, guards, coll.NewStringSet())
}

func initial(g Guard, gram *grammar.Grammar, guards map[string]Guard, seen coll.StringSet) coll.StringSet {
	out := coll.NewStringSet()
	if seen.Has(g.Symbol) {
		return out
	}
	seen.Add(g.Symbol)

	for _, sym := range gram.FIRST(g.RuleID).Elements() {
		if sym == "" {
			continue
		}
		if nested, ok := guards[sym]; ok {
			out.AddAll(initial(nested, gram, guards, seen))
			continue
		}
		out.Add(sym)
	}
	return out
}

// SubParser is a guard's standalone automaton: the canonical LR(0)
// collection of gram rooted at the guard's rule instead of gram's own start
// symbol. No EndOfGuard item or accept action is added to it. The
// sub-parser's states are LR(0) item sets of the same kind the main LALR
// builder (component G) uses. InitialState is the string form of the rooted
// initial item set; rewrite.ApplyGuardRewrite does not use it, and a Guard
// action's target is the guard's index in the caller's sub-parser list.
type SubParser struct {
	Guard        Guard
	InitialState string
	States       coll.VSet[coll.VSet[grammar.LR0Item]]
}

// Compile builds g's sub-parser over gram (spec §4.6 phase: "During LALR
// construction each guard is compiled into a standalone sub-parser").
func Compile(g Guard, gram grammar.Grammar) SubParser {
	rooted := gram.WithStart(g.RuleID)
	initial := rooted.LR0InitialState()
	states := rooted.LR0Items()
	return SubParser{
		Guard:        g,
		InitialState: initial.StringOrdered(),
		States:       states,
	}
}

// TieError reports an unresolved priority tie between two or more guards
// that share a requested lookahead symbol in their INITIAL sets (the
// GuardTiePriority diagnostic, Open Question 1).
type TieError struct {
	Symbol string
	Guards []Guard
}

func (e *TieError) Error() string {
	return fmt.Sprintf("guard: GuardTiePriority: symbol %q is reachable from %d guards at equal priority", e.Symbol, len(e.Guards))
}

// CheckAmbiguity implements spec §4.6's ambiguity policy: for a state where
// candidates (guards whose INITIAL set contains a common lookahead symbol)
// overlap, it is an error unless every overlapping pair has at least one
// side marked CanClash.
func CheckAmbiguity(sym string, candidates []Guard) error {
	if len(candidates) < 2 {
		return nil
	}
	for i := range candidates {
		for j := i + 1; j < len(candidates); j++ {
			if candidates[i].CanClash || candidates[j].CanClash {
				continue
			}
			return fmt.Errorf("guard: ambiguous guards %q and %q both claim lookahead symbol %q without can_clash",
				candidates[i].Symbol, candidates[j].Symbol, sym)
		}
	}
	return nil
}

// Resolve picks the winning guard among candidates sharing sym in their
// INITIAL set: highest Priority wins; an exact tie is reported via
// TieError rather than resolved arbitrarily.
func Resolve(sym string, candidates []Guard) (Guard, error) {
	if len(candidates) == 0 {
		return Guard{}, fmt.Errorf("guard: Resolve called with no candidates")
	}
	best := candidates[0]
	tied := []Guard{best}
	for _, g := range candidates[1:] {
		switch {
		case g.Priority > best.Priority:
			best = g
			tied = []Guard{g}
		case g.Priority == best.Priority:
			tied = append(tied, g)
		}
	}
	if len(tied) > 1 {
		return Guard{}, &TieError{Symbol: sym, Guards: tied}
	}
	return best, nil
}
