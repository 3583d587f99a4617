// Package grammar implements spec component E: the context-free grammar
// model — productions, LR(0)/LR(1) item closures and gotos, and
// FIRST/FOLLOW — that the LALR builder (component G) runs against. The
// package has no EBNF-to-BNF rewrite; rules are added as plain BNF
// productions.
//
// The retrieval pack's copy of internal/ictiobus/grammar is missing its
// grammar.go (only item.go and its test file survive); this file is written
// fresh, grounded on the exact surface the rest of the pack calls against it
// (automaton.go's NewLALR1ViablePrefixDFA/NewLR1ViablePrefixDFA/
// NewLR0ViablePrefixNFA, parse/lalr.go, and grammar_test.go's use of
// AddTerm/AddRule/Validate/FIRST/FOLLOW/RemoveEpsilons). LL(1)-only surface
// the teacher's test file also exercises (LeftFactor, RemoveLeftRecursion,
// RemoveUnitProductions, IsLL1, LLParseTable) is not reproduced: the LALR
// builder this repo implements never calls it, and spec.md's grammar model
// (§3.4, §4.5) has no LL(1) table-construction component.
package grammar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dekarrin/tameparse/internal/coll"
)

// Epsilon is the reserved empty-production marker, matching the teacher's
// grammar.Epsilon (referenced as grammar.Epsilon[0] throughout automaton.go).
var Epsilon = []string{""}

// EndOfInput is the lookahead/terminal symbol representing the end of the
// token stream, used as the augmented start rule's lookahead ($) and as a
// FOLLOW-set member.
const EndOfInput = "$"

// Production is the right-hand side of one rule alternative.
type Production []string

func (p Production) String() string { return strings.Join([]string(p), " ") }

func (p Production) Equal(o Production) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// IsEpsilon reports whether p is the empty production.
func (p Production) IsEpsilon() bool { return len(p) == 0 || (len(p) == 1 && p[0] == "") }

// Rule is one non-terminal and all of its production alternatives, per spec
// §3.4.
type Rule struct {
	NonTerminal string
	Productions []Production
}

// Grammar is a context-free grammar over terminal and non-terminal symbols.
// The zero value is an empty grammar ready for AddTerm/AddRule calls,
// mirroring the teacher's own zero-value-friendly types.
type Grammar struct {
	rules    map[string]*Rule
	ruleList []string // insertion order, for deterministic output

	terms     map[string]bool
	termList  []string
	start     string
	uniqueSeq int
}

func New() Grammar {
	return Grammar{
		rules: map[string]*Rule{},
		terms: map[string]bool{},
	}
}

func (g *Grammar) ensureInit() {
	if g.rules == nil {
		g.rules = map[string]*Rule{}
	}
	if g.terms == nil {
		g.terms = map[string]bool{}
	}
}

// AddTerm registers a terminal symbol. Re-adding an existing terminal is a
// no-op, matching the teacher's idempotent AddClass discipline in lex.go.
func (g *Grammar) AddTerm(name string) {
	g.ensureInit()
	if g.terms[name] {
		return
	}
	g.terms[name] = true
	g.termList = append(g.termList, name)
}

// AddRule appends one production alternative to nonTerminal's rule, creating
// the rule (and setting it as the start symbol, if this is the first rule
// added) if it does not already exist.
func (g *Grammar) AddRule(nonTerminal string, production []string) {
	g.ensureInit()
	r, ok := g.rules[nonTerminal]
	if !ok {
		r = &Rule{NonTerminal: nonTerminal}
		g.rules[nonTerminal] = r
		g.ruleList = append(g.ruleList, nonTerminal)
		if g.start == "" {
			g.start = nonTerminal
		}
	}
	r.Productions = append(r.Productions, Production(production))
}

// Rule returns the rule for nonTerminal, or a zero Rule with a nil
// Productions slice if it has not been added.
func (g *Grammar) Rule(nonTerminal string) Rule {
	if r, ok := g.rules[nonTerminal]; ok {
		return *r
	}
	return Rule{NonTerminal: nonTerminal}
}

func (g *Grammar) StartSymbol() string { return g.start }

// SetStartSymbol overrides the inferred start symbol (the first non-terminal
// added), for grammars assembled out of insertion order.
func (g *Grammar) SetStartSymbol(nt string) { g.start = nt }

func (g *Grammar) IsTerminal(sym string) bool {
	if sym == "" || sym == EndOfInput {
		return true
	}
	return g.terms[sym]
}

func (g *Grammar) IsNonTerminal(sym string) bool {
	_, ok := g.rules[sym]
	return ok
}

// Terminals returns all registered terminal symbols in insertion order.
func (g *Grammar) Terminals() []string {
	out := make([]string, len(g.termList))
	copy(out, g.termList)
	return out
}

// NonTerminals returns all registered non-terminal symbols in insertion
// order.
func (g *Grammar) NonTerminals() []string {
	out := make([]string, len(g.ruleList))
	copy(out, g.ruleList)
	return out
}

// GenerateUniqueTerminal returns a terminal name derived from base that does
// not already exist in the grammar, used by the rewriters (component H)
// when synthesizing a fresh terminal (e.g. for precedence-tagged variants).
func (g *Grammar) GenerateUniqueTerminal(base string) string {
	g.ensureInit()
	candidate := base
	for g.terms[candidate] || g.rules[candidate] != nil {
		g.uniqueSeq++
		candidate = fmt.Sprintf("%s-%d", base, g.uniqueSeq)
	}
	return candidate
}

// GenerateUniqueNonTerminal is the non-terminal analog, used by Augmented
// to name the fresh start rule it introduces.
func (g *Grammar) GenerateUniqueNonTerminal(base string) string {
	g.ensureInit()
	candidate := base
	for g.rules[candidate] != nil {
		g.uniqueSeq++
		candidate = fmt.Sprintf("%s-%d", base, g.uniqueSeq)
	}
	return candidate
}

// Validate checks that every symbol referenced by a production is either a
// declared terminal or a declared non-terminal, and that a start symbol is
// set. Mirrors the teacher's Validate, which grammar_test.go exercises as a
// basic well-formedness gate before further processing.
func (g *Grammar) Validate() error {
	g.ensureInit()
	if g.start == "" {
		return fmt.Errorf("grammar has no start symbol (no rules added)")
	}
	for _, ntName := range g.ruleList {
		rule := g.rules[ntName]
		if len(rule.Productions) == 0 {
			return fmt.Errorf("non-terminal %q has no productions", ntName)
		}
		for _, prod := range rule.Productions {
			for _, sym := range prod {
				if sym == "" {
					continue
				}
				if !g.IsTerminal(sym) && !g.IsNonTerminal(sym) {
					return fmt.Errorf("production %s -> %s references undeclared symbol %q", ntName, prod, sym)
				}
			}
		}
	}
	return nil
}

// Augmented returns a copy of g with a fresh start rule S' -> S added, per
// the standard LR construction (spec §4.7, purple dragon book §4.7).
func (g Grammar) Augmented() Grammar {
	newStart := g.GenerateUniqueNonTerminal(g.start + "-aug")
	cp := g.copy()
	cp.AddRule(newStart, []string{g.start})
	cp.start = newStart
	return cp
}

func (g Grammar) copy() Grammar {
	cp := New()
	cp.uniqueSeq = g.uniqueSeq
	for _, t := range g.termList {
		cp.AddTerm(t)
	}
	for _, nt := range g.ruleList {
		r := g.rules[nt]
		for _, p := range r.Productions {
			cp.AddRule(nt, []string(p))
		}
	}
	cp.start = g.start
	return cp
}

// LR0_CLOSURE computes the closure of an LR(0) item set (purple dragon book
// algorithm 4.47 / SetOfItems CLOSURE).
func (g *Grammar) LR0_CLOSURE(items coll.VSet[LR0Item]) coll.VSet[LR0Item] {
	closure := items.Copy()

	changed := true
	for changed {
		changed = false
		for _, key := range closure.SortedElements() {
			item := closure.Get(key)
			if len(item.Right) == 0 {
				continue
			}
			next := item.Right[0]
			if next == "" {
				continue
			}
			rule, ok := g.rules[next]
			if !ok {
				continue
			}
			for _, prod := range rule.Productions {
				right := []string(prod)
				if prod.IsEpsilon() {
					right = nil
				}
				newItem := LR0Item{NonTerminal: next, Right: right}
				k := newItem.String()
				if !closure.Has(k) {
					closure.Set(k, newItem)
					changed = true
				}
			}
		}
	}
	return closure
}

// LR0_GOTO computes GOTO(items, sym): advance the dot over sym in every item
// where sym immediately follows the dot, then take the closure.
func (g *Grammar) LR0_GOTO(items coll.VSet[LR0Item], sym string) coll.VSet[LR0Item] {
	moved := coll.NewVSet[LR0Item]()
	for _, key := range items.SortedElements() {
		item := items.Get(key)
		if len(item.Right) == 0 || item.Right[0] != sym {
			continue
		}
		newItem := LR0Item{
			NonTerminal: item.NonTerminal,
			Left:        append(append([]string{}, item.Left...), sym),
			Right:       append([]string{}, item.Right[1:]...),
		}
		moved.Set(newItem.String(), newItem)
	}
	return g.LR0_CLOSURE(moved)
}

// WithStart returns a copy of g with its start symbol changed to nt,
// without augmenting. Used by the guard compiler (component F) to root a
// canonical collection at a guard's own rule instead of the grammar's
// top-level start symbol.
func (g Grammar) WithStart(nt string) Grammar {
	cp := g.copy()
	cp.start = nt
	return cp
}

// LR0InitialState returns the closure of the augmented start item
// {(S' -> ·S, ...)}, the item set every canonical LR(0)/LR(1) collection
// begins its BFS from (spec §4.7 phase 1).
func (g *Grammar) LR0InitialState() coll.VSet[LR0Item] {
	aug := g.Augmented()
	initial := coll.NewVSet[LR0Item]()
	startItem := LR0Item{NonTerminal: aug.start, Right: []string(aug.rules[aug.start].Productions[0])}
	initial.Set(startItem.String(), startItem)
	return aug.LR0_CLOSURE(initial)
}

// LR0Items returns the canonical collection of LR(0) item sets for the
// augmented grammar, keyed by the StringOrdered() of each set.
func (g *Grammar) LR0Items() coll.VSet[coll.VSet[LR0Item]] {
	aug := g.Augmented()
	initial := g.LR0InitialState()

	collection := coll.NewVSet[coll.VSet[LR0Item]]()
	collection.Set(initial.StringOrdered(), initial)

	symbols := append(append([]string{}, aug.termList...), aug.ruleList...)

	changed := true
	for changed {
		changed = false
		for _, key := range collection.SortedElements() {
			I := collection.Get(key)
			for _, sym := range symbols {
				goTo := aug.LR0_GOTO(I, sym)
				if goTo.Len() == 0 {
					continue
				}
				k := goTo.StringOrdered()
				if !collection.Has(k) {
					collection.Set(k, goTo)
					changed = true
				}
			}
		}
	}
	return collection
}

// CanonicalLR0Items is an alias for LR0Items, matching the naming used
// elsewhere in the pack for "the canonical collection."
func (g *Grammar) CanonicalLR0Items() coll.VSet[coll.VSet[LR0Item]] { return g.LR0Items() }

// LR1_CLOSURE computes the closure of an LR(1) item set (purple dragon book
// algorithm 4.53).
func (g *Grammar) LR1_CLOSURE(items coll.VSet[LR1Item]) coll.VSet[LR1Item] {
	closure := items.Copy()

	changed := true
	for changed {
		changed = false
		for _, key := range closure.SortedElements() {
			item := closure.Get(key)
			if len(item.Right) == 0 {
				continue
			}
			next := item.Right[0]
			if next == "" {
				continue
			}
			rule, ok := g.rules[next]
			if !ok {
				continue
			}

			beta := item.Right[1:]
			lookaheads := g.firstOfSequence(append(append([]string{}, beta...), item.Lookahead))

			for _, prod := range rule.Productions {
				right := []string(prod)
				if Production(prod).IsEpsilon() {
					right = nil
				}
				for _, la := range lookaheads.Elements() {
					newItem := LR1Item{
						LR0Item:   LR0Item{NonTerminal: next, Right: right},
						Lookahead: la,
					}
					k := newItem.String()
					if !closure.Has(k) {
						closure.Set(k, newItem)
						changed = true
					}
				}
			}
		}
	}
	return closure
}

// LR1_GOTO computes GOTO(items, sym) for an LR(1) item set.
func (g *Grammar) LR1_GOTO(items coll.VSet[LR1Item], sym string) coll.VSet[LR1Item] {
	moved := coll.NewVSet[LR1Item]()
	for _, key := range items.SortedElements() {
		item := items.Get(key)
		if len(item.Right) == 0 || item.Right[0] != sym {
			continue
		}
		newItem := LR1Item{
			LR0Item: LR0Item{
				NonTerminal: item.NonTerminal,
				Left:        append(append([]string{}, item.Left...), sym),
				Right:       append([]string{}, item.Right[1:]...),
			},
			Lookahead: item.Lookahead,
		}
		moved.Set(newItem.String(), newItem)
	}
	return g.LR1_CLOSURE(moved)
}

// RemoveEpsilons rewrites g into an equivalent grammar with no epsilon
// productions except possibly S -> epsilon for the start symbol, per the
// standard algorithm (purple dragon book §4.4.4) the teacher's Grammar type
// documents via its RemoveEpsilons method.
func (g Grammar) RemoveEpsilons() Grammar {
	nullable := coll.NewStringSet()
	changed := true
	for changed {
		changed = false
		for _, nt := range g.ruleList {
			if nullable.Has(nt) {
				continue
			}
			for _, prod := range g.rules[nt].Productions {
				if prod.IsEpsilon() {
					nullable.Add(nt)
					changed = true
					break
				}
				allNullable := true
				for _, sym := range prod {
					if !nullable.Has(sym) {
						allNullable = false
						break
					}
				}
				if allNullable {
					nullable.Add(nt)
					changed = true
					break
				}
			}
		}
	}

	out := New()
	for _, t := range g.termList {
		out.AddTerm(t)
	}
	out.start = g.start

	for _, nt := range g.ruleList {
		seen := map[string]bool{}
		for _, prod := range g.rules[nt].Productions {
			if prod.IsEpsilon() {
				if nt == g.start {
					key := Production(nil).String()
					if !seen[key] {
						out.AddRule(nt, nil)
						seen[key] = true
					}
				}
				continue
			}
			for _, variant := range nullableExpansions(prod, nullable) {
				if len(variant) == 0 {
					if nt != g.start {
						continue
					}
				}
				key := Production(variant).String()
				if !seen[key] {
					out.AddRule(nt, variant)
					seen[key] = true
				}
			}
		}
	}
	return out
}

// nullableExpansions returns every production obtainable by independently
// keeping or dropping each nullable symbol in prod (excluding the
// all-dropped case unless prod itself was empty, handled by the caller).
func nullableExpansions(prod Production, nullable coll.StringSet) []Production {
	variants := []Production{{}}
	for _, sym := range prod {
		isNullable := nullable.Has(sym)
		next := make([]Production, 0, len(variants)*2)
		for _, v := range variants {
			withSym := append(append(Production{}, v...), sym)
			next = append(next, withSym)
			if isNullable {
				next = append(next, append(Production{}, v...))
			}
		}
		variants = next
	}
	out := variants[:0]
	for _, v := range variants {
		if len(v) > 0 {
			out = append(out, v)
		}
	}
	return out
}

// FIRST computes FIRST(sym) for a single terminal or non-terminal symbol.
func (g *Grammar) FIRST(sym string) coll.StringSet {
	return g.firstOfSequence([]string{sym})
}

// FirstOfSequence exposes firstOfSequence for callers outside this package
// that need FIRST over an arbitrary symbol string rather than a single
// symbol — the LALR builder's Knuth-DeRemer lookahead propagation (spec
// §4.7 phase 2) needs FIRST(beta a) directly, the same primitive LR1_CLOSURE
// uses internally.
func (g *Grammar) FirstOfSequence(seq []string) coll.StringSet {
	return g.firstOfSequence(seq)
}

// firstOfSequence computes FIRST of a string of symbols, the operation the
// LR(1) closure's lookahead propagation needs directly (FIRST(beta a)).
func (g *Grammar) firstOfSequence(seq []string) coll.StringSet {
	out := coll.NewStringSet()
	epsilonAll := true

	for _, sym := range seq {
		if sym == "" {
			out.Add("")
			continue
		}
		if g.IsTerminal(sym) {
			out.Add(sym)
			epsilonAll = false
			break
		}

		symFirst := g.nonTerminalFirst(sym)
		for _, f := range symFirst.Elements() {
			if f != "" {
				out.Add(f)
			}
		}
		if !symFirst.Has("") {
			epsilonAll = false
			break
		}
	}

	if epsilonAll {
		out.Add("")
	}
	return out
}

// nonTerminalFirst returns FIRST(nt), computed via the standard whole-
// grammar fixed point (purple dragon book algorithm 4.28's FIRST half)
// rather than naive per-symbol recursion, so that left-recursive rules
// (E -> E + T | T) don't cause infinite recursion.
func (g *Grammar) nonTerminalFirst(nt string) coll.StringSet {
	firsts := make(map[string]coll.StringSet, len(g.ruleList))
	for _, n := range g.ruleList {
		firsts[n] = coll.NewStringSet()
	}

	changed := true
	for changed {
		changed = false
		for _, n := range g.ruleList {
			for _, prod := range g.rules[n].Productions {
				if prod.IsEpsilon() {
					if !firsts[n].Has("") {
						firsts[n].Add("")
						changed = true
					}
					continue
				}
				allNullableSoFar := true
				for _, sym := range prod {
					if !allNullableSoFar {
						break
					}
					if g.IsTerminal(sym) {
						if !firsts[n].Has(sym) {
							firsts[n].Add(sym)
							changed = true
						}
						allNullableSoFar = false
						break
					}
					for _, f := range firsts[sym].Elements() {
						if f == "" {
							continue
						}
						if !firsts[n].Has(f) {
							firsts[n].Add(f)
							changed = true
						}
					}
					if !firsts[sym].Has("") {
						allNullableSoFar = false
					}
				}
				if allNullableSoFar && !firsts[n].Has("") {
					firsts[n].Add("")
					changed = true
				}
			}
		}
	}

	if f, ok := firsts[nt]; ok {
		return f
	}
	return coll.NewStringSet()
}

// FOLLOW computes FOLLOW(nt) for a non-terminal, per the standard
// fixed-point algorithm (purple dragon book algorithm 4.28).
func (g *Grammar) FOLLOW(nt string) coll.StringSet {
	follow := make(map[string]coll.StringSet, len(g.ruleList))
	for _, n := range g.ruleList {
		follow[n] = coll.NewStringSet()
	}
	follow[g.start].Add(EndOfInput)

	changed := true
	for changed {
		changed = false
		for _, lhs := range g.ruleList {
			for _, prod := range g.rules[lhs].Productions {
				for i, sym := range prod {
					if !g.IsNonTerminal(sym) {
						continue
					}
					rest := prod[i+1:]
					restFirst := g.firstOfSequence(rest)
					before := follow[sym].Len()
					for _, f := range restFirst.Elements() {
						if f != "" {
							follow[sym].Add(f)
						}
					}
					if restFirst.Has("") || len(rest) == 0 {
						for _, f := range follow[lhs].Elements() {
							follow[sym].Add(f)
						}
					}
					if follow[sym].Len() != before {
						changed = true
					}
				}
			}
		}
	}

	if f, ok := follow[nt]; ok {
		return f
	}
	return coll.NewStringSet()
}

// String renders the grammar in the same "NT -> ALPHA | BETA" form item.go's
// parser accepts, useful for debug output and golden tests.
func (g *Grammar) String() string {
	var sb strings.Builder
	names := append([]string{}, g.ruleList...)
	sort.Strings(names)
	for _, nt := range names {
		r := g.rules[nt]
		parts := make([]string, len(r.Productions))
		for i, p := range r.Productions {
			if p.IsEpsilon() {
				parts[i] = "ε"
			} else {
				parts[i] = p.String()
			}
		}
		sb.WriteString(fmt.Sprintf("%s -> %s\n", nt, strings.Join(parts, " | ")))
	}
	return sb.String()
}
