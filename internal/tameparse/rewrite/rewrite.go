// Package rewrite implements spec component H: the precedence/associativity
// rewriter, the weak-symbol rewriter, and the guard conflict rewriter — a
// pipeline of pure `(grammar, tables) -> tables` passes applied after
// action assembly but before serialization (spec §4.8). None of these
// passes exist in the retrieval pack (the teacher's LALR construction never
// needed precedence or weak terminals), so each is grounded directly on the
// textual algorithm spec.md §4.8 spells out, operating on the lalr.Table
// component G produces.
package rewrite

import (
	"sort"

	"github.com/dekarrin/tameparse/internal/tameparse/grammar"
	"github.com/dekarrin/tameparse/internal/tameparse/lalr"
)

// Associativity is one of the three resolution strategies spec §4.8 names
// for an equal-precedence shift/reduce conflict.
type Associativity int

const (
	Left Associativity = iota
	Right
	Nonassoc
)

// PrecedenceEntry is one terminal's precedence level and associativity.
type PrecedenceEntry struct {
	Precedence int
	Assoc      Associativity
}

// PrecedenceTable maps a terminal symbol to its declared precedence.
type PrecedenceTable map[string]PrecedenceEntry

// RulePrecedence returns a rule's effective precedence: override if
// supplied (an explicit per-rule annotation), else the precedence of the
// rule's rightmost terminal (spec §4.8), else (0, false) if neither is
// available.
func RulePrecedence(table PrecedenceTable, prod grammar.Production, override *int) (int, bool) {
	if override != nil {
		return *override, true
	}
	for i := len(prod) - 1; i >= 0; i-- {
		if e, ok := table[prod[i]]; ok {
			return e.Precedence, true
		}
	}
	return 0, false
}

// classify splits a recorded conflict into its shift/reduce halves, or
// reports isShiftReduce=false for a reduce/reduce (or other) conflict,
// which precedence never resolves (spec §4.8: "Reduce/reduce conflicts are
// not resolved by precedence").
func classify(c lalr.Conflict) (shift, reduce lalr.Action, isShiftReduce bool) {
	isShift := func(a lalr.Action) bool { return a.Kind == lalr.Shift }
	isReduce := func(a lalr.Action) bool { return a.Kind == lalr.Reduce || a.Kind == lalr.WeakReduce }
	if isShift(c.Existing) && isReduce(c.New) {
		return c.Existing, c.New, true
	}
	if isShift(c.New) && isReduce(c.Existing) {
		return c.New, c.Existing, true
	}
	return lalr.Action{}, lalr.Action{}, false
}

// ApplyPrecedence resolves every shift/reduce conflict lalr.Build or
// lalr.PropagateLookaheads recorded, per spec §4.8's rule table, mutating
// the winning action in place. ruleOverride supplies an explicit per-rule
// precedence annotation (rule id -> precedence), when the source grammar
// specified one instead of relying on the rightmost-terminal default.
// Conflicts precedence cannot resolve (reduce/reduce, or a shift/reduce
// where either side lacks a declared precedence) are returned unresolved
// for the error taxonomy (spec §7) to report.
func ApplyPrecedence(table *lalr.Table, prec PrecedenceTable, ruleOverride map[int]int) []lalr.Conflict {
	byState := make(map[int]*lalr.State, len(table.States))
	for _, st := range table.States {
		byState[st.ID] = st
	}

	var unresolved []lalr.Conflict
	for _, c := range table.Conflicts {
		shiftAction, reduceAction, ok := classify(c)
		if !ok {
			unresolved = append(unresolved, c)
			continue
		}
		st := byState[c.State]

		var override *int
		if reduceAction.Rule != nil {
			if v, ok := ruleOverride[reduceAction.Rule.ID]; ok {
				override = &v
			}
		}
		var prod grammar.Production
		if reduceAction.Rule != nil {
			prod = reduceAction.Rule.Production
		}

		rulePrec, rok := RulePrecedence(prec, prod, override)
		symEntry, sok := prec[c.Symbol]
		if !rok || !sok {
			unresolved = append(unresolved, c)
			continue
		}

		switch {
		case rulePrec > symEntry.Precedence:
			st.Terminals[c.Symbol] = reduceAction
		case rulePrec < symEntry.Precedence:
			st.Terminals[c.Symbol] = shiftAction
		default:
			switch symEntry.Assoc {
			case Left:
				st.Terminals[c.Symbol] = reduceAction
			case Right:
				st.Terminals[c.Symbol] = shiftAction
			case Nonassoc:
				// Spec §4.8: "Nonassoc -> error at runtime" — encoded as no
				// action at all for this cell, the conventional "blank
				// table cell is a syntax error" representation.
				delete(st.Terminals, c.Symbol)
			}
		}
	}
	return unresolved
}

// WeakEquivalence is one entry of the `weak_to_strong` list spec §4.8
// requires the runtime demotion table carry.
type WeakEquivalence struct {
	Weak, Strong string
}

// ApplyWeakRewrite implements the weak-symbol rewriter (spec §4.8).
// weakToStrong names, for every weak terminal, the strong terminal whose
// lexer pattern it is a subword of — a relation the caller supplies
// (outstage.Pipeline passes ParserBlock.WeakToStrong), not something this
// package infers on its own (it has no access to the regex text, only the
// assembled action table).
func ApplyWeakRewrite(table *lalr.Table, weakToStrong map[string]string) []WeakEquivalence {
	equivalences := make([]WeakEquivalence, 0, len(weakToStrong))
	for weak, strong := range weakToStrong {
		equivalences = append(equivalences, WeakEquivalence{Weak: weak, Strong: strong})

		for _, st := range table.States {
			strongAction, hasStrong := st.Terminals[strong]
			weakAction, hasWeak := st.Terminals[weak]

			switch {
			case hasStrong && !hasWeak:
				st.Terminals[weak] = strongAction
			case hasWeak && !hasStrong:
				if weakAction.Kind == lalr.Shift {
					st.Terminals[strong] = weakAction
					continue
				}
				demoted := weakAction
				demoted.Kind = lalr.WeakReduce
				st.Terminals[weak] = demoted
				st.Terminals[strong] = demoted
			}
		}
	}

	sort.Slice(equivalences, func(i, j int) bool { return equivalences[i].Weak < equivalences[j].Weak })
	return equivalences
}

// ApplyGuardRewrite implements the guard conflict rewriter (spec §4.8):
// every shift on a guard's synthetic symbol becomes a Guard action whose
// Target indexes into the flattened list of compiled guard sub-parsers the
// caller maintains alongside the main table (guardIndex maps a guard
// symbol to that index).
func ApplyGuardRewrite(table *lalr.Table, guardIndex map[string]int) {
	for _, st := range table.States {
		for sym, action := range st.Terminals {
			if action.Kind != lalr.Shift {
				continue
			}
			if idx, ok := guardIndex[sym]; ok {
				st.Terminals[sym] = lalr.Action{Kind: lalr.GuardKind, Target: idx}
			}
		}
	}
}
