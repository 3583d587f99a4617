// Package outstage implements spec component J, the output contract, and
// the already-parsed-form input contract SPEC_FULL.md's Source AST
// expansion calls for. Because the self-hosted FISHI surface syntax is out
// of scope (spec.md's stated Non-goals), LexerBlock/GrammarBlock/
// PrecedenceBlock/ParserBlock stand in for "the source AST hands the
// core": Go struct literals (or golden fixture files decoded into them)
// instead of a parsed .fishi source. Pipeline then drives components
// D/E/F/G/H/I end to end from those blocks and hands the result to a
// Backend — binout.Writer (the mandatory encoder) or DebugBackend (a
// human-readable dump for golden-file tests), matching the "Back-end
// dispatch" design note.
package outstage

import (
	"context"
	"fmt"
	"strings"

	"github.com/dekarrin/tameparse/internal/tameparse/binout"
	"github.com/dekarrin/tameparse/internal/tameparse/grammar"
	"github.com/dekarrin/tameparse/internal/tameparse/guard"
	"github.com/dekarrin/tameparse/internal/tameparse/lalr"
	"github.com/dekarrin/tameparse/internal/tameparse/lexer"
	"github.com/dekarrin/tameparse/internal/tameparse/rewrite"
)

// LexerBlock is the parsed-form stand-in for a source file's %lexer
// section: the pattern list component D compiles.
type LexerBlock struct {
	Patterns []lexer.Pattern
}

// RuleBlock is one nonterminal's productions.
type RuleBlock struct {
	NonTerminal string
	Productions [][]string
}

// GrammarBlock is the parsed-form stand-in for a source file's %grammar
// section.
type GrammarBlock struct {
	Terminals []string
	Rules     []RuleBlock
	Start     string
}

// PrecedenceEntry is one precedence level's symbols and associativity, in
// declared (lowest-to-highest) order — the parsed-form stand-in for a
// source file's %precedence section.
type PrecedenceEntry struct {
	Symbols []string
	Assoc   rewrite.Associativity
}

// PrecedenceBlock is an ordered list of precedence levels; level index in
// the slice is the effective precedence rank (spec §4.8).
type PrecedenceBlock struct {
	Entries []PrecedenceEntry
}

// ParserBlock is the parsed-form stand-in for a source file's %parser
// section: the grammar plus the precedence table, guard declarations, and
// weak-terminal equivalences the rewriter pipeline (component H) needs.
type ParserBlock struct {
	Grammar       GrammarBlock
	Precedence    PrecedenceBlock
	Guards        []guard.Guard
	WeakToStrong  map[string]string
	RuleOverrides map[int]int // rule id -> explicit precedence override
}

// Backend is the polymorphic output capability spec §EXPANSION-J names:
// four emit calls a compiled pipeline drives in order (header, then lexer,
// then parser, then any extra strings the caller wants interned, e.g.
// source file names for diagnostics).
type Backend interface {
	EmitHeader(meta binout.Meta) error
	EmitLexer(lt binout.LexerTable) error
	EmitParser(pt binout.ParserTable, ruleDefs, terminalNames, nonTerminalNames []string) error
	EmitStrings(extra []string) error
}

// Result is everything a Pipeline run produced, independent of which
// Backend consumed it — useful for callers (e.g. the REPL) that want the
// live tables rather than a serialized file.
type Result struct {
	Lexer         *lexer.Lexer
	Table         *lalr.Table
	Conflicts     []lalr.Conflict
	Unresolved    []lalr.Conflict
	WeakEquiv     []rewrite.WeakEquivalence
	Guards        []guard.SubParser
	RuleOrder     []string
	TerminalOrder []string
	NonTermOrder  []string
}

// buildGrammar turns a GrammarBlock into a grammar.Grammar.
func buildGrammar(gb GrammarBlock) grammar.Grammar {
	g := grammar.New()
	for _, t := range gb.Terminals {
		g.AddTerm(t)
	}
	for _, r := range gb.Rules {
		for _, prod := range r.Productions {
			g.AddRule(r.NonTerminal, prod)
		}
	}
	if gb.Start != "" {
		g.SetStartSymbol(gb.Start)
	}
	return g
}

func buildPrecedenceTable(pb PrecedenceBlock) rewrite.PrecedenceTable {
	table := rewrite.PrecedenceTable{}
	for level, entry := range pb.Entries {
		for _, sym := range entry.Symbols {
			table[sym] = rewrite.PrecedenceEntry{Precedence: level + 1, Assoc: entry.Assoc}
		}
	}
	return table
}

// Pipeline runs components D (lexer.Compile), E/F (grammar + guard
// compilation), G (lalr.Build), and H (the three rewrite passes, in the
// order spec §4.8 fixes: precedence, then weak, then guard) over lb/pb,
// then drives backend's four Emit calls with the result (spec §EXPANSION-J;
// see also spec.md's top-level pipeline description in §1–2). It returns a
// nil Result when the context is done or the lexer or LALR phase fails; when
// a Backend call fails, it returns the built Result alongside that error.
func Pipeline(ctx context.Context, meta binout.Meta, lb LexerBlock, pb ParserBlock, backend Backend) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lx, err := lexer.Compile(ctx, lb.Patterns)
	if err != nil {
		return nil, fmt.Errorf("outstage: lexer compile: %w", err)
	}

	gram := buildGrammar(pb.Grammar)
	table, err := lalr.Build(gram)
	if err != nil {
		return nil, fmt.Errorf("outstage: lalr build: %w", err)
	}

	prec := buildPrecedenceTable(pb.Precedence)
	unresolved := rewrite.ApplyPrecedence(table, prec, pb.RuleOverrides)

	// lx.WeakTerminals() names which terminals the lexer layer declared
	// weak; pb.WeakToStrong supplies the actual weak->strong mapping
	// (component D has no visibility into which strong terminal a weak
	// pattern shadows, only that it is weak at all).
	weakToStrong := pb.WeakToStrong
	if weakToStrong == nil {
		weakToStrong = map[string]string{}
	}
	weakEquiv := rewrite.ApplyWeakRewrite(table, weakToStrong)

	guardIndex := map[string]int{}
	subParsers := make([]guard.SubParser, 0, len(pb.Guards))
	for i, g := range pb.Guards {
		guardIndex[g.Symbol] = i
		subParsers = append(subParsers, guard.Compile(g, gram))
	}
	rewrite.ApplyGuardRewrite(table, guardIndex)

	terminalOrder := append(append([]string{}, gram.Terminals()...), grammar.EndOfInput)
	nonTermOrder := gram.NonTerminals()
	ruleOrder := make([]string, len(table.Rules))
	for _, r := range table.Rules {
		ruleOrder[r.ID] = r.String()
	}

	result := &Result{
		Lexer:         lx,
		Table:         table,
		Conflicts:     table.Conflicts,
		Unresolved:    unresolved,
		WeakEquiv:     weakEquiv,
		Guards:        subParsers,
		RuleOrder:     ruleOrder,
		TerminalOrder: terminalOrder,
		NonTermOrder:  nonTermOrder,
	}

	if backend == nil {
		return result, nil
	}

	symIndex := map[string]uint32{}
	var next uint32
	for _, s := range terminalOrder {
		if _, ok := symIndex[s]; !ok {
			symIndex[s] = next
			next++
		}
	}
	for _, s := range nonTermOrder {
		if _, ok := symIndex[s]; !ok {
			symIndex[s] = next
			next++
		}
	}
	symbolID := func(s string) uint32 { return symIndex[s] }

	if err := backend.EmitHeader(meta); err != nil {
		return result, err
	}
	if err := backend.EmitLexer(binout.FromLexer(lx, symbolID)); err != nil {
		return result, err
	}
	// Guard sub-parser tables (subParsers) aren't yet emitted by any
	// Backend: spec §6.6's fixed layout has no reserved slot for them
	// (lr_guard_ending_states only records where a guard's sub-parse
	// ends, not the sub-parser's own transition table). A guard-aware
	// Backend extension is future work, not a silent drop: Result.Guards
	// still carries the compiled sub-parsers for callers that want them.
	parserTable := binout.FromTable(table, symbolID, weakEquiv)
	if err := backend.EmitParser(parserTable, ruleOrder, terminalOrder, nonTermOrder); err != nil {
		return result, err
	}
	if err := backend.EmitStrings(nil); err != nil {
		return result, err
	}

	return result, nil
}

// DebugBackend renders a human-readable dump of everything emitted,
// grounded on automaton.go's/grammar.go's String() convention of one
// state/rule per line. It exists for golden-file tests and ad-hoc
// inspection (the `--show-lexer-stats`/`--show-propagation` style
// diagnostics SPEC_FULL.md's CLI section describes), standing in for the
// out-of-scope source-emitting backends.
type DebugBackend struct {
	sb strings.Builder
}

func (d *DebugBackend) EmitHeader(m binout.Meta) error {
	fmt.Fprintf(&d.sb, "language: %s\ngenerator: %s (%#x)\n", m.LanguageName, m.GeneratorVersionString, m.GeneratorVersion)
	return nil
}

func (d *DebugBackend) EmitLexer(lt binout.LexerTable) error {
	fmt.Fprintf(&d.sb, "lexer: %d states, %d atoms\n", len(lt.Transitions), lt.AtomCount)
	for i, has := range lt.AcceptHas {
		if !has {
			continue
		}
		fmt.Fprintf(&d.sb, "  state %d accepts symbol %d (eager=%v weak=%v)\n", i, lt.AcceptSym[i], lt.AcceptEager[i], lt.AcceptWeak[i])
	}
	return nil
}

func (d *DebugBackend) EmitParser(pt binout.ParserTable, ruleDefs, terminalNames, nonTerminalNames []string) error {
	fmt.Fprintf(&d.sb, "parser: %d states, %d rules\n", len(pt.TerminalActions), len(ruleDefs))
	for i, def := range ruleDefs {
		fmt.Fprintf(&d.sb, "  rule %d: %s\n", i, def)
	}
	return nil
}

func (d *DebugBackend) EmitStrings(extra []string) error {
	if len(extra) == 0 {
		return nil
	}
	fmt.Fprintf(&d.sb, "strings: %s\n", strings.Join(extra, ", "))
	return nil
}

// String returns everything emitted so far.
func (d *DebugBackend) String() string { return d.sb.String() }
