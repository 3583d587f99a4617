// Package lexer implements spec component D: it compiles a collection of
// regex patterns into a single deterministic lexer automaton (NDFA ->
// partitioned NDFA -> DFA -> compact table) with "eager" and "weak" accept
// semantics, and provides the runtime scanner that walks the resulting
// tables (spec §4.4, §6.5).
//
// Grounded on the teacher's internal/ictiobus/lex package, whose Lexer type
// wraps a collection of per-class FA fragments and a token-priority list
// (lex.go's AddClass/AddPattern, lazy.go's lazyLexer.Lex); the automaton
// construction itself is new, built on components B (fa) and C (regexfe)
// since the teacher's own regex-to-NFA compiler was never finished.
package lexer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dekarrin/tameparse/internal/coll"
	"github.com/dekarrin/tameparse/internal/tameparse/fa"
	"github.com/dekarrin/tameparse/internal/tameparse/regexfe"
	"github.com/dekarrin/tameparse/internal/tameparse/symbols"
)

// Pattern is one lexical rule: a regex, the terminal symbol it produces, and
// the eager/weak flags spec §4.4 step 1 requires. Patterns are compiled in
// the order given; that order doubles as the "symbol id defined first"
// tie-break spec §4.4 step 4 calls for, since this package has no separate
// symbol-numbering authority of its own.
type Pattern struct {
	Name            string
	Regex           string
	Eager           bool
	Weak            bool
	CaseInsensitive bool
}

// AcceptAction mirrors spec §3.2's { symbol_id, eager } accept action.
type AcceptAction struct {
	Symbol string
	Eager  bool
	Weak   bool
	order  int // declaration order, used only for the tie-break
}

// stateInfo is the DFA state value: every accept action any merged NFA
// state contributed (spec §4.2: "a state may carry zero or more accept
// actions"), kept in full rather than collapsed to a single winner so
// diagnostics and the weak-symbol rewriter (component H) can inspect all of
// them; Winner applies the step-4 priority rule for scanning purposes.
type stateInfo struct {
	accepts []AcceptAction
}

// Winner returns the accept action that wins under spec §4.4 step 4's
// priority (eager first, then lowest declaration order), or false if the
// state has no accept action at all.
func (s stateInfo) Winner() (AcceptAction, bool) {
	if len(s.accepts) == 0 {
		return AcceptAction{}, false
	}
	best := s.accepts[0]
	for _, a := range s.accepts[1:] {
		if better(a, best) {
			best = a
		}
	}
	return best, true
}

func better(a, b AcceptAction) bool {
	if a.Eager != b.Eager {
		return a.Eager
	}
	return a.order < b.order
}

// Lexer is a compiled, ready-to-scan lexical analyzer.
type Lexer struct {
	dfa        *fa.DFA[stateInfo, symbols.AtomID]
	translator symbols.Translator
	partition  symbols.Partition
	start      fa.StateID
	weak       coll.StringSet
}

// Stats summarizes the compiled automaton, for --show-lexer-stats style
// diagnostics and for regression tests that pin table size.
type Stats struct {
	States        int
	Atoms         int
	AcceptStates  int
	WeakTerminals int
}

// Compile builds the combined automaton for patterns, per spec §4.4:
// each pattern is parsed to a Thompson fragment (component C), every
// fragment is epsilon-joined from one shared initial state, the combined
// NDFA is partitioned into unique-symbol atoms and subset-constructed to a
// DFA, and an accept-conflict winner is computed per state.
func Compile(ctx context.Context, patterns []Pattern) (*Lexer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("lexer: no patterns supplied")
	}

	combined := fa.NewRangeNFA[stateInfo]()
	start := fa.StateID("start")
	combined.AddState(start, stateInfo{})
	combined.SetStart(start)

	weak := coll.NewStringSet()

	for i, pat := range patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frag, err := regexfe.Parse(pat.Regex, pat.CaseInsensitive)
		if err != nil {
			return nil, fmt.Errorf("lexer: pattern %q: %w", pat.Name, err)
		}
		prefix := fmt.Sprintf("p%d:", i)
		combined.Join(frag.NFA(), prefix, [][2]fa.StateID{{start, frag.Start()}}, nil, nil)

		acceptName := prefix + frag.Accept()
		action := AcceptAction{Symbol: pat.Name, Eager: pat.Eager, Weak: pat.Weak, order: i}
		combined.SetValue(acceptName, stateInfo{accepts: []AcceptAction{action}})
		if pat.Weak {
			weak.Add(pat.Name)
		}
	}

	merge := func(members []stateInfo) stateInfo {
		var out stateInfo
		for _, m := range members {
			out.accepts = append(out.accepts, m.accepts...)
		}
		sort.Slice(out.accepts, func(i, j int) bool {
			return out.accepts[i].order < out.accepts[j].order
		})
		return out
	}

	dfa, partition := combined.ToDFA([]fa.StateID{start}, merge)

	return &Lexer{
		dfa:        dfa,
		translator: symbols.NewTranslator(partition),
		partition:  partition,
		start:      dfa.Start,
		weak:       weak,
	}, nil
}

// WeakTerminals returns the names of every terminal declared weak, reported
// to the grammar layer so the parser can demote them (spec §4.4: "Weak
// terminals... are reported to the grammar layer so the parser can demote
// them").
func (l *Lexer) WeakTerminals() []string {
	return coll.SortedStrings(l.weak)
}

// Stats summarizes the compiled table.
func (l *Lexer) Stats() Stats {
	st := Stats{
		States:        len(l.dfa.States()),
		Atoms:         l.partition.NumAtoms(),
		WeakTerminals: l.weak.Len(),
	}
	for _, s := range l.dfa.States() {
		if _, ok := l.dfa.Value(s).Winner(); ok {
			st.AcceptStates++
		}
	}
	return st
}

// Token is one scanned lexeme.
type Token struct {
	Symbol string
	Lexeme string
	Pos    int
	Weak   bool
}

// ErrUnrecognized is returned by Scan when no pattern matches at the current
// position; per spec §4.4's error-recovery note the scanner advances
// exactly one input symbol past the failure point before the caller resumes
// scanning, rather than aborting the whole input.
type ErrUnrecognized struct {
	Pos int
	Sym rune
}

func (e *ErrUnrecognized) Error() string {
	return fmt.Sprintf("lexer: no pattern matches input at position %d (%q)", e.Pos, e.Sym)
}

// Scanner walks a compiled Lexer's tables over an input string, per spec
// §6.5: "The scanner advances by reading atoms and following
// transition_table[state][atom]; it tracks the last accept seen and
// restarts from the initial state on rejection, emitting the longest-match
// accept (or, on eager accept, immediately)."
type Scanner struct {
	lx    *Lexer
	input []rune
	pos   int
}

func NewScanner(lx *Lexer, input string) *Scanner {
	return &Scanner{lx: lx, input: []rune(input)}
}

func (s *Scanner) AtEOF() bool { return s.pos >= len(s.input) }

// Next returns the next token, or (Token{}, io.EOF)-shaped nil,false at end
// of input. A failure to match advances exactly one rune and returns
// ErrUnrecognized so the caller can choose to keep scanning.
func (s *Scanner) Next() (Token, bool, error) {
	if s.AtEOF() {
		return Token{}, false, nil
	}

	startPos := s.pos
	state := s.lx.start
	var lastAccept AcceptAction
	haveAccept := false
	lastAcceptLen := 0

	cur := s.pos
	for cur < len(s.input) {
		atom := s.lx.translator.Lookup(symbols.Symbol(s.input[cur]))
		if atom == symbols.NoAtom {
			break
		}
		next, ok := s.lx.dfa.Next(state, atom)
		if !ok {
			break
		}
		state = next
		cur++

		if win, ok := s.lx.dfa.Value(state).Winner(); ok {
			lastAccept = win
			haveAccept = true
			lastAcceptLen = cur - startPos
			if win.Eager {
				break
			}
		}
	}

	if !haveAccept {
		s.pos = startPos + 1
		return Token{}, true, &ErrUnrecognized{Pos: startPos, Sym: s.input[startPos]}
	}

	lexeme := string(s.input[startPos : startPos+lastAcceptLen])
	s.pos = startPos + lastAcceptLen
	return Token{Symbol: lastAccept.Symbol, Lexeme: lexeme, Pos: startPos, Weak: lastAccept.Weak}, true, nil
}

// ScanAll drains the scanner, stopping at the first unrecognized-input
// error (callers that want best-effort recovery should drive Next
// themselves instead).
func ScanAll(lx *Lexer, input string) ([]Token, error) {
	sc := NewScanner(lx, input)
	var out []Token
	for !sc.AtEOF() {
		tok, got, err := sc.Next()
		if err != nil {
			return out, err
		}
		if !got {
			break
		}
		out = append(out, tok)
	}
	return out, nil
}

// DenseTables renders the compiled DFA as a dense state_count x atom_count
// transition table (spec §6.3's transition_table; -1 marks rejection) plus a
// parallel accept-action column, with states numbered in BFS-from-start
// discovery order so the binary encoder (component I) gets the same
// determinism guarantee the LALR table construction does (spec §4.7/§8).
// State 0 is always the start state.
func (l *Lexer) DenseTables() (transitions [][]int32, accepts []AcceptAction, hasAccept []bool) {
	order, indexOf := l.bfsStateOrder()
	numAtoms := l.partition.NumAtoms()

	transitions = make([][]int32, len(order))
	accepts = make([]AcceptAction, len(order))
	hasAccept = make([]bool, len(order))

	for i, sid := range order {
		row := make([]int32, numAtoms)
		for a := 0; a < numAtoms; a++ {
			next, ok := l.dfa.Next(sid, symbols.AtomID(a))
			if !ok {
				row[a] = -1
				continue
			}
			row[a] = int32(indexOf[next])
		}
		transitions[i] = row
		if win, ok := l.dfa.Value(sid).Winner(); ok {
			accepts[i] = win
			hasAccept[i] = true
		}
	}
	return transitions, accepts, hasAccept
}

// AtomCount is the number of partitioned input atoms the compiled table's
// transitions are indexed by.
func (l *Lexer) AtomCount() int { return l.partition.NumAtoms() }

func (l *Lexer) bfsStateOrder() ([]fa.StateID, map[fa.StateID]int) {
	order := []fa.StateID{l.start}
	indexOf := map[fa.StateID]int{l.start: 0}
	numAtoms := l.partition.NumAtoms()

	for i := 0; i < len(order); i++ {
		sid := order[i]
		for a := 0; a < numAtoms; a++ {
			next, ok := l.dfa.Next(sid, symbols.AtomID(a))
			if !ok {
				continue
			}
			if _, seen := indexOf[next]; !seen {
				indexOf[next] = len(order)
				order = append(order, next)
			}
		}
	}
	return order, indexOf
}

func (l *Lexer) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Lexer<start=%s atoms=%d states=%d>", l.start, l.partition.NumAtoms(), len(l.dfa.States()))
	return sb.String()
}
