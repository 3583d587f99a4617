// Package regexfe is the regex front end of spec component C: it parses the
// lexer source language's regex syntax and builds NDFA fragments via
// Thompson construction, completing the sketch left unfinished in the
// teacher's internal/ictiobus/lex/regex.go (createSingleSymbolFA,
// createJuxtapositionFA, createKleeneStarFA, createAlternationFA,
// getSingleAcceptState all existed there as stubs calling a Join method
// automaton.go never defined; RegexToNFA itself just returned an empty NFA).
package regexfe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dekarrin/tameparse/internal/tameparse/fa"
	"github.com/dekarrin/tameparse/internal/tameparse/symbols"
)

// Fragment is an NDFA fragment with exactly one accepting state, the
// invariant every Thompson-construction combinator in this package both
// requires of its inputs and preserves in its output (mirrors the teacher's
// getSingleAcceptState precondition).
type Fragment struct {
	nfa    *fa.RangeNFA[bool]
	accept fa.StateID
}

// NFA exposes the underlying automaton, e.g. for joining multiple compiled
// patterns into one lexer-wide NDFA (component D).
func (f Fragment) NFA() *fa.RangeNFA[bool] { return f.nfa }
func (f Fragment) Start() fa.StateID       { return f.nfa.Start() }
func (f Fragment) Accept() fa.StateID      { return f.accept }

// Parse compiles a regex pattern into an NDFA fragment. caseInsensitive
// expands every literal letter into a class containing both cases at parse
// time, per spec §4.3.
func Parse(pattern string, caseInsensitive bool) (Fragment, error) {
	p := &parser{src: []rune(pattern), ci: caseInsensitive}
	frag, err := p.parseAlternation()
	if err != nil {
		return Fragment{}, err
	}
	if p.pos != len(p.src) {
		return Fragment{}, fmt.Errorf("regexfe: unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	return frag, nil
}

type parser struct {
	src    []rune
	pos    int
	ci     bool
	nextID int
}

func (p *parser) newState() string {
	p.nextID++
	return fmt.Sprintf("n%d", p.nextID)
}

func (p *parser) peek() (rune, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *parser) advance() rune {
	r := p.src[p.pos]
	p.pos++
	return r
}

// parseAlternation handles the lowest-precedence `|` operator.
func (p *parser) parseAlternation() (Fragment, error) {
	left, err := p.parseConcat()
	if err != nil {
		return Fragment{}, err
	}
	for {
		c, ok := p.peek()
		if !ok || c != '|' {
			break
		}
		p.advance()
		right, err := p.parseConcat()
		if err != nil {
			return Fragment{}, err
		}
		left = alternate(left, right)
	}
	return left, nil
}

// parseConcat handles implicit juxtaposition.
func (p *parser) parseConcat() (Fragment, error) {
	var frag *Fragment
	for {
		c, ok := p.peek()
		if !ok || c == '|' || c == ')' {
			break
		}
		next, err := p.parseQuantified()
		if err != nil {
			return Fragment{}, err
		}
		if frag == nil {
			frag = &next
		} else {
			joined := juxtapose(*frag, next, p.newState)
			frag = &joined
		}
	}
	if frag == nil {
		return epsilonFragment(p.newState, p.newState), nil
	}
	return *frag, nil
}

// parseQuantified handles a single atom followed by an optional `? + *`.
func (p *parser) parseQuantified() (Fragment, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return Fragment{}, err
	}
	c, ok := p.peek()
	if !ok {
		return atom, nil
	}
	switch c {
	case '*':
		p.advance()
		return kleeneStar(atom, p.newState), nil
	case '+':
		p.advance()
		// e+ == e e*, grounded on the standard rewrite used by regex engines
		// that implement * via Thompson construction directly (no separate
		// one-or-more combinator needed).
		star := kleeneStar(cloneFragment(atom, p.newState), p.newState)
		return juxtapose(atom, star, p.newState), nil
	case '?':
		p.advance()
		return optional(atom, p.newState), nil
	}
	return atom, nil
}

func (p *parser) parseAtom() (Fragment, error) {
	c, ok := p.peek()
	if !ok {
		return Fragment{}, fmt.Errorf("regexfe: unexpected end of pattern")
	}
	switch c {
	case '(':
		p.advance()
		inner, err := p.parseAlternation()
		if err != nil {
			return Fragment{}, err
		}
		c, ok := p.peek()
		if !ok || c != ')' {
			return Fragment{}, fmt.Errorf("regexfe: unclosed group at position %d", p.pos)
		}
		p.advance()
		return inner, nil
	case '.':
		p.advance()
		// any symbol except newline
		set := symbols.Single('\n').Complement(symbols.MaxSymbol)
		return singleSet(set, p.newState), nil
	case '[':
		return p.parseClass()
	case '\\':
		p.advance()
		r, err := p.parseEscape()
		if err != nil {
			return Fragment{}, err
		}
		return p.literalFragment(r), nil
	default:
		p.advance()
		return p.literalFragment(c), nil
	}
}

func (p *parser) literalFragment(r rune) Fragment {
	if p.ci {
		lo, up := foldCase(r)
		if lo != up {
			return singleSet(symbols.Single(symbols.Symbol(lo)).Union(symbols.Single(symbols.Symbol(up))), p.newState)
		}
	}
	return singleSet(symbols.Single(symbols.Symbol(r)), p.newState)
}

func foldCase(r rune) (lower, upper rune) {
	lower, upper = r, r
	if r >= 'A' && r <= 'Z' {
		lower = r + ('a' - 'A')
	} else if r >= 'a' && r <= 'z' {
		upper = r - ('a' - 'A')
	}
	return
}

// parseClass parses `[...]` with ranges, negation, and escapes.
func (p *parser) parseClass() (Fragment, error) {
	p.advance() // consume '['
	negate := false
	if c, ok := p.peek(); ok && c == '^' {
		negate = true
		p.advance()
	}

	var set symbols.Set
	first := true
	for {
		c, ok := p.peek()
		if !ok {
			return Fragment{}, fmt.Errorf("regexfe: unclosed character class")
		}
		if c == ']' && !first {
			p.advance()
			break
		}
		first = false

		var lo rune
		if c == '\\' {
			p.advance()
			var err error
			lo, err = p.parseEscape()
			if err != nil {
				return Fragment{}, err
			}
		} else {
			lo = p.advance()
		}

		hi := lo
		if c2, ok := p.peek(); ok && c2 == '-' {
			save := p.pos
			p.advance()
			if c3, ok := p.peek(); ok && c3 != ']' {
				if c3 == '\\' {
					p.advance()
					var err error
					hi, err = p.parseEscape()
					if err != nil {
						return Fragment{}, err
					}
				} else {
					hi = p.advance()
				}
			} else {
				p.pos = save
			}
		}

		set = set.Union(symbols.NewSet(symbols.Range{Lo: symbols.Symbol(lo), Hi: symbols.Symbol(hi) + 1}))
		if p.ci {
			loLo, loUp := foldCase(lo)
			hiLo, hiUp := foldCase(hi)
			if loLo != loUp || hiLo != hiUp {
				set = set.Union(symbols.NewSet(symbols.Range{Lo: symbols.Symbol(loUp), Hi: symbols.Symbol(hiUp) + 1}))
			}
		}
	}

	if negate {
		set = set.Complement(symbols.MaxSymbol)
	}
	return singleSet(set, p.newState), nil
}

// parseEscape parses the escape sequences of spec §4.3:
// \n \r \t \e \a \f, octal \NNN, hex \xNN, unicode \uNNNN, long octal
// \oNNNNNN, plus a literal escape of any other character (e.g. \\, \.,
// \[, \]).
func (p *parser) parseEscape() (rune, error) {
	c, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("regexfe: dangling escape at end of pattern")
	}
	switch c {
	case 'n':
		p.advance()
		return '\n', nil
	case 'r':
		p.advance()
		return '\r', nil
	case 't':
		p.advance()
		return '\t', nil
	case 'e':
		p.advance()
		return '\x1b', nil
	case 'a':
		p.advance()
		return '\a', nil
	case 'f':
		p.advance()
		return '\f', nil
	case 'x':
		p.advance()
		return p.parseNumericEscape(16, 2)
	case 'u':
		p.advance()
		return p.parseNumericEscape(16, 4)
	case 'o':
		p.advance()
		return p.parseNumericEscape(8, 6)
	default:
		if c >= '0' && c <= '7' {
			return p.parseNumericEscape(8, 3)
		}
		p.advance()
		return c, nil
	}
}

func (p *parser) parseNumericEscape(base, digits int) (rune, error) {
	start := p.pos
	for i := 0; i < digits && p.pos < len(p.src); i++ {
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("regexfe: expected %d base-%d digits at position %d", digits, base, start)
	}
	text := string(p.src[start:p.pos])
	val, err := strconv.ParseInt(strings.TrimLeft(text, "0"), base, 32)
	if err != nil && strings.Trim(text, "0") != "" {
		return 0, fmt.Errorf("regexfe: invalid numeric escape %q: %w", text, err)
	}
	return rune(val), nil
}

// singleSet builds the "for any subexpression r in sigma" base case of
// Thompson construction (spec §4.3): one transition on set from a fresh
// start state to a fresh accept state.
func singleSet(set symbols.Set, newState func() string) Fragment {
	n := fa.NewRangeNFA[bool]()
	start, accept := newState(), newState()
	n.AddState(start, false)
	n.AddState(accept, true)
	n.SetStart(start)
	n.AddTransition(start, set, accept)
	return Fragment{nfa: n, accept: accept}
}

// epsilonFragment builds the empty-string fragment (used for an empty
// concatenation, i.e. an empty pattern or an empty alternative like `a|`).
func epsilonFragment(newState func() string, _ func() string) Fragment {
	n := fa.NewRangeNFA[bool]()
	start, accept := newState(), newState()
	n.AddState(start, false)
	n.AddState(accept, true)
	n.SetStart(start)
	n.AddEpsilon(start, accept)
	return Fragment{nfa: n, accept: accept}
}

// cloneFragment is used only by the `+` rewrite, which needs two
// independently-joinable copies of the same sub-pattern (one used literally,
// one placed under Kleene star).
func cloneFragment(f Fragment, newState func() string) Fragment {
	mapping := map[string]string{}
	rename := func(name string) string {
		if mapped, ok := mapping[name]; ok {
			return mapped
		}
		mapped := newState()
		mapping[name] = mapped
		return mapped
	}
	cloned := f.nfa.Clone(rename)
	return Fragment{nfa: cloned, accept: mapping[f.accept]}
}

// juxtapose implements createJuxtapositionFA: concatenation by epsilon-
// wiring left's old accept state to right's start state. left's old accept
// state stops being accepting; right's accept state becomes the joined
// fragment's accept state.
func juxtapose(left, right Fragment, newState func() string) Fragment {
	prefix := newState() + ":"
	left.nfa.SetValue(left.accept, false)
	left.nfa.Join(right.nfa, prefix, [][2]fa.StateID{{left.accept, right.Start()}}, nil, nil)
	return Fragment{nfa: left.nfa, accept: prefix + right.Accept()}
}

// alternate implements createAlternationFA: a fresh start epsilon-branches
// into both fragments' starts, and both fragments' old accept states
// epsilon-join into a fresh shared accept state.
func alternate(left, right Fragment) Fragment {
	out := fa.NewRangeNFA[bool]()
	start, accept := "start", "accept"
	out.AddState(start, false)
	out.AddState(accept, true)
	out.SetStart(start)

	left.nfa.SetValue(left.accept, false)
	out.Join(left.nfa, "l:", [][2]fa.StateID{{start, left.Start()}},
		[][2]fa.StateID{{left.accept, accept}}, nil)

	right.nfa.SetValue(right.accept, false)
	out.Join(right.nfa, "r:", [][2]fa.StateID{{start, right.Start()}},
		[][2]fa.StateID{{right.accept, accept}}, nil)

	return Fragment{nfa: out, accept: accept}
}

// kleeneStar implements createKleeneStarFA: a fresh start/accept pair
// epsilon-bypasses the inner fragment entirely (zero repetitions), and the
// inner fragment's accept state epsilon-loops back to its own start as well
// as forward to the new accept state.
func kleeneStar(inner Fragment, newState func() string) Fragment {
	out := fa.NewRangeNFA[bool]()
	start, accept := newState(), newState()
	out.AddState(start, false)
	out.AddState(accept, true)
	out.SetStart(start)
	out.AddEpsilon(start, accept)

	inner.nfa.AddEpsilon(inner.accept, inner.nfa.Start())
	inner.nfa.SetValue(inner.accept, false)
	out.Join(inner.nfa, "k:", [][2]fa.StateID{{start, inner.Start()}},
		[][2]fa.StateID{{inner.accept, accept}}, nil)

	return Fragment{nfa: out, accept: accept}
}

// optional implements `e?` as the standard rewrite e|epsilon.
func optional(inner Fragment, newState func() string) Fragment {
	return alternate(inner, epsilonFragment(newState, newState))
}
