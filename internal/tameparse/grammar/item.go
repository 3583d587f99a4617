package grammar

import (
	"fmt"
	"strings"

	"github.com/dekarrin/tameparse/internal/coll"
)

// LR0Item is a production with a dot marking how much of the right-hand side
// has been matched: NonTerminal -> Left . Right (spec §3.5).
type LR0Item struct {
	NonTerminal string
	Left        []string
	Right       []string
}

// IsEpsilonProduction reports whether the item represents the empty
// production (no symbols on either side of the dot).
func (item LR0Item) IsEpsilonProduction() bool {
	return len(item.Left) == 0 && len(item.Right) == 0
}

func (item LR0Item) Equal(o any) bool {
	other, ok := o.(LR0Item)
	if !ok {
		return false
	}
	if item.NonTerminal != other.NonTerminal {
		return false
	}
	if len(item.Left) != len(other.Left) || len(item.Right) != len(other.Right) {
		return false
	}
	for i := range item.Left {
		if item.Left[i] != other.Left[i] {
			return false
		}
	}
	for i := range item.Right {
		if item.Right[i] != other.Right[i] {
			return false
		}
	}
	return true
}

func (item LR0Item) String() string {
	nonTermPhrase := ""
	if item.NonTerminal != "" {
		nonTermPhrase = fmt.Sprintf("%s -> ", item.NonTerminal)
	}

	left := strings.Join(item.Left, " ")
	right := strings.Join(item.Right, " ")

	if len(left) > 0 {
		left += " "
	}
	if len(right) > 0 {
		right = " " + right
	}

	return fmt.Sprintf("%s%s.%s", nonTermPhrase, left, right)
}

// LR1Item is an LR0Item with an attached lookahead terminal (spec §3.5).
type LR1Item struct {
	LR0Item
	Lookahead string
}

func (item LR1Item) Copy() LR1Item {
	cp := LR1Item{Lookahead: item.Lookahead}
	cp.NonTerminal = item.NonTerminal
	cp.Left = append([]string{}, item.Left...)
	cp.Right = append([]string{}, item.Right...)
	return cp
}

func (item LR1Item) Equal(o any) bool {
	other, ok := o.(LR1Item)
	if !ok {
		return false
	}
	return item.LR0Item.Equal(other.LR0Item) && item.Lookahead == other.Lookahead
}

func (item LR1Item) String() string {
	return fmt.Sprintf("%s, %s", item.LR0Item.String(), item.Lookahead)
}

// CoreSet strips the lookahead from every item in an LR(1) item set,
// returning the LR(0) core set used to detect LALR state-merge candidates
// (spec §4.7 — two LR(1) states merge when their cores are equal).
func CoreSet(s coll.VSet[LR1Item]) coll.VSet[LR0Item] {
	cores := coll.NewVSet[LR0Item]()
	for _, key := range s.Elements() {
		item := s.Get(key)
		cores.Set(item.LR0Item.String(), item.LR0Item)
	}
	return cores
}

// EqualCoreSets reports whether two LR(1) item sets have the same LR(0)
// core, the merge criterion for canonical-LR(1)-to-LALR(1) state merging.
func EqualCoreSets(s1, s2 coll.VSet[LR1Item]) bool {
	return CoreSet(s1).Equal(CoreSet(s2))
}

func MustParseLR0Item(s string) LR0Item {
	i, err := ParseLR0Item(s)
	if err != nil {
		panic(err.Error())
	}
	return i
}

func MustParseLR1Item(s string) LR1Item {
	i, err := ParseLR1Item(s)
	if err != nil {
		panic(err.Error())
	}
	return i
}

// ParseLR0Item parses the "NONTERM -> ALPHA . BETA" textual form, the same
// format LR0Item.String produces and grammar_test.go's fixtures use.
func ParseLR0Item(s string) (LR0Item, error) {
	sides := strings.Split(s, "->")
	if len(sides) != 2 {
		return LR0Item{}, fmt.Errorf("not an item of form 'NONTERM -> ALPHA.BETA': %q", s)
	}
	nonTerminal := strings.TrimSpace(sides[0])
	if nonTerminal == "" {
		return LR0Item{}, fmt.Errorf("empty nonterminal name not allowed for item")
	}

	item := LR0Item{NonTerminal: nonTerminal}

	prodStrings := strings.Split(strings.TrimSpace(sides[1]), ".")
	if len(prodStrings) != 2 {
		return LR0Item{}, fmt.Errorf("item must have exactly one dot")
	}

	item.Left = splitSymbols(prodStrings[0])
	item.Right = splitSymbols(prodStrings[1])

	return item, nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(strings.TrimSpace(s), " ") {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		if strings.ToLower(sym) == "ε" || strings.ToLower(sym) == "epsilon" {
			continue
		}
		out = append(out, sym)
	}
	return out
}

func ParseLR1Item(s string) (LR1Item, error) {
	sides := strings.Split(s, ",")
	if len(sides) != 2 {
		return LR1Item{}, fmt.Errorf("not an item of form 'NONTERM -> ALPHA.BETA, a': %q", s)
	}

	item := LR1Item{}
	var err error
	item.LR0Item, err = ParseLR0Item(sides[0])
	if err != nil {
		return item, err
	}
	item.Lookahead = strings.TrimSpace(sides[1])
	return item, nil
}
