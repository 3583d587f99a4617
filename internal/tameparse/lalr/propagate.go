package lalr

import (
	"fmt"

	"github.com/dekarrin/tameparse/internal/coll"
	"github.com/dekarrin/tameparse/internal/tameparse/grammar"
)

// dummyLookahead is Knuth-DeRemer's "#" marker (purple dragon book
// Algorithm 4.62): a placeholder lookahead meaning "whatever the kernel
// item this closure was seeded from ends up with."
const dummyLookahead = "#"

type closureEntry struct {
	item grammar.LR0Item
	la   coll.StringSet
}

// closureWithDummy computes CLOSURE({[kernel, #]}) (spec §4.7 phase 2),
// returning every item the closure produces together with the lookahead
// set discovered for it in this single-kernel-item closure (which may
// include the literal "#" marker, meaning "propagated from kernel").
func closureWithDummy(aug *grammar.Grammar, kernel grammar.LR0Item) map[string]closureEntry {
	entries := map[string]closureEntry{kernel.String(): {item: kernel, la: coll.NewStringSet(dummyLookahead)}}

	changed := true
	for changed {
		changed = false
		snapshot := make(map[string]closureEntry, len(entries))
		for k, v := range entries {
			snapshot[k] = v
		}
		for _, entry := range snapshot {
			if len(entry.item.Right) == 0 {
				continue
			}
			next := entry.item.Right[0]
			if next == "" || !aug.IsNonTerminal(next) {
				continue
			}
			beta := entry.item.Right[1:]
			rule := aug.Rule(next)

			for _, la := range entry.la.Elements() {
				var seq coll.StringSet
				if la == dummyLookahead {
					seq = firstBetaDummy(aug, beta)
				} else {
					seq = aug.FirstOfSequence(append(append([]string{}, beta...), la))
				}

				for _, prod := range rule.Productions {
					right := []string(prod)
					if grammar.Production(prod).IsEpsilon() {
						right = nil
					}
					newItem := grammar.LR0Item{NonTerminal: next, Right: right}
					k := newItem.String()

					cur, ok := entries[k]
					if !ok {
						cur = closureEntry{item: newItem, la: coll.NewStringSet()}
						entries[k] = cur
						changed = true
					}
					before := cur.la.Len()
					for _, s := range seq.Elements() {
						cur.la.Add(s)
					}
					if cur.la.Len() != before {
						changed = true
					}
				}
			}
		}
	}
	return entries
}

// firstBetaDummy computes FIRST(beta #): FIRST(beta) if beta cannot derive
// epsilon, else FIRST(beta)\{ε} ∪ {#} — the standard shortcut that avoids
// ever having to register "#" as a real grammar terminal.
func firstBetaDummy(aug *grammar.Grammar, beta []string) coll.StringSet {
	out := coll.NewStringSet()
	betaFirst := aug.FirstOfSequence(beta)
	hasEpsilon := len(beta) == 0 || betaFirst.Has("")
	for _, s := range betaFirst.Elements() {
		if s != "" {
			out.Add(s)
		}
	}
	if hasEpsilon {
		out.Add(dummyLookahead)
	}
	return out
}

type propagationEdge struct {
	fromState, fromItem string
	toState, toItem      string
}

// PropagateLookaheads builds the LALR(1) table via the Knuth-DeRemer
// spontaneous/propagated lookahead algorithm directly (spec §4.7 phase 2),
// rather than Build's canonical-collection-then-merge shortcut. It exists
// so callers that need the propagation trace itself (e.g. a
// --show-propagation diagnostic) have it, and so the two constructions can
// be cross-checked against each other on the same grammar in tests.
func PropagateLookaheads(gram grammar.Grammar) (*Table, error) {
	if err := gram.Validate(); err != nil {
		return nil, err
	}
	aug := gram.Augmented()

	startProd := aug.Rule(aug.StartSymbol()).Productions[0]
	startItem := grammar.LR0Item{NonTerminal: aug.StartSymbol(), Right: []string(startProd)}
	initial := coll.NewVSet[grammar.LR0Item]()
	initial.Set(startItem.String(), startItem)
	initial = aug.LR0_CLOSURE(initial)

	collection := coll.NewVSet[coll.VSet[grammar.LR0Item]]()
	order := []string{initial.StringOrdered()}
	collection.Set(order[0], initial)

	gotoEdges := map[string]map[string]string{}
	symbols := append(append([]string{}, aug.Terminals()...), aug.NonTerminals()...)

	for i := 0; i < len(order); i++ {
		fromKey := order[i]
		I := collection.Get(fromKey)
		for _, sym := range symbols {
			goTo := aug.LR0_GOTO(I, sym)
			if goTo.Len() == 0 {
				continue
			}
			toKey := goTo.StringOrdered()
			if !collection.Has(toKey) {
				collection.Set(toKey, goTo)
				order = append(order, toKey)
			}
			if gotoEdges[fromKey] == nil {
				gotoEdges[fromKey] = map[string]string{}
			}
			gotoEdges[fromKey][sym] = toKey
		}
	}

	stateIDOf := map[string]int{}
	for i, key := range order {
		stateIDOf[key] = i
	}

	kernels := map[string][]grammar.LR0Item{}
	for _, key := range order {
		items := collection.Get(key)
		var kernel []grammar.LR0Item
		for _, ik := range items.SortedElements() {
			item := items.Get(ik)
			if len(item.Left) > 0 || item.Equal(startItem) {
				kernel = append(kernel, item)
			}
		}
		kernels[key] = kernel
	}

	lookaheads := map[string]map[string]coll.StringSet{}
	for _, key := range order {
		lookaheads[key] = map[string]coll.StringSet{}
		for _, item := range kernels[key] {
			lookaheads[key][item.String()] = coll.NewStringSet()
		}
	}
	lookaheads[order[0]][startItem.String()].Add(grammar.EndOfInput)

	var edges []propagationEdge
	for _, key := range order {
		for _, B := range kernels[key] {
			entries := closureWithDummy(&aug, B)
			for _, entry := range entries {
				if len(entry.item.Right) == 0 {
					continue
				}
				Y := entry.item.Right[0]
				if Y == "" {
					continue
				}
				toKey, ok := gotoEdges[key][Y]
				if !ok {
					continue
				}
				targetItem := grammar.LR0Item{
					NonTerminal: entry.item.NonTerminal,
					Left:        append(append([]string{}, entry.item.Left...), Y),
					Right:       append([]string{}, entry.item.Right[1:]...),
				}
				tKey := targetItem.String()
				if lookaheads[toKey][tKey] == nil {
					lookaheads[toKey][tKey] = coll.NewStringSet()
				}
				for _, la := range entry.la.Elements() {
					if la == dummyLookahead {
						edges = append(edges, propagationEdge{key, B.String(), toKey, tKey})
						continue
					}
					lookaheads[toKey][tKey].Add(la)
				}
			}
		}
	}

	changed := true
	for changed {
		changed = false
		for _, e := range edges {
			src := lookaheads[e.fromState][e.fromItem]
			dst := lookaheads[e.toState][e.toItem]
			before := dst.Len()
			for _, s := range src.Elements() {
				dst.Add(s)
			}
			if dst.Len() != before {
				changed = true
			}
		}
	}

	rules, ruleIndex := enumerateRules(gram)
	table := &Table{Grammar: gram, Rules: rules, RuleIndex: ruleIndex, Start: 0}

	itemSetOf := map[string]coll.VSet[grammar.LR1Item]{}
	for _, key := range order {
		kernelLR1 := coll.NewVSet[grammar.LR1Item]()
		for _, B := range kernels[key] {
			for _, la := range lookaheads[key][B.String()].Elements() {
				item := grammar.LR1Item{LR0Item: B, Lookahead: la}
				kernelLR1.Set(item.String(), item)
			}
		}
		itemSetOf[key] = aug.LR1_CLOSURE(kernelLR1)
	}

	for _, key := range order {
		id := stateIDOf[key]
		st := &State{
			ID:          id,
			Core:        grammar.CoreSet(itemSetOf[key]),
			Items:       itemSetOf[key],
			Terminals:   map[string]Action{},
			NonTerminal: map[string]int{},
		}

		for _, sym := range sortedKeys(gotoEdges[key]) {
			toID := stateIDOf[gotoEdges[key][sym]]
			if aug.IsTerminal(sym) {
				setTerminal(table, st, sym, Action{Kind: Shift, Target: toID})
			} else {
				st.NonTerminal[sym] = toID
			}
		}

		for _, ik := range itemSetOf[key].SortedElements() {
			item := itemSetOf[key].Get(ik)
			if len(item.Right) != 0 {
				continue
			}
			if item.NonTerminal == aug.StartSymbol() {
				setTerminal(table, st, grammar.EndOfInput, Action{Kind: Accept})
				continue
			}
			rule := ruleIndex[ruleKey(item.NonTerminal, grammar.Production(item.Left))]
			if rule == nil {
				return nil, fmt.Errorf("lalr: no rule found for reduce item %s", item.String())
			}
			setTerminal(table, st, item.Lookahead, Action{Kind: Reduce, Rule: rule})
		}

		table.States = append(table.States, st)
	}

	return table, nil
}
