// Package binout implements spec component I: the fixed, offset-table,
// word-addressed binary encoding of a compiled lexer/parser pair (spec
// §6.6). Nothing in the retrieval pack writes a table file in this shape —
// the teacher's lex/parse packages are consumed in-process by engine.go,
// never serialized — so the layout here is grounded directly on spec.md's
// byte-for-byte description rather than on any teacher file. The encoding
// primitives it reaches for (fixed-width words via encoding/binary, UTF-16
// code units via golang.org/x/text/encoding/unicode) are the ones
// SPEC_FULL.md calls for: REZI's self-describing tag format (used
// elsewhere by the artifact cache, see internal/tameparse/cache) cannot
// produce this fixed layout, and the teacher never had an occasion to
// import golang.org/x/text at all.
package binout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/dekarrin/tameparse/internal/tameparse/lalr"
	"github.com/dekarrin/tameparse/internal/tameparse/lexer"
	"github.com/dekarrin/tameparse/internal/tameparse/rewrite"
)

// FormatIndicator is the magic word every table file opens with (spec
// §6.6: "a 4-byte format indicator, conventionally the ASCII bytes
// 'TPar'").
const FormatIndicator uint32 = 0x54506172

// FormatVersion is the (major<<8|minor) version of this package's layout.
const FormatVersion uint32 = 0x0100

const reservedWord uint32 = 0xffffffff

// headerWords and offsetWords are the fixed sizes spec §6.6 assigns the
// file's two leading fixed tables.
const headerWords = 16
const offsetWords = 16

// sectionCount is the number of named offset-table entries that actually
// point at data; the remaining offsetWords-sectionCount entries are
// reserved.
const sectionCount = 12

// StringTable interns strings in first-use order and assigns them the
// dense, stable ids spec §6.6 calls "string ids" — a reader locates string
// N by walking the string section sequentially and counting off N
// length-prefixed entries, rather than through a separate index, since
// nothing in spec §6.6 reserves room for one.
type StringTable struct {
	strs []string
	ids  map[string]uint32
}

// NewStringTable returns an empty table.
func NewStringTable() *StringTable {
	return &StringTable{ids: map[string]uint32{}}
}

// Intern returns s's string id, assigning it the next free id on first use.
func (t *StringTable) Intern(s string) uint32 {
	if id, ok := t.ids[s]; ok {
		return id
	}
	id := uint32(len(t.strs))
	t.strs = append(t.strs, s)
	t.ids[s] = id
	return id
}

func (t *StringTable) encode(order binary.ByteOrder) ([]uint32, error) {
	enc := unicodeEncoderFor(order)
	var words []uint32
	for _, s := range t.strs {
		unitWords, err := encodeUTF16Words(enc, s, order)
		if err != nil {
			return nil, fmt.Errorf("binout: encoding string %q: %w", s, err)
		}
		words = append(words, unitWords...)
	}
	return words, nil
}

// encodeUTF16Words transforms s to UTF-16 code units in order's endianness
// (via golang.org/x/text/encoding/unicode) and packs them two-per-word,
// prefixed with the unit count, matching spec §6.6's "length-prefixed
// UTF-16-style words, two 16-bit characters per word."
func encodeUTF16Words(enc *encoding.Encoder, s string, order binary.ByteOrder) ([]uint32, error) {
	utf16Bytes, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	numUnits := len(utf16Bytes) / 2
	words := make([]uint32, 0, 1+(numUnits+1)/2)
	words = append(words, uint32(numUnits))

	for i := 0; i < len(utf16Bytes); i += 4 {
		var chunk [4]byte
		n := copy(chunk[:], utf16Bytes[i:])
		_ = n
		words = append(words, order.Uint32(chunk[:]))
	}
	return words, nil
}

func unicodeEncoderFor(order binary.ByteOrder) *encoding.Encoder {
	if order == binary.BigEndian {
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	}
	return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
}

// ActionEntry is one two-word terminal/nonterminal action table cell (spec
// §6.6: "((kind<<24) | next_state_or_rule, symbol_id)").
type ActionEntry struct {
	Kind            uint8
	NextStateOrRule uint32
	SymbolID        uint32
}

// LexerTable is the dense lexer automaton data the encoder needs: a
// state_count x atom_count transition matrix (-1 = reject) and a parallel
// accept column.
type LexerTable struct {
	AtomCount   int
	Transitions [][]int32
	AcceptWeak  []bool
	AcceptEager []bool
	AcceptHas   []bool
	AcceptSym   []uint32 // symbol id, valid where AcceptHas[i]
}

// ParserTable is the dense LALR table data the encoder needs, already
// flattened to symbol ids by the caller (the package has no symbol-id
// authority of its own; FromTable's symbolID argument supplies one).
type ParserTable struct {
	TerminalActions    [][]ActionEntry
	NonTerminalActions [][]ActionEntry
	GuardEndingStates  []uint32
	RuleSymbolCounts   []uint32
	WeakToStrong       [][2]uint32
}

// Document is everything Encode needs to produce one table file.
type Document struct {
	LanguageName           string
	GeneratorVersion       uint32 // major<<16 | minor<<8 | revision
	GeneratorVersionString string

	Strings *StringTable

	Lexer  LexerTable
	Parser ParserTable

	RuleDefinitions []string // one rendered rule per rule id, e.g. lalr.Rule.String()
	TerminalNames   []string
	NonTerminalNames []string
}

// Encode assembles doc into the byte-for-byte layout spec §6.6 describes,
// using order as the file's fixed word endianness.
func Encode(order binary.ByteOrder, doc Document) ([]byte, error) {
	if doc.Strings == nil {
		doc.Strings = NewStringTable()
	}
	langID := doc.Strings.Intern(doc.LanguageName)
	genVerID := doc.Strings.Intern(doc.GeneratorVersionString)

	symbolMapWords := encodeSymbolMap(doc)
	lexerStateWords := encodeLexerTransitions(doc.Lexer)
	lexerAcceptWords := encodeLexerAccept(doc.Lexer)
	termActionWords := encodeActionTable(doc.Parser.TerminalActions)
	nontermActionWords := encodeActionTable(doc.Parser.NonTerminalActions)
	guardEndingWords := append([]uint32{}, doc.Parser.GuardEndingStates...)
	ruleCountWords := append([]uint32{}, doc.Parser.RuleSymbolCounts...)
	weakToStrongWords := flattenPairs(doc.Parser.WeakToStrong)
	ruleDefWords := encodeNameList(doc.RuleDefinitions, doc.Strings)
	termNameWords := encodeNameList(doc.TerminalNames, doc.Strings)
	nontermNameWords := encodeNameList(doc.NonTerminalNames, doc.Strings)

	// Every other section above may have interned new strings as it went
	// (encodeNameList, encodeSymbolMap); the string table itself must be
	// encoded last so it reflects the final id assignment.
	stringWords, err := doc.Strings.encode(order)
	if err != nil {
		return nil, err
	}

	sections := [][]uint32{
		stringWords,
		symbolMapWords,
		lexerStateWords,
		lexerAcceptWords,
		termActionWords,
		nontermActionWords,
		guardEndingWords,
		ruleCountWords,
		weakToStrongWords,
		ruleDefWords,
		termNameWords,
		nontermNameWords,
	}

	offsets := make([]uint32, offsetWords)
	cursor := uint32(headerWords + offsetWords)
	for i, sec := range sections {
		offsets[i] = cursor
		cursor += uint32(len(sec))
	}
	for i := sectionCount; i < offsetWords; i++ {
		offsets[i] = reservedWord
	}

	header := make([]uint32, headerWords)
	header[0] = FormatIndicator
	header[1] = FormatVersion
	header[2] = langID
	header[3] = doc.GeneratorVersion
	header[4] = genVerID
	for i := 5; i < headerWords; i++ {
		header[i] = reservedWord
	}

	buf := new(bytes.Buffer)
	for _, w := range header {
		if err := binary.Write(buf, order, w); err != nil {
			return nil, err
		}
	}
	for _, w := range offsets {
		if err := binary.Write(buf, order, w); err != nil {
			return nil, err
		}
	}
	for _, sec := range sections {
		for _, w := range sec {
			if err := binary.Write(buf, order, w); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}

func encodeSymbolMap(doc Document) []uint32 {
	// The symbol_map section lists every terminal id followed by every
	// nonterminal id's string-table entry, in that fixed order, so a
	// reader can recover symbol -> name without a separate length table
	// (terminal count is recovered from info_terminal_names' own length).
	out := make([]uint32, 0, len(doc.TerminalNames)+len(doc.NonTerminalNames))
	for _, n := range doc.TerminalNames {
		out = append(out, doc.Strings.Intern(n))
	}
	for _, n := range doc.NonTerminalNames {
		out = append(out, doc.Strings.Intern(n))
	}
	return out
}

// encodeLexerTransitions packs the dense transition matrix as a CSR-style
// sparse table: state_count+1 offsets into a flat entry array, one entry
// per non-rejecting (atom, next_state) pair, each entry
// (atom<<16)|next_state (spec §6.6). A state with no non-rejecting
// transitions at all simply contributes zero entries; 0xffff is reserved for a
// next_state value large enough to need it, never emitted by this encoder
// since spec §7's resource error already rejects lexers over 65534 states.
func encodeLexerTransitions(lt LexerTable) []uint32 {
	stateCount := len(lt.Transitions)
	offsets := make([]uint32, stateCount+1)
	var entries []uint32
	cursor := uint32(0)
	for s := 0; s < stateCount; s++ {
		offsets[s] = cursor
		row := lt.Transitions[s]
		for a := 0; a < lt.AtomCount && a < len(row); a++ {
			next := row[a]
			if next < 0 {
				continue
			}
			entries = append(entries, (uint32(a)<<16)|uint32(next))
			cursor++
		}
	}
	offsets[stateCount] = cursor
	return append(offsets, entries...)
}

// encodeLexerAccept packs one word per state: 0xffffffff for "no accept",
// else the accept symbol id with bit 31 set when the accept is eager.
func encodeLexerAccept(lt LexerTable) []uint32 {
	out := make([]uint32, len(lt.Transitions))
	for i := range out {
		if i >= len(lt.AcceptHas) || !lt.AcceptHas[i] {
			out[i] = reservedWord
			continue
		}
		w := lt.AcceptSym[i] & 0x7fffffff
		if i < len(lt.AcceptEager) && lt.AcceptEager[i] {
			w |= 0x80000000
		}
		out[i] = w
	}
	return out
}

// encodeActionTable packs a per-state action table as state_count+1
// offsets into a flat, two-word-per-entry action array (spec §6.6).
func encodeActionTable(perState [][]ActionEntry) []uint32 {
	stateCount := len(perState)
	offsets := make([]uint32, stateCount+1)
	var entries []uint32
	cursor := uint32(0)
	for s, row := range perState {
		offsets[s] = cursor
		for _, e := range row {
			entries = append(entries, (uint32(e.Kind)<<24)|(e.NextStateOrRule&0x00ffffff), e.SymbolID)
			cursor++
		}
	}
	offsets[stateCount] = cursor
	return append(offsets, entries...)
}

func flattenPairs(pairs [][2]uint32) []uint32 {
	out := make([]uint32, 0, len(pairs)*2)
	for _, p := range pairs {
		out = append(out, p[0], p[1])
	}
	return out
}

func encodeNameList(names []string, st *StringTable) []uint32 {
	out := make([]uint32, len(names))
	for i, n := range names {
		out[i] = st.Intern(n)
	}
	return out
}

// actionKind maps an lalr.ActionKind to its one-byte wire value (the top
// byte of an action entry's first word, see encodeActionTable); kept
// as an explicit table (rather than relying on ActionKind's own iota order)
// so the wire format stays stable even if lalr ever reorders its constants.
func actionKind(k lalr.ActionKind) uint8 {
	switch k {
	case lalr.Shift:
		return 0
	case lalr.Reduce:
		return 1
	case lalr.WeakReduce:
		return 2
	case lalr.GotoKind:
		return 3
	case lalr.GuardKind:
		return 4
	case lalr.Accept:
		return 5
	case lalr.Divert:
		return 6
	default:
		return 0xff
	}
}

// FromTable flattens an assembled, rewritten lalr.Table into the
// ParserTable shape Encode needs, assigning each terminal/nonterminal the
// id symbolID returns for it (the caller's canonical symbol numbering,
// typically the order the grammar declared them in).
func FromTable(table *lalr.Table, symbolID func(sym string) uint32, weak []rewrite.WeakEquivalence) ParserTable {
	terminalActions := make([][]ActionEntry, len(table.States))
	nonTerminalActions := make([][]ActionEntry, len(table.States))

	for _, st := range table.States {
		for _, sym := range st.SortedTerminals() {
			a := st.Terminals[sym]
			entry := ActionEntry{Kind: actionKind(a.Kind), SymbolID: symbolID(sym)}
			switch a.Kind {
			case lalr.Reduce, lalr.WeakReduce:
				if a.Rule != nil {
					entry.NextStateOrRule = uint32(a.Rule.ID)
				}
			default:
				entry.NextStateOrRule = uint32(a.Target)
			}
			terminalActions[st.ID] = append(terminalActions[st.ID], entry)
		}
		for _, sym := range st.SortedNonTerminals() {
			nonTerminalActions[st.ID] = append(nonTerminalActions[st.ID], ActionEntry{
				Kind:            actionKind(lalr.GotoKind),
				NextStateOrRule: uint32(st.NonTerminal[sym]),
				SymbolID:        symbolID(sym),
			})
		}
	}

	ruleCounts := make([]uint32, len(table.Rules))
	for _, r := range table.Rules {
		if r.Production.IsEpsilon() {
			ruleCounts[r.ID] = 0
		} else {
			ruleCounts[r.ID] = uint32(len(r.Production))
		}
	}

	weakPairs := make([][2]uint32, 0, len(weak))
	for _, w := range weak {
		weakPairs = append(weakPairs, [2]uint32{symbolID(w.Weak), symbolID(w.Strong)})
	}

	return ParserTable{
		TerminalActions:    terminalActions,
		NonTerminalActions: nonTerminalActions,
		RuleSymbolCounts:   ruleCounts,
		WeakToStrong:       weakPairs,
	}
}

// Meta is the table file's identifying header data (spec §6.6's language
// name, generator version and version string).
type Meta struct {
	LanguageName           string
	GeneratorVersion       uint32
	GeneratorVersionString string
}

// Writer accumulates a Document across the four emit calls
// internal/tameparse/outstage.Backend requires, then serializes it to bytes
// with Bytes. It is the mandatory backend spec §4.9/§EXPANSION-J names;
// internal/tameparse/outstage.DebugBackend is the other.
type Writer struct {
	order binary.ByteOrder
	doc   Document
}

// NewWriter returns a Writer that encodes in order (typically
// binary.LittleEndian, the host-native choice the teacher's own
// `encoding/binary` callers in `server/dao/sqlite` use).
func NewWriter(order binary.ByteOrder) *Writer {
	return &Writer{order: order, doc: Document{Strings: NewStringTable()}}
}

func (w *Writer) EmitHeader(m Meta) error {
	w.doc.LanguageName = m.LanguageName
	w.doc.GeneratorVersion = m.GeneratorVersion
	w.doc.GeneratorVersionString = m.GeneratorVersionString
	return nil
}

func (w *Writer) EmitLexer(lt LexerTable) error {
	w.doc.Lexer = lt
	return nil
}

func (w *Writer) EmitParser(pt ParserTable, ruleDefs, terminalNames, nonTerminalNames []string) error {
	w.doc.Parser = pt
	w.doc.RuleDefinitions = ruleDefs
	w.doc.TerminalNames = terminalNames
	w.doc.NonTerminalNames = nonTerminalNames
	return nil
}

func (w *Writer) EmitStrings(extra []string) error {
	for _, s := range extra {
		w.doc.Strings.Intern(s)
	}
	return nil
}

// Bytes serializes everything emitted so far into the final table file.
func (w *Writer) Bytes() ([]byte, error) {
	return Encode(w.order, w.doc)
}

// FromLexer flattens a compiled lexer.Lexer into the LexerTable shape
// Encode needs.
func FromLexer(lx *lexer.Lexer, symbolID func(sym string) uint32) LexerTable {
	transitions, accepts, hasAccept := lx.DenseTables()

	lt := LexerTable{
		AtomCount:   lx.AtomCount(),
		Transitions: transitions,
		AcceptHas:   hasAccept,
		AcceptWeak:  make([]bool, len(accepts)),
		AcceptEager: make([]bool, len(accepts)),
		AcceptSym:   make([]uint32, len(accepts)),
	}
	for i, a := range accepts {
		if !hasAccept[i] {
			continue
		}
		lt.AcceptWeak[i] = a.Weak
		lt.AcceptEager[i] = a.Eager
		lt.AcceptSym[i] = symbolID(a.Symbol)
	}
	return lt
}
