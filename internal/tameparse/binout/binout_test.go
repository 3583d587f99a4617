package binout

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dekarrin/tameparse/internal/tameparse/grammar"
	"github.com/dekarrin/tameparse/internal/tameparse/lalr"
)

func buildExprGrammar() grammar.Grammar {
	g := grammar.New()
	g.AddTerm("+")
	g.AddTerm("(")
	g.AddTerm(")")
	g.AddTerm("id")

	g.AddRule("E", []string{"E", "+", "T"})
	g.AddRule("E", []string{"T"})
	g.AddRule("T", []string{"(", "E", ")"})
	g.AddRule("T", []string{"id"})
	return g
}

func symbolIDFunc(gram grammar.Grammar) func(string) uint32 {
	ids := map[string]uint32{}
	var next uint32
	assign := func(names []string) {
		for _, n := range names {
			if _, ok := ids[n]; !ok {
				ids[n] = next
				next++
			}
		}
	}
	assign(gram.Terminals())
	assign([]string{grammar.EndOfInput})
	assign(gram.NonTerminals())
	return func(s string) uint32 { return ids[s] }
}

func Test_Encode_ProducesWellFormedHeaderAndOffsets(t *testing.T) {
	assert := assert.New(t)
	gram := buildExprGrammar()
	table, err := lalr.Build(gram)
	assert.NoError(err)
	assert.Empty(table.Conflicts)

	symID := symbolIDFunc(gram)
	doc := Document{
		LanguageName:           "exprlang",
		GeneratorVersion:       1<<16 | 0<<8 | 0,
		GeneratorVersionString: "1.0.0",
		Strings:                NewStringTable(),
		Parser:                 FromTable(table, symID, nil),
		TerminalNames:          append(append([]string{}, gram.Terminals()...), grammar.EndOfInput),
		NonTerminalNames:       gram.NonTerminals(),
	}
	for _, r := range table.Rules {
		doc.RuleDefinitions = append(doc.RuleDefinitions, r.String())
	}

	data, err := Encode(binary.LittleEndian, doc)
	assert.NoError(err)
	assert.True(len(data) >= (headerWords+offsetWords)*4)

	word := func(i int) uint32 {
		return binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}

	assert.Equal(FormatIndicator, word(0))
	assert.Equal(FormatVersion, word(1))
	assert.NotEqual(reservedWord, word(2), "language name string id should be assigned, not reserved")
	assert.Equal(doc.GeneratorVersion, word(3))
	for i := 5; i < headerWords; i++ {
		assert.Equal(reservedWord, word(i), "header word %d should be reserved", i)
	}

	for i := 0; i < sectionCount; i++ {
		off := word(headerWords + i)
		assert.GreaterOrEqual(off, uint32(headerWords+offsetWords), "section %d offset must point past the fixed tables", i)
	}
	for i := sectionCount; i < offsetWords; i++ {
		assert.Equal(reservedWord, word(headerWords+i), "offset table tail word %d should be reserved", i)
	}
}

func Test_Encode_IsDeterministicAcrossRuns(t *testing.T) {
	assert := assert.New(t)
	gram := buildExprGrammar()
	table, err := lalr.Build(gram)
	assert.NoError(err)
	symID := symbolIDFunc(gram)

	build := func() []byte {
		doc := Document{
			LanguageName:           "exprlang",
			GeneratorVersionString: "1.0.0",
			Strings:                NewStringTable(),
			Parser:                 FromTable(table, symID, nil),
			TerminalNames:          gram.Terminals(),
			NonTerminalNames:       gram.NonTerminals(),
		}
		data, err := Encode(binary.LittleEndian, doc)
		assert.NoError(err)
		return data
	}

	a := build()
	b := build()
	assert.Equal(a, b)
}

func Test_EncodeLexerTransitions_OmitsRejectingEntries(t *testing.T) {
	assert := assert.New(t)
	lt := LexerTable{
		AtomCount: 2,
		Transitions: [][]int32{
			{1, -1},
			{-1, -1},
		},
		AcceptHas: []bool{false, true},
		AcceptSym: []uint32{0, 7},
	}
	words := encodeLexerTransitions(lt)
	// offsets: state 0 starts at 0, state 1 starts at 1 (one entry for
	// state 0's single non-rejecting transition), end offset is 1.
	assert.Equal(uint32(0), words[0])
	assert.Equal(uint32(1), words[1])
	assert.Equal(uint32(1), words[2])
	entry := words[3]
	assert.Equal(uint32(0), entry>>16) // atom 0
	assert.Equal(uint32(1), entry&0xffff)
}

func Test_EncodeActionTable_PacksKindAndTarget(t *testing.T) {
	assert := assert.New(t)
	perState := [][]ActionEntry{
		{{Kind: 0, NextStateOrRule: 5, SymbolID: 3}},
	}
	words := encodeActionTable(perState)
	assert.Equal(uint32(0), words[0])
	assert.Equal(uint32(1), words[1])
	entryWord := words[2]
	assert.Equal(uint32(0), entryWord>>24)
	assert.Equal(uint32(5), entryWord&0x00ffffff)
	assert.Equal(uint32(3), words[3])
}

func Test_StringTable_RoundTripsThroughUTF16Words(t *testing.T) {
	assert := assert.New(t)
	st := NewStringTable()
	id := st.Intern("hi")
	assert.Equal(uint32(0), id)

	words, err := st.encode(binary.LittleEndian)
	assert.NoError(err)
	assert.Equal(uint32(2), words[0], "2 UTF-16 code units for \"hi\"")

	packed := words[1]
	lo := uint16(packed & 0xffff)
	hi := uint16(packed >> 16)
	assert.Equal(uint16('h'), lo)
	assert.Equal(uint16('i'), hi)
}
