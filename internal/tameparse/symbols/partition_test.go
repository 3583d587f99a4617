package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Partition_DisjointAndCovering(t *testing.T) {
	testCases := []struct {
		name string
		sets []Set
	}{
		{
			name: "two overlapping ranges",
			sets: []Set{
				NewSet(Range{Lo: 0, Hi: 10}),
				NewSet(Range{Lo: 5, Hi: 15}),
			},
		},
		{
			name: "disjoint ranges",
			sets: []Set{
				NewSet(Range{Lo: 0, Hi: 5}),
				NewSet(Range{Lo: 10, Hi: 15}),
			},
		},
		{
			name: "one set fully contains another",
			sets: []Set{
				NewSet(Range{Lo: 0, Hi: 20}),
				NewSet(Range{Lo: 5, Hi: 10}),
			},
		},
		{
			name: "three way overlap",
			sets: []Set{
				NewSet(Range{Lo: 0, Hi: 10}),
				NewSet(Range{Lo: 5, Hi: 15}),
				NewSet(Range{Lo: 8, Hi: 20}),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			p := NewPartition(tc.sets)

			// atoms pairwise disjoint
			for i := 0; i < len(p.Atoms); i++ {
				for j := i + 1; j < len(p.Atoms); j++ {
					assert.False(p.Atoms[i].Range.Overlaps(p.Atoms[j].Range), "atoms %v and %v overlap", p.Atoms[i], p.Atoms[j])
				}
			}

			// union of atoms == union of original sets
			var union Set
			for _, a := range p.Atoms {
				union = union.Union(NewSet(a.Range))
			}
			var expected Set
			for _, s := range tc.sets {
				expected = expected.Union(s)
			}
			assert.True(union.Equal(expected))

			// every original set is a union of whole atoms
			for si, s := range tc.sets {
				var reconstructed Set
				for _, aid := range p.AtomsOf(si) {
					for _, a := range p.Atoms {
						if a.ID == aid {
							reconstructed = reconstructed.Union(NewSet(a.Range))
						}
					}
				}
				assert.True(reconstructed.Equal(s), "set %d not reconstructed from its atoms", si)
			}
		})
	}
}

func Test_Translator_LookupReturnsUniqueAtom(t *testing.T) {
	assert := assert.New(t)

	sets := []Set{
		NewSet(Range{Lo: 0, Hi: 10}),
		NewSet(Range{Lo: 5, Hi: 15}),
	}
	p := NewPartition(sets)
	tr := NewTranslator(p)

	// every covered symbol resolves to exactly one atom whose range contains it
	for sym := Symbol(0); sym < 15; sym++ {
		id := tr.Lookup(sym)
		assert.NotEqual(NoAtom, id, "symbol %d should be covered", sym)

		var containing int
		for _, a := range p.Atoms {
			if a.Range.Contains(sym) {
				containing++
				assert.Equal(a.ID, id)
			}
		}
		assert.Equal(1, containing)
	}

	// symbol outside all sets is NoAtom
	assert.Equal(NoAtom, tr.Lookup(100))
}

func Test_Set_UnionIntersectComplement(t *testing.T) {
	assert := assert.New(t)

	a := NewSet(Range{Lo: 0, Hi: 10})
	b := NewSet(Range{Lo: 5, Hi: 20})

	union := a.Union(b)
	assert.True(union.Contains(0))
	assert.True(union.Contains(19))
	assert.False(union.Contains(20))

	inter := a.Intersect(b)
	assert.False(inter.Contains(4))
	assert.True(inter.Contains(5))
	assert.True(inter.Contains(9))
	assert.False(inter.Contains(10))

	comp := a.Complement(10)
	assert.True(comp.Empty())

	comp2 := a.Complement(20)
	assert.True(comp2.Contains(10))
	assert.False(comp2.Contains(5))
}
