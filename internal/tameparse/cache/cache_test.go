package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewKey_IsDeterministicAndCollisionAvoidingOnBoundaries(t *testing.T) {
	assert := assert.New(t)

	a := NewKey([]byte("ab"), 1, "c")
	b := NewKey([]byte("a"), 1, "bc")
	assert.NotEqual(a, b, "length-delimited hashing must not let source/language boundaries shift")

	same := NewKey([]byte("ab"), 1, "c")
	assert.Equal(a, same)
}

func Test_NewKey_DiffersOnGeneratorVersion(t *testing.T) {
	assert := assert.New(t)
	a := NewKey([]byte("grammar"), 1, "go")
	b := NewKey([]byte("grammar"), 2, "go")
	assert.NotEqual(a, b)
}

func Test_Store_PutThenGet_RoundTrips(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	s, err := Open(t.TempDir())
	require.NoError(err)

	key := NewKey([]byte("grammar source"), 7, "go")
	table := []byte{0x01, 0x02, 0x03, 0x04}

	require.NoError(s.Put(key, table))

	entry, err := s.Get(key)
	assert.NoError(err)
	assert.Equal(key, entry.Key)
	assert.Equal(table, entry.Table)
}

func Test_Store_Get_MissReturnsErrMiss(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	s, err := Open(t.TempDir())
	require.NoError(err)

	_, err = s.Get(NewKey([]byte("nothing"), 1, "go"))
	assert.ErrorIs(err, ErrMiss)
}

func Test_Store_Evict_RemovesEntry(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	s, err := Open(t.TempDir())
	require.NoError(err)

	key := NewKey([]byte("grammar"), 1, "go")
	require.NoError(s.Put(key, []byte{0xff}))
	require.NoError(s.Evict(key))

	_, err = s.Get(key)
	assert.ErrorIs(err, ErrMiss)
}

func Test_Store_Evict_MissingKeyIsNotAnError(t *testing.T) {
	require := require.New(t)
	s, err := Open(t.TempDir())
	require.NoError(err)
	require.NoError(s.Evict(NewKey([]byte("never stored"), 1, "go")))
}

func Test_Store_Put_OverwritesExistingEntry(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	s, err := Open(t.TempDir())
	require.NoError(err)

	key := NewKey([]byte("grammar"), 1, "go")
	require.NoError(s.Put(key, []byte{0x01}))
	require.NoError(s.Put(key, []byte{0x02, 0x03}))

	entry, err := s.Get(key)
	assert.NoError(err)
	assert.Equal([]byte{0x02, 0x03}, entry.Table)
}
