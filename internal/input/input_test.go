package input

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_DirectReader_ReadLine_SkipsBlankLines(t *testing.T) {
	assert := assert.New(t)
	r := NewDirectReader(strings.NewReader("\n\n  :compile  \n"))

	line, err := r.ReadLine()
	assert.NoError(err)
	assert.Equal(":compile", line)
}

func Test_DirectReader_ReadLine_ReturnsEOFAtEnd(t *testing.T) {
	assert := assert.New(t)
	r := NewDirectReader(strings.NewReader(":quit\n"))

	line, err := r.ReadLine()
	assert.NoError(err)
	assert.Equal(":quit", line)

	_, err = r.ReadLine()
	assert.ErrorIs(err, io.EOF)
}

func Test_DirectReader_Close_IsANoOp(t *testing.T) {
	r := NewDirectReader(strings.NewReader(""))
	assert.NoError(t, r.Close())
}
