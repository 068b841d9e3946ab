package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/void-indexd/internal/chunk"
	"github.com/dshills/void-indexd/internal/chunker"
)

func TestChunk_EmptySource(t *testing.T) {
	assert.Empty(t, chunker.Chunk("empty.go", "go", ""))
	assert.Empty(t, chunker.Chunk("blank.go", "go", "   \n\t\n  "))
}

func TestChunk_GoFunctionsAndTypes(t *testing.T) {
	source := `package sample

type Greeter interface {
	Greet() string
}

type person struct {
	name string
}

func (p person) Greet() string {
	return "hello " + p.name
}

func New(name string) person {
	return person{name: name}
}
`
	records := chunker.Chunk("sample.go", "go", source)
	require.NotEmpty(t, records)

	var sawInterface, sawMethod, sawFunction, sawClass bool
	for _, r := range records {
		require.NoError(t, r.Validate())
		switch r.ChunkType {
		case chunk.Interface:
			sawInterface = true
		case chunk.Method:
			sawMethod = true
		case chunk.Function:
			sawFunction = true
		case chunk.Class:
			sawClass = true
		}
	}
	assert.True(t, sawInterface)
	assert.True(t, sawMethod)
	assert.True(t, sawFunction)
	assert.True(t, sawClass)
}

func TestChunk_PythonFallsToRegex(t *testing.T) {
	source := "class Foo:\n    def bar(self):\n        return 1\n\ndef baz():\n    return 2\n"
	records := chunker.Chunk("sample.py", "python", source)
	require.NotEmpty(t, records)
	for _, r := range records {
		require.NoError(t, r.Validate())
	}
}

func TestChunk_UnknownLanguageFallsBackToWindows(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("some opaque line of data\n")
	}
	records := chunker.Chunk("data.xyz", "xyz", b.String())
	require.NotEmpty(t, records)
	for _, r := range records {
		assert.Equal(t, chunk.CodeBlock, r.ChunkType)
	}
	assert.Equal(t, 1, records[0].StartLine)
}

func TestChunk_NeverOverlaps(t *testing.T) {
	source := `package sample

func A() {
	x := 1
	_ = x
}

func B() {
	y := 2
	_ = y
}
`
	records := chunker.Chunk("sample.go", "go", source)
	for i := 1; i < len(records); i++ {
		assert.GreaterOrEqual(t, records[i].StartLine, records[i-1].EndLine+1)
	}
}

func TestChunk_GroupedTypeDeclNeverOverlaps(t *testing.T) {
	source := `package sample

type (
	A struct {
		X int
	}

	B struct {
		Y int
	}
)
`
	records := chunker.Chunk("sample.go", "go", source)
	require.Len(t, records, 2)
	assert.Less(t, records[0].StartLine, records[1].StartLine)
	for i := 1; i < len(records); i++ {
		assert.GreaterOrEqual(t, records[i].StartLine, records[i-1].EndLine+1)
	}
}
