package ethdebug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const positionTestSource = "line one\nline two\n\nline four"

// TestPositionResolution verifies byte offsets resolve to 1-based line and column pairs
// across line boundaries, empty lines, and offsets past the end of the file.
func TestPositionResolution(t *testing.T) {
	file := NewSourceFile(0, "test.sol", []byte(positionTestSource))

	tests := []struct {
		offset int
		line   int
		column int
	}{
		{0, 1, 1},
		{4, 1, 5},
		{8, 1, 9},
		{9, 2, 1},
		{17, 2, 9},
		{18, 3, 1},
		{19, 4, 1},
		{27, 4, 9},
		{100, 4, 82},
	}
	for _, test := range tests {
		line, column := file.Position(test.offset)
		assert.EqualValues(t, test.line, line, "offset %d", test.offset)
		assert.EqualValues(t, test.column, column, "offset %d", test.offset)
	}

	assert.EqualValues(t, 4, file.LineCount())
	assert.EqualValues(t, "line two", string(file.LineContents(2)))
	assert.EqualValues(t, "", string(file.LineContents(3)))
	assert.Nil(t, file.LineContents(0))
	assert.Nil(t, file.LineContents(5))
}

const declarationTestSource = `contract Sample {
    constructor(uint256 seed) {
        value = seed;
    }

    function outer(uint256 x) public returns (uint256) {
        return inner(x);
    }

    function inner(uint256 x) internal pure returns (uint256) {
        return x + 1;
    }
}
`

// TestDeclaredFunctionIn verifies function declarations are only recognized when they sit
// at the start of the queried range.
func TestDeclaredFunctionIn(t *testing.T) {
	file := NewSourceFile(0, "Sample.sol", []byte(declarationTestSource))

	outerOffset := strings.Index(declarationTestSource, "function outer")
	innerOffset := strings.Index(declarationTestSource, "function inner")
	constructorOffset := strings.Index(declarationTestSource, "constructor")
	require.GreaterOrEqual(t, outerOffset, 0)
	require.GreaterOrEqual(t, innerOffset, 0)
	require.GreaterOrEqual(t, constructorOffset, 0)

	// A span starting exactly at a declaration resolves its name.
	name, ok := file.declaredFunctionIn(outerOffset, 60)
	require.True(t, ok)
	assert.EqualValues(t, "outer", name)

	name, ok = file.declaredFunctionIn(innerOffset, 60)
	require.True(t, ok)
	assert.EqualValues(t, "inner", name)

	// Constructors resolve under their conventional name.
	name, ok = file.declaredFunctionIn(constructorOffset, 40)
	require.True(t, ok)
	assert.EqualValues(t, "constructor", name)

	// Leading whitespace before the declaration keyword is tolerated.
	name, ok = file.declaredFunctionIn(outerOffset-4, 64)
	require.True(t, ok)
	assert.EqualValues(t, "outer", name)

	// A span starting inside a function body does not claim the next declaration.
	bodyOffset := strings.Index(declarationTestSource, "return inner(x)")
	_, ok = file.declaredFunctionIn(bodyOffset, 120)
	assert.False(t, ok)

	// A span covering no declaration resolves nothing.
	_, ok = file.declaredFunctionIn(bodyOffset, 10)
	assert.False(t, ok)
}
