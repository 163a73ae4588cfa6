package cpp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsDocComment(t *testing.T) {
	testCases := []struct {
		text     string
		expected bool
	}{
		{"/// triple slash", true},
		{"/** javadoc */", true},
		{"//! qt style", true},
		{"/*! qt block */", true},
		{"// plain", false},
		{"/* plain block */", false},
		{"//", false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.text, func(t *testing.T) {
			require.Equal(t, testCase.expected, IsDocComment(testCase.text))
		})
	}
}

func TestBlankLineBreaksCommentBlock(t *testing.T) {
	source := "/// d1\n/// d2\n\n/// d3\nvoid f() {}"
	entities := extractSource(t, DefaultConfig(), source)

	require.Len(t, entities, 1)
	require.NotNil(t, entities[0].Docstring)
	require.Equal(t, "/// d3", *entities[0].Docstring)
}

func TestAdjacentCommentsConcatenated(t *testing.T) {
	source := "/// line one\n/// line two\nvoid f() {}"
	entities := extractSource(t, DefaultConfig(), source)

	require.Len(t, entities, 1)
	require.Equal(t, "/// line one\n/// line two", *entities[0].Docstring)
}

func TestPlainCommentsInterleavedWithDocComments(t *testing.T) {
	source := "/// documented\n// TODO: revisit\n/// more docs\nvoid f() {}"
	entities := extractSource(t, DefaultConfig(), source)

	require.Len(t, entities, 1)
	require.Equal(
		t,
		"/// documented\n// TODO: revisit\n/// more docs",
		*entities[0].Docstring,
	)
}

func TestPlainOnlyCommentBlockIsKept(t *testing.T) {
	source := "// informal note\nvoid f() {}"
	entities := extractSource(t, DefaultConfig(), source)

	require.Len(t, entities, 1)
	require.Equal(t, "// informal note", *entities[0].Docstring)
}

func TestNoAdjacentCommentsYieldsNil(t *testing.T) {
	source := "/// unrelated\n\nvoid f() {}"
	entities := extractSource(t, DefaultConfig(), source)

	require.Len(t, entities, 1)
	require.Nil(t, entities[0].Docstring)
}

func TestDocCommentAttachesToTemplateWrapper(t *testing.T) {
	source := "/// a generic stack\ntemplate<typename T> class Stack { T* data; };"
	entities := extractSource(t, DefaultConfig(), source)

	require.Len(t, entities, 1)
	require.Equal(t, "/// a generic stack", *entities[0].Docstring)
	require.True(t, entities[0].IsTemplated)
}

func TestNormalizeDocComment(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "triple slash lines",
			input:    "/// first\n/// second",
			expected: "first\nsecond",
		},
		{
			name:     "javadoc block",
			input:    "/** brief */",
			expected: "brief",
		},
		{
			name:     "gutter block",
			input:    "/**\n * one\n * two\n */",
			expected: "one\ntwo",
		},
		{
			name:     "qt line style",
			input:    "//! qt note",
			expected: "qt note",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expected, NormalizeDocComment(testCase.input))
		})
	}
}

func TestNormalizedDocstringExtraction(t *testing.T) {
	config := DefaultConfig()
	config.NormalizeDocstrings = true

	source := "/// computes a sum\nint sum(int a, int b) { return a + b; }"
	entities := extractSource(t, config, source)

	require.Len(t, entities, 1)
	require.Equal(t, "computes a sum", *entities[0].Docstring)
}
