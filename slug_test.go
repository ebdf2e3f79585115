package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Quantum Computing", "quantum-computing"},
		{"  AI Code Generation  ", "ai-code-generation"},
		{"AI: Code-Gen", "ai-code-gen"},
		{"AI Code Gen", "ai-code-gen"},
		{"--Hello, World!--", "hello-world"},
		{"C++ & Go 2025", "c-go-2025"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.input), "Slugify(%q)", tt.input)
	}
}

func TestSlugifyNeverEmpty(t *testing.T) {
	a := Slugify("こんにちは")
	b := Slugify("こんにちは")
	c := Slugify("世界")

	assert.NotEmpty(t, a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^topic-[0-9a-f]{8}$`, a)
}

func TestNormalizeKeyword(t *testing.T) {
	assert.Equal(t, "ai code generation", normalizeKeyword("  AI   Code Generation "))
	assert.Equal(t, normalizeKeyword("Quantum Computing"), normalizeKeyword("quantum computing"))
}
