package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kenya", "kenya"},
		{"Côte d'Ivoire", "cote d'ivoire"},
		{"  Bosnia  &  Herzegovina ", "bosnia & herzegovina"},
		{"SÃO TOMÉ AND PRÍNCIPE", "sao tome and principe"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FoldName(tt.in), "FoldName(%q)", tt.in)
	}
}

func TestFoldNameEquivalence(t *testing.T) {
	assert.Equal(t, FoldName("Côte d'Ivoire"), FoldName("Cote D'Ivoire"))
	assert.NotEqual(t, FoldName("Niger"), FoldName("Nigeria"))
}
