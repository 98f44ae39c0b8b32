package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanRUC(t *testing.T) {
	assert.Equal(t, "1710034065001", CleanRUC("1710034065001"))
	assert.Equal(t, "1710034065001", CleanRUC("1710034065-001"))
	assert.Equal(t, "1710034065", CleanRUC(" 17.100.340-65 "))
	assert.Equal(t, "", CleanRUC("sin digitos"))
}

func TestIsValidRUC(t *testing.T) {
	tests := []struct {
		name string
		ruc  string
		want bool
	}{
		{"valid cedula", "1710034065", true},
		{"valid natural person RUC", "1710034065001", true},
		{"formatted RUC", "1710034065-001", true},
		{"wrong check digit", "1710034066", false},
		{"invalid province", "9910034065", false},
		{"zero establishment suffix", "1710034065000", false},
		{"sociedad privada passes", "1790011674001", true},
		{"sociedad publica passes", "1760001550001", true},
		{"too short", "171003406", false},
		{"too long", "17100340650011", false},
		{"empty", "", false},
		{"letters only", "abcdefghij", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidRUC(tt.ruc))
		})
	}
}
