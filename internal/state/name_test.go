package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlayerName(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		want   string
		wantOK bool
	}{
		{"terminated", []byte("alice\x00garbage"), "alice", true},
		{"empty", []byte{0, 'x', 'y'}, "", true},
		{"terminator at end", []byte("bob\x00"), "bob", true},
		{"no terminator", []byte("carol"), "", false},
		{"nil buffer", nil, "", false},
		{"utf8", []byte("Жора\x00"), "Жора", true},
		{"invalid utf8 replaced", []byte{'a', 0xFF, 'b', 0}, "a�b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PlayerName(tt.buf)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)

			// repeated extraction is stable
			again, okAgain := PlayerName(tt.buf)
			assert.Equal(t, got, again)
			assert.Equal(t, ok, okAgain)
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "alice", DisplayName([]byte("alice\x00")))
	assert.Equal(t, NamePlaceholder, DisplayName([]byte("alice")))
	assert.Equal(t, NamePlaceholder, DisplayName(nil))
}
