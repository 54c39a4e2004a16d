package checkin

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	const id = "3f0c2a8e-7d1b-4c55-9a0e-5b7f1d2c9e11"
	tests := []struct {
		name    string
		scanned string
		eventID string
		want    bool
	}{
		{"payload", Payload(id), id, true},
		{"bare id", id, id, true},
		{"deep link", "https://alumni.example.org/checkin?event=" + id, id, true},
		{"surrounding whitespace", "  " + id + "\n", id, true},
		{"other event", Payload("another-event"), id, false},
		{"empty scan", "", id, false},
		{"empty event id", Payload(id), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.scanned, tt.eventID))
		})
	}
}

func TestRenderPNG(t *testing.T) {
	png, err := RenderPNG("evt-1", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "expected PNG signature")

	_, err = RenderPNG("", 128)
	assert.Error(t, err)
}
