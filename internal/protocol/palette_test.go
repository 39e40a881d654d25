package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPaletteDefault(t *testing.T) {
	frames, err := BuildPalette(nil)
	require.NoError(t, err)
	require.Len(t, frames, PaletteFragments)

	for i, f := range frames {
		assert.Equal(t, CmdColor, f.Command(), "fragment %d", i)
		assert.Equal(t, SubPalette, f.Subcommand(), "fragment %d", i)
		assert.Equal(t, uint8(i), f.Sequence(), "fragment %d", i)
		assert.True(t, f.VerifyChecksum(), "fragment %d", i)
	}

	// Without a custom color the slot 1 active flag stays clear.
	slot1 := frames[paletteCustomSlot].Payload()
	assert.Equal(t, byte(0x00), slot1[palOffActive])

	// Slots past the template are zero payloads, except the terminal.
	for i := len(paletteTemplate); i < PaletteFragments-1; i++ {
		assert.Equal(t, make([]byte, PayloadSize), frames[i].Payload(), "slot %d", i)
	}
	last := frames[PaletteFragments-1].Payload()
	assert.Equal(t, byte(perKeyTrailerMarker), last[0])
	assert.Equal(t, byte(perKeyTrailerHigh), last[3])
	assert.Equal(t, byte(perKeyTrailerLow), last[4])
}

func TestBuildPaletteCustomColor(t *testing.T) {
	frames, err := BuildPalette(&RGB{R: 0x11, G: 0x22, B: 0x33})
	require.NoError(t, err)

	slot1 := frames[paletteCustomSlot].Payload()
	assert.Equal(t, byte(0x11), slot1[palOffRed])
	assert.Equal(t, byte(0x22), slot1[palOffGreen])
	assert.Equal(t, byte(0x33), slot1[palOffBlue])
	assert.Equal(t, byte(paletteActiveMarker), slot1[palOffActive])

	// Only slot 1 differs from the default palette.
	defaults, err := BuildPalette(nil)
	require.NoError(t, err)
	for i := range frames {
		if i == paletteCustomSlot {
			continue
		}
		assert.Equal(t, defaults[i], frames[i], "slot %d", i)
	}
}
