package protocol

import "fmt"

// PaletteFragments is the length of the color palette sequence.
const PaletteFragments = 37

// Custom color slot layout: fragment 1, RGB at payload offsets 8-10,
// active flag at offset 12.
const (
	paletteCustomSlot   = 1
	palOffRed           = 8
	palOffGreen         = 9
	palOffBlue          = 10
	palOffActive        = 12
	paletteActiveMarker = 0xFF
)

// BuildPalette constructs the 37-fragment palette sequence. A non-nil
// custom color is patched into slot 1 and marked active. The firmware
// expects the full palette alongside every effect change, whether or not
// the target effect consumes a custom color, so the sequence is always
// complete.
func BuildPalette(custom *RGB) ([]Frame, error) {
	frames := make([]Frame, 0, PaletteFragments)
	for i := 0; i < PaletteFragments; i++ {
		payload := make([]byte, PayloadSize)
		switch {
		case i < len(paletteTemplate):
			copy(payload, paletteTemplate[i])
		case i == PaletteFragments-1:
			copy(payload, paletteTerminal)
		}
		if i == paletteCustomSlot && custom != nil {
			payload[palOffRed] = custom.R
			payload[palOffGreen] = custom.G
			payload[palOffBlue] = custom.B
			payload[palOffActive] = paletteActiveMarker
		}
		f, err := BuildFrame(CmdColor, SubPalette, uint8(i), payload)
		if err != nil {
			return nil, fmt.Errorf("palette fragment %d: %w", i, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
