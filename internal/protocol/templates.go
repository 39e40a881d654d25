package protocol

// Factory default payloads, captured from the OEM app's reset sequence.
// They double as the fallback when the device does not return a complete
// config read: the transaction proceeds from these instead of aborting.

// configTemplate holds the 10 config fragment payloads. Key bytes, given
// as frame offsets (payload offset + 4):
//
//	fragment 0: 8 confirm, 14 apply, 15 active effect, 17 color mode
//	fragment 1: 15 sleep timer (minutes x2)
//	fragments 4-6: per-effect brightness/speed pairs, see effectLoc
var configTemplate = [ConfigFragments][]byte{
	0: {0x06, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x03, 0x00},
	1: {0x06, 0x07, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	2: {0x06, 0x07, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	3: {0x06, 0x07, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	// Parameter pairs default to brightness 4, speed 2, colorful. Their
	// payload offsets follow effectLoc: fragment 4 pairs at 3-14 (effects
	// 1-6), fragment 5 at 1-14 (7-13), fragment 6 at 1-10 (14-18).
	4: {0x06, 0x07, 0x04, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27},
	5: {0x00, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27},
	6: {0x00, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x04, 0x27, 0x00, 0x00, 0x00, 0x00},
	7: {0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	8: {0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	9: {0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
}

// paletteTemplate covers the leading palette slots that carry data in the
// factory capture. Slot 1 is the custom color slot; its RGB lives at
// payload offsets 8-10 with the active flag at offset 12. Slots beyond the
// template are all zero, except the terminal slot 36.
var paletteTemplate = [][]byte{
	0: {0x0E, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00},
	1: {0x0E, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	2: {0x0E, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00},
	3: {0x0E, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00},
	4: {0x0E, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00},
	5: {0x0E, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00},
	6: {0x0E, 0x06, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00},
	7: {0x0E, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00},
}

// paletteTerminal is the slot 36 end-marker payload.
var paletteTerminal = []byte{0x06, 0x00, 0x00, 0x5A, 0xA5, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
