package protocol

import "fmt"

// Per-key mode covers 126 LED indices, sent as three single-channel
// planes (R, G, B). Each plane is 9 fragments of 14 channel values; a
// trailer fragment closes the sequence.
const (
	LEDCount = 126

	planeFragments  = 9
	ledsPerFragment = 14
	PerKeyFragments = 3*planeFragments + 1
)

// Plane fragment payloads start with a marker byte; the trailer uses its
// own marker plus a fixed end-of-message pair.
const (
	perKeyPlaneMarker   = 0x0E
	perKeyTrailerMarker = 0x06
	perKeyTrailerHigh   = 0x5A
	perKeyTrailerLow    = 0xA5
)

// ColorMap assigns colors to individual LED indices. The zero value maps
// every LED to black. Indices outside 0-125 are rejected at Set time;
// this is the contract, not a silent drop.
type ColorMap struct {
	colors [LEDCount]RGB
}

// Set assigns a color to one LED index.
func (m *ColorMap) Set(index int, c RGB) error {
	if index < 0 || index >= LEDCount {
		return fmt.Errorf("%w: %d (valid 0-%d)", ErrLEDIndexRange, index, LEDCount-1)
	}
	m.colors[index] = c
	return nil
}

// Get returns the color of one LED index; unset indices are black.
func (m *ColorMap) Get(index int) (RGB, error) {
	if index < 0 || index >= LEDCount {
		return RGB{}, fmt.Errorf("%w: %d (valid 0-%d)", ErrLEDIndexRange, index, LEDCount-1)
	}
	return m.colors[index], nil
}

// BuildPerKeyFrames encodes the color map as the 28-fragment per-key
// sequence: R plane (sequences 0-8), G plane (9-17), B plane (18-26) and
// the trailer (27). Fragment i of a plane carries the channel values for
// LED indices i*14 through i*14+13.
func BuildPerKeyFrames(m *ColorMap) ([]Frame, error) {
	channels := [3]func(RGB) uint8{
		func(c RGB) uint8 { return c.R },
		func(c RGB) uint8 { return c.G },
		func(c RGB) uint8 { return c.B },
	}

	frames := make([]Frame, 0, PerKeyFragments)
	seq := uint8(0)
	for _, channel := range channels {
		for s := 0; s < planeFragments; s++ {
			payload := make([]byte, PayloadSize)
			payload[0] = perKeyPlaneMarker
			for j := 0; j < ledsPerFragment; j++ {
				payload[1+j] = channel(m.colors[s*ledsPerFragment+j])
			}
			f, err := BuildFrame(CmdPerKey, SubPerKey, seq, payload)
			if err != nil {
				return nil, fmt.Errorf("per-key fragment %d: %w", seq, err)
			}
			frames = append(frames, f)
			seq++
		}
	}

	trailer := make([]byte, PayloadSize)
	trailer[0] = perKeyTrailerMarker
	trailer[3] = perKeyTrailerHigh
	trailer[4] = perKeyTrailerLow
	f, err := BuildFrame(CmdPerKey, SubPerKey, seq, trailer)
	if err != nil {
		return nil, fmt.Errorf("per-key trailer: %w", err)
	}
	frames = append(frames, f)
	return frames, nil
}

// DecodePerKeyFrames reconstructs a color map from a per-key frame
// sequence. It is the inverse of BuildPerKeyFrames and exists for raw
// traffic inspection and tests.
func DecodePerKeyFrames(frames []Frame) (*ColorMap, error) {
	if len(frames) != PerKeyFragments {
		return nil, fmt.Errorf("per-key sequence has %d fragments, want %d", len(frames), PerKeyFragments)
	}
	var m ColorMap
	for i, f := range frames {
		if f.Command() != CmdPerKey || f.Subcommand() != SubPerKey {
			return nil, fmt.Errorf("fragment %d is not a per-key fragment", i)
		}
		if int(f.Sequence()) != i {
			return nil, fmt.Errorf("fragment %d carries sequence %d", i, f.Sequence())
		}
		if i == PerKeyFragments-1 {
			if f[4] != perKeyTrailerMarker || f[7] != perKeyTrailerHigh || f[8] != perKeyTrailerLow {
				return nil, fmt.Errorf("trailer markers missing")
			}
			continue
		}
		plane := i / planeFragments
		s := i % planeFragments
		for j := 0; j < ledsPerFragment; j++ {
			v := f[4+1+j]
			led := &m.colors[s*ledsPerFragment+j]
			switch plane {
			case 0:
				led.R = v
			case 1:
				led.G = v
			case 2:
				led.B = v
			}
		}
	}
	return &m, nil
}
