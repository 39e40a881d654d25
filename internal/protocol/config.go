package protocol

import "fmt"

// ConfigFragments is the number of fragments in the device configuration.
const ConfigFragments = 10

// Frame offsets of the known config fields.
const (
	offConfirm   = 8  // fragment 0: must be 0x01 for a write to take effect
	offApply     = 14 // fragment 0: set to 0x01 by the device after applying
	offEffect    = 15 // fragment 0: active effect number
	offColorMode = 17 // fragment 0: 0x01 custom/colorful, 0x03 default
	offSleep     = 15 // fragment 1: sleep timer, minutes x2
)

const (
	colorModeCustom  = 0x01
	colorModeDefault = 0x03
)

// ConfigBlob is the 10-fragment device configuration. It is a value type:
// every mutator returns a new blob, leaving the source untouched. A blob
// read from the device keeps the READ command tag; mutators re-tag all
// fragments for writing.
type ConfigBlob struct {
	frames [ConfigFragments]Frame
}

// NewConfigBlob wraps 10 fragments obtained from a device read.
func NewConfigBlob(frames [ConfigFragments]Frame) ConfigBlob {
	return ConfigBlob{frames: frames}
}

// TemplateConfig returns the factory default configuration. It stands in
// for the live device state when a config read comes back incomplete.
func TemplateConfig() ConfigBlob {
	var c ConfigBlob
	for i := 0; i < ConfigFragments; i++ {
		f, err := BuildFrame(CmdRead, SubConfig, uint8(i), configTemplate[i])
		if err != nil {
			panic(fmt.Sprintf("protocol: config template fragment %d: %v", i, err))
		}
		c.frames[i] = f
	}
	return c
}

// Frames returns the blob's fragments in sequence order.
func (c ConfigBlob) Frames() [ConfigFragments]Frame {
	return c.frames
}

// ActiveEffect returns the effect number stored in fragment 0.
func (c ConfigBlob) ActiveEffect() Effect {
	return Effect(c.frames[0][offEffect])
}

// SleepMinutes returns the sleep timer in minutes.
func (c ConfigBlob) SleepMinutes() uint8 {
	return c.frames[1][offSleep] / 2
}

// EffectParams reads the brightness and speed pair of an effect that has a
// table entry. ok is false for effects without one.
func (c ConfigBlob) EffectParams(n Effect) (brightness, speed uint8, colorful bool, ok bool) {
	info, err := LookupEffect(n)
	if err != nil {
		return 0, 0, false, false
	}
	frag, off, hasLoc := info.ParamLoc()
	if !hasLoc {
		return 0, 0, false, false
	}
	brightness = c.frames[frag][off]
	speed, colorful = DecodeSpeedByte(c.frames[frag][off+1])
	return brightness, speed, colorful, true
}

// EffectChange carries the optional knobs of an effect change. Nil fields
// keep the value currently stored in the config blob.
type EffectChange struct {
	Brightness *uint8
	Speed      *uint8
	Color      *RGB
	Colorful   bool
}

// prepareWrite re-tags every fragment for writing and normalizes the
// fragment 0 flags: confirm must be 0x01, and the apply flag must go back
// to 0x00. The device sets the apply flag after a write; round-tripping it
// unmodified makes the firmware treat the whole write as a no-op.
func (c ConfigBlob) prepareWrite() ConfigBlob {
	for i := range c.frames {
		c.frames[i] = c.frames[i].withCommand(CmdWrite)
	}
	c.frames[0] = c.frames[0].withByte(offConfirm, 0x01).withByte(offApply, 0x00)
	return c
}

// ForWrite returns a copy of the blob tagged for writing with no other
// changes. Factory reset uses it to push the template back verbatim.
func (c ConfigBlob) ForWrite() ConfigBlob {
	return c.prepareWrite()
}

// ApplyEffectChange returns a copy of the blob reconfigured for effect n.
// Brightness and speed fall back to the values currently in the parameter
// table; colorful mode sticks unless a custom color replaces it. Requesting
// EffectSelfDefine delegates to ApplySelfDefine.
func (c ConfigBlob) ApplyEffectChange(n Effect, change EffectChange) (ConfigBlob, error) {
	if n == EffectSelfDefine {
		return c.ApplySelfDefine(), nil
	}
	info, err := LookupEffect(n)
	if err != nil {
		return c, err
	}
	if change.Brightness != nil && *change.Brightness > MaxBrightness {
		return c, fmt.Errorf("brightness %d out of range 0-%d", *change.Brightness, MaxBrightness)
	}
	if change.Speed != nil && *change.Speed > MaxSpeed {
		return c, fmt.Errorf("speed %d out of range 0-%d", *change.Speed, MaxSpeed)
	}

	out := c.prepareWrite()
	mode := byte(colorModeDefault)
	if change.Color != nil || change.Colorful {
		mode = colorModeCustom
	}
	out.frames[0] = out.frames[0].
		withByte(offEffect, byte(n)).
		withByte(offColorMode, mode)

	frag, off, hasLoc := info.ParamLoc()
	if hasLoc {
		f := out.frames[frag]
		if change.Brightness != nil {
			f = f.withByte(off, *change.Brightness)
		}
		curSpeed, curColorful := DecodeSpeedByte(f[off+1])
		speed := curSpeed
		if change.Speed != nil {
			speed = *change.Speed
		}
		colorful := change.Colorful
		if !colorful {
			// A custom color wins over a previously stored colorful mode.
			colorful = change.Color == nil && curColorful
		}
		f = f.withByte(off+1, EncodeSpeedByte(speed, colorful))
		out.frames[frag] = f
	}
	return out, nil
}

// ApplySelfDefine returns a copy of the blob switched to per-key mode:
// effect 21 with custom color mode, no parameter table entry.
func (c ConfigBlob) ApplySelfDefine() ConfigBlob {
	out := c.prepareWrite()
	out.frames[0] = out.frames[0].
		withByte(offEffect, byte(EffectSelfDefine)).
		withByte(offColorMode, colorModeCustom)
	return out
}

// SleepValues are the timer settings the firmware accepts, in minutes.
// Zero disables the timer.
var SleepValues = []uint8{0, 5, 10, 15}

// ApplySleep returns a copy of the blob with the sleep timer set. The
// wire value is minutes times two.
func (c ConfigBlob) ApplySleep(minutes uint8) (ConfigBlob, error) {
	valid := false
	for _, v := range SleepValues {
		if minutes == v {
			valid = true
			break
		}
	}
	if !valid {
		return c, fmt.Errorf("sleep timer %d not in %v", minutes, SleepValues)
	}
	out := c.prepareWrite()
	out.frames[1] = out.frames[1].withByte(offSleep, minutes*2)
	return out, nil
}
