package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u8(v uint8) *uint8 { return &v }

// simulateEcho re-tags all fragments as a device read would return them,
// preserving the payload bytes.
func simulateEcho(c ConfigBlob) ConfigBlob {
	frames := c.Frames()
	for i := range frames {
		frames[i] = frames[i].withCommand(CmdRead)
	}
	return NewConfigBlob(frames)
}

func TestTemplateConfigChecksums(t *testing.T) {
	c := TemplateConfig()
	for i, f := range c.Frames() {
		assert.True(t, f.VerifyChecksum(), "fragment %d", i)
		assert.Equal(t, uint8(i), f.Sequence())
		assert.Equal(t, CmdRead, f.Command())
		assert.Equal(t, SubConfig, f.Subcommand())
	}
	assert.Equal(t, EffectFixedOn, c.ActiveEffect())
}

func TestTemplateEffectParamsAllFragmentGroups(t *testing.T) {
	// The factory pairs must line up with effectLoc in every fragment
	// group, not just fragment 4: effects 1-6 (fragment 4), 7-13
	// (fragment 5) and 14-18 (fragment 6).
	c := TemplateConfig()
	for _, n := range []Effect{EffectFixedOn, EffectSnake, EffectPressAct, EffectKaleido, EffectLineWave, EffectNeonStream} {
		brightness, speed, colorful, ok := c.EffectParams(n)
		require.True(t, ok, "effect %d", n)
		assert.LessOrEqual(t, brightness, MaxBrightness, "effect %d", n)
		assert.Equal(t, uint8(4), brightness, "effect %d", n)
		assert.Equal(t, uint8(2), speed, "effect %d", n)
		assert.True(t, colorful, "effect %d", n)
	}
}

func TestApplyEffectChangeFragmentZero(t *testing.T) {
	c, err := TemplateConfig().ApplyEffectChange(EffectRespire, EffectChange{
		Brightness: u8(2),
		Speed:      u8(3),
		Color:      &RGB{R: 255},
	})
	require.NoError(t, err)

	frames := c.Frames()
	f0 := frames[0]
	assert.Equal(t, CmdWrite, f0.Command())
	assert.Equal(t, byte(0x01), f0[offConfirm])
	assert.Equal(t, byte(0x00), f0[offApply])
	assert.Equal(t, byte(EffectRespire), f0[offEffect])
	assert.Equal(t, byte(colorModeCustom), f0[offColorMode])

	brightness, speed, colorful, ok := c.EffectParams(EffectRespire)
	require.True(t, ok)
	assert.Equal(t, uint8(2), brightness)
	assert.Equal(t, uint8(3), speed)
	assert.False(t, colorful, "custom color must win over stored colorful mode")

	for i, f := range frames {
		assert.True(t, f.VerifyChecksum(), "fragment %d", i)
		assert.Equal(t, CmdWrite, f.Command(), "fragment %d", i)
	}
}

func TestApplyEffectChangeDefaultsToStoredParams(t *testing.T) {
	// No brightness/speed/color given: the stored parameter pair is kept,
	// including colorful mode.
	c, err := TemplateConfig().ApplyEffectChange(EffectSnake, EffectChange{})
	require.NoError(t, err)

	brightness, speed, colorful, ok := c.EffectParams(EffectSnake)
	require.True(t, ok)
	assert.Equal(t, uint8(4), brightness)
	assert.Equal(t, uint8(2), speed)
	assert.True(t, colorful)

	f0 := c.Frames()[0]
	assert.Equal(t, byte(colorModeDefault), f0[offColorMode])
}

func TestApplyEffectChangeColorfulForcedOnColorlessEffect(t *testing.T) {
	// Rainbow has no color support, but requesting colorful must still put
	// fragment 0 into custom/colorful mode.
	c, err := TemplateConfig().ApplyEffectChange(EffectRainbow, EffectChange{
		Brightness: u8(2),
		Colorful:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, byte(colorModeCustom), c.Frames()[0][offColorMode])
}

func TestApplyEffectChangeIdempotent(t *testing.T) {
	change := EffectChange{Brightness: u8(1), Speed: u8(4), Colorful: true}

	first, err := TemplateConfig().ApplyEffectChange(EffectFlashAway, change)
	require.NoError(t, err)

	second, err := simulateEcho(first).ApplyEffectChange(EffectFlashAway, change)
	require.NoError(t, err)

	firstFrames := first.Frames()
	secondFrames := second.Frames()
	for i := range firstFrames {
		assert.Equal(t, firstFrames[i], secondFrames[i], "fragment %d", i)
	}
}

func TestApplyForcesApplyFlagToZero(t *testing.T) {
	// A device that already applied a previous write reports the apply
	// flag as 0x01. It must be cleared before the blob is queued again.
	frames := TemplateConfig().Frames()
	frames[0] = frames[0].withByte(offApply, 0x01)
	c, err := NewConfigBlob(frames).ApplyEffectChange(EffectFixedOn, EffectChange{})
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), c.Frames()[0][offApply])
}

func TestApplySelfDefine(t *testing.T) {
	c := TemplateConfig().ApplySelfDefine()
	f0 := c.Frames()[0]
	assert.Equal(t, byte(EffectSelfDefine), f0[offEffect])
	assert.Equal(t, byte(colorModeCustom), f0[offColorMode])
	assert.Equal(t, byte(0x01), f0[offConfirm])
	assert.Equal(t, byte(0x00), f0[offApply])
}

func TestApplySleepScenario(t *testing.T) {
	src := TemplateConfig()
	require.Equal(t, byte(0x00), src.Frames()[1][offSleep])

	c, err := src.ApplySleep(10)
	require.NoError(t, err)

	f1 := c.Frames()[1]
	assert.Equal(t, byte(0x14), f1[offSleep])
	assert.Equal(t, uint8(10), c.SleepMinutes())
	assert.True(t, f1.VerifyChecksum())

	// Everything else in fragment 1 stays untouched: only the command
	// byte, the sleep byte and the recomputed checksum may differ.
	orig := src.Frames()[1]
	for i := 0; i < FrameSize-1; i++ {
		if i == 1 || i == offSleep {
			continue
		}
		assert.Equal(t, orig[i], f1[i], "fragment 1 byte %d", i)
	}
	assert.Equal(t, byte(0x01), c.Frames()[0][offConfirm])
}

func TestApplySleepRejectsInvalid(t *testing.T) {
	for _, m := range []uint8{1, 4, 7, 20, 255} {
		_, err := TemplateConfig().ApplySleep(m)
		assert.Error(t, err, "minutes=%d", m)
	}
}

func TestApplyEffectChangeRejectsOutOfRange(t *testing.T) {
	_, err := TemplateConfig().ApplyEffectChange(EffectRespire, EffectChange{Brightness: u8(5)})
	assert.Error(t, err)
	_, err = TemplateConfig().ApplyEffectChange(EffectRespire, EffectChange{Speed: u8(9)})
	assert.Error(t, err)
	_, err = TemplateConfig().ApplyEffectChange(19, EffectChange{})
	assert.ErrorIs(t, err, ErrUnknownEffect)
}

func TestUntouchedFragmentsOnlyChangeCommand(t *testing.T) {
	src := TemplateConfig()
	c, err := src.ApplyEffectChange(EffectFixedOn, EffectChange{})
	require.NoError(t, err)

	srcFrames := src.Frames()
	outFrames := c.Frames()
	// Fragments 1-3 and 7-9 carry no relevant field for this change.
	for _, i := range []int{1, 2, 3, 7, 8, 9} {
		for off := 0; off < FrameSize-1; off++ {
			if off == 1 {
				assert.Equal(t, byte(CmdWrite), outFrames[i][off], "fragment %d", i)
				continue
			}
			assert.Equal(t, srcFrames[i][off], outFrames[i][off], "fragment %d byte %d", i, off)
		}
	}
}
