package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Effect identifies a built-in lighting effect by its wire number.
type Effect uint8

// Effect numbers understood by the firmware. 19 and 20 do not exist;
// 21 activates the per-key ("self define") color planes.
const (
	EffectFixedOn    Effect = 1
	EffectRespire    Effect = 2
	EffectRainbow    Effect = 3
	EffectFlashAway  Effect = 4
	EffectRaindrops  Effect = 5
	EffectSnake      Effect = 6
	EffectPressAct   Effect = 7
	EffectConverge   Effect = 8
	EffectHorseRace  Effect = 9
	EffectCollision  Effect = 10
	EffectSineWave   Effect = 11
	EffectRipple     Effect = 12
	EffectKaleido    Effect = 13
	EffectLineWave   Effect = 14
	EffectStarlight  Effect = 15
	EffectSurmount   Effect = 16
	EffectDazzle     Effect = 17
	EffectNeonStream Effect = 18
	EffectSelfDefine Effect = 21
)

// paramLoc addresses an effect's 2-byte brightness/speed pair inside the
// config blob: fragment index plus byte offset within the 20-byte frame.
type paramLoc struct {
	Fragment int
	Offset   int
}

// EffectInfo describes one entry of the effect table.
type EffectInfo struct {
	Number Effect
	Name   string

	// Speed reports whether the effect animates and honors a speed level.
	Speed bool
	// Color reports whether the effect accepts a custom single color
	// (as opposed to colorful mode only).
	Color bool

	// loc is unset for EffectSelfDefine, which has no table entry.
	loc    paramLoc
	hasLoc bool
}

// Colorful reports whether the effect can run in colorful (cycling)
// mode. Every effect with a parameter table entry can; the per-key
// planes render stored colors only.
func (e EffectInfo) Colorful() bool {
	return e.hasLoc
}

// ParamLoc returns the (fragment, offset) of the effect's parameter pair,
// or ok=false for effects with no table entry.
func (e EffectInfo) ParamLoc() (fragment, offset int, ok bool) {
	return e.loc.Fragment, e.loc.Offset, e.hasLoc
}

// effectLoc computes the parameter pair location from the wire number.
// Effects 1-6 live in fragment 4, 7-13 in fragment 5, 14-18 in fragment 6.
func effectLoc(n Effect) paramLoc {
	switch {
	case n >= 1 && n <= 6:
		return paramLoc{Fragment: 4, Offset: 7 + int(n-1)*2}
	case n >= 7 && n <= 13:
		return paramLoc{Fragment: 5, Offset: 5 + int(n-7)*2}
	default:
		return paramLoc{Fragment: 6, Offset: 5 + int(n-14)*2}
	}
}

func builtin(n Effect, name string, speed, color bool) EffectInfo {
	return EffectInfo{Number: n, Name: name, Speed: speed, Color: color, loc: effectLoc(n), hasLoc: true}
}

var effectTable = map[Effect]EffectInfo{
	EffectFixedOn:    builtin(EffectFixedOn, "Fixed On", false, true),
	EffectRespire:    builtin(EffectRespire, "Respire", true, true),
	EffectRainbow:    builtin(EffectRainbow, "Rainbow", true, false),
	EffectFlashAway:  builtin(EffectFlashAway, "Flash Away", true, true),
	EffectRaindrops:  builtin(EffectRaindrops, "Raindrops", true, true),
	EffectSnake:      builtin(EffectSnake, "Snake", true, true),
	EffectPressAct:   builtin(EffectPressAct, "Press Action", true, true),
	EffectConverge:   builtin(EffectConverge, "Converge", true, true),
	EffectHorseRace:  builtin(EffectHorseRace, "Horse Race", true, false),
	EffectCollision:  builtin(EffectCollision, "Collision", true, true),
	EffectSineWave:   builtin(EffectSineWave, "Sine Wave", true, true),
	EffectRipple:     builtin(EffectRipple, "Reactive Ripple", true, true),
	EffectKaleido:    builtin(EffectKaleido, "Kaleidoscope", true, false),
	EffectLineWave:   builtin(EffectLineWave, "Line Wave", true, true),
	EffectStarlight:  builtin(EffectStarlight, "Starlight", true, true),
	EffectSurmount:   builtin(EffectSurmount, "Surmount", true, true),
	EffectDazzle:     builtin(EffectDazzle, "Dazzle", true, false),
	EffectNeonStream: builtin(EffectNeonStream, "Neon Stream", true, true),
	EffectSelfDefine: {Number: EffectSelfDefine, Name: "Self Define", Speed: false, Color: true},
}

func init() {
	// The table is keyed by an open map; guard against a missing or stray
	// entry leaking ErrUnknownEffect into the supported range.
	for n := Effect(1); n <= 18; n++ {
		info, ok := effectTable[n]
		if !ok {
			panic(fmt.Sprintf("protocol: effect table is missing entry %d", n))
		}
		if !info.hasLoc {
			panic(fmt.Sprintf("protocol: effect %d has no parameter location", n))
		}
	}
	if info, ok := effectTable[EffectSelfDefine]; !ok || info.hasLoc {
		panic("protocol: self-define entry must exist without a parameter location")
	}
	if len(effectTable) != 19 {
		panic(fmt.Sprintf("protocol: effect table has %d entries, want 19", len(effectTable)))
	}
}

// LookupEffect returns the table entry for n, or ErrUnknownEffect.
func LookupEffect(n Effect) (EffectInfo, error) {
	info, ok := effectTable[n]
	if !ok {
		return EffectInfo{}, fmt.Errorf("%w: %d", ErrUnknownEffect, n)
	}
	return info, nil
}

// ParseEffect resolves a user-supplied effect selector: a wire number or
// a name, matched case-insensitively and ignoring spaces and dashes.
func ParseEffect(s string) (EffectInfo, error) {
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return LookupEffect(Effect(n))
	}
	norm := func(v string) string {
		v = strings.ToLower(v)
		v = strings.ReplaceAll(v, " ", "")
		return strings.ReplaceAll(v, "-", "")
	}
	want := norm(s)
	for _, info := range effectTable {
		if norm(info.Name) == want {
			return info, nil
		}
	}
	return EffectInfo{}, fmt.Errorf("%w: %q", ErrUnknownEffect, s)
}

// Effects returns the table entries ordered by wire number.
func Effects() []EffectInfo {
	out := make([]EffectInfo, 0, len(effectTable))
	for n := Effect(1); n <= 18; n++ {
		out = append(out, effectTable[n])
	}
	out = append(out, effectTable[EffectSelfDefine])
	return out
}
