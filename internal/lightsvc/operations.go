package lightsvc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openaula/aulactl/internal/protocol"
)

// SetEffectRequest selects a built-in effect with optional overrides. Nil
// fields keep whatever the device currently stores for that effect.
type SetEffectRequest struct {
	Effect     protocol.Effect
	Brightness *uint8
	Speed      *uint8
	Color      *protocol.RGB
	Colorful   bool
}

// SetEffect switches the keyboard to a built-in effect. The current config
// is read first so untouched fragments round-trip unchanged; when the read
// comes back short the factory template stands in. The palette is always
// rewritten in full because the firmware treats it as one unit.
func (s *Service) SetEffect(ctx context.Context, req SetEffectRequest) (*Outcome, error) {
	info, err := protocol.LookupEffect(req.Effect)
	if err != nil {
		return nil, err
	}
	if req.Color != nil && !info.Color {
		return nil, fmt.Errorf("effect %q does not take a custom color", info.Name)
	}
	if req.Colorful && !info.Colorful() {
		return nil, fmt.Errorf("effect %q does not support colorful mode", info.Name)
	}

	t, err := s.begin("set-effect")
	if err != nil {
		return nil, err
	}
	defer t.end()
	t.log.Info("applying effect", zap.String("effect", info.Name))

	blob := t.readOrTemplate(ctx)
	next, err := blob.ApplyEffectChange(req.Effect, protocol.EffectChange{
		Brightness: req.Brightness,
		Speed:      req.Speed,
		Color:      req.Color,
		Colorful:   req.Colorful,
	})
	if err != nil {
		return t.outcome, t.fail(err)
	}
	frames := next.Frames()
	if _, err := t.sendAll(ctx, PhaseWriting, frames[:]); err != nil {
		return t.outcome, t.fail(err)
	}

	palette, err := protocol.BuildPalette(req.Color)
	if err != nil {
		return t.outcome, t.fail(err)
	}
	if _, err := t.sendAll(ctx, PhasePalette, palette); err != nil {
		return t.outcome, t.fail(err)
	}
	if err := t.save(ctx); err != nil {
		return t.outcome, t.fail(err)
	}
	return t.finish(), nil
}

// ApplyPerKey uploads an individual color for every key and switches the
// device into self-define mode so the plane data is what lights up.
func (s *Service) ApplyPerKey(ctx context.Context, colors *protocol.ColorMap) (*Outcome, error) {
	frames, err := protocol.BuildPerKeyFrames(colors)
	if err != nil {
		return nil, err
	}

	t, err := s.begin("per-key")
	if err != nil {
		return nil, err
	}
	defer t.end()
	t.log.Info("applying per-key colors")

	blob := t.readOrTemplate(ctx)
	next := blob.ApplySelfDefine()
	config := next.Frames()
	if _, err := t.sendAll(ctx, PhaseWriting, config[:]); err != nil {
		return t.outcome, t.fail(err)
	}
	if _, err := t.sendAll(ctx, PhasePerKey, frames); err != nil {
		return t.outcome, t.fail(err)
	}
	if err := t.save(ctx); err != nil {
		return t.outcome, t.fail(err)
	}
	return t.finish(), nil
}

// SetSleepTimer changes the idle sleep timeout. Unlike the effect
// operations it has no sensible template fallback: writing the template
// would clobber the user's active effect just to change one byte, so an
// incomplete read aborts the transaction.
func (s *Service) SetSleepTimer(ctx context.Context, minutes uint8) (*Outcome, error) {
	t, err := s.begin("sleep-timer")
	if err != nil {
		return nil, err
	}
	defer t.end()
	t.log.Info("setting sleep timer", zap.Uint8("minutes", minutes))

	blob, ok, err := t.readConfig(ctx)
	if err != nil {
		return t.outcome, t.fail(err)
	}
	if !ok {
		return t.outcome, t.fail(ErrReadIncomplete)
	}
	t.progress("current sleep timer: %d min", blob.SleepMinutes())

	next, err := blob.ApplySleep(minutes)
	if err != nil {
		return t.outcome, t.fail(err)
	}
	frames := next.Frames()
	if _, err := t.sendAll(ctx, PhaseWriting, frames[:]); err != nil {
		return t.outcome, t.fail(err)
	}
	if err := t.save(ctx); err != nil {
		return t.outcome, t.fail(err)
	}
	return t.finish(), nil
}

// FactoryReset pushes the factory template config and palette without
// reading the device first. It is the recovery path when the stored state
// is corrupt enough that reads fail.
func (s *Service) FactoryReset(ctx context.Context) (*Outcome, error) {
	t, err := s.begin("factory-reset")
	if err != nil {
		return nil, err
	}
	defer t.end()
	t.log.Info("restoring factory defaults")

	frames := protocol.TemplateConfig().ForWrite().Frames()
	if _, err := t.sendAll(ctx, PhaseWriting, frames[:]); err != nil {
		return t.outcome, t.fail(err)
	}
	palette, err := protocol.BuildPalette(nil)
	if err != nil {
		return t.outcome, t.fail(err)
	}
	if _, err := t.sendAll(ctx, PhasePalette, palette); err != nil {
		return t.outcome, t.fail(err)
	}
	if err := t.save(ctx); err != nil {
		return t.outcome, t.fail(err)
	}
	return t.finish(), nil
}

// StateReport is a decoded snapshot of the device configuration.
type StateReport struct {
	Config       protocol.ConfigBlob
	Effect       protocol.EffectInfo
	Brightness   uint8
	Speed        uint8
	Colorful     bool
	HasParams    bool
	SleepMinutes uint8
}

// ReadState fetches and decodes the current device configuration. An
// incomplete read returns ErrReadIncomplete; there is no fallback because
// the whole point is inspecting the live state.
func (s *Service) ReadState(ctx context.Context) (*StateReport, error) {
	t, err := s.begin("read-state")
	if err != nil {
		return nil, err
	}
	defer t.end()

	blob, ok, err := t.readConfig(ctx)
	if err != nil {
		t.fail(err)
		return nil, err
	}
	if !ok {
		t.fail(ErrReadIncomplete)
		return nil, ErrReadIncomplete
	}
	t.finish()

	report := &StateReport{
		Config:       blob,
		SleepMinutes: blob.SleepMinutes(),
	}
	info, err := protocol.LookupEffect(blob.ActiveEffect())
	if err != nil {
		// Unknown stored effect number; report what we can.
		report.Effect = protocol.EffectInfo{Number: blob.ActiveEffect(), Name: "unknown"}
		return report, nil
	}
	report.Effect = info
	if b, sp, colorful, ok := blob.EffectParams(info.Number); ok {
		report.Brightness = b
		report.Speed = sp
		report.Colorful = colorful
		report.HasParams = true
	}
	return report, nil
}

// Raw sends one hand-built frame and reports whether an echo came back.
// It is the escape hatch for poking at undocumented commands.
func (s *Service) Raw(ctx context.Context, f protocol.Frame) (echo protocol.Frame, acked bool, err error) {
	t, err := s.begin("raw")
	if err != nil {
		return protocol.Frame{}, false, err
	}
	defer t.end()

	if err := ctx.Err(); err != nil {
		t.fail(err)
		return protocol.Frame{}, false, err
	}
	if err := s.transport.Send(f); err != nil {
		t.fail(err)
		return protocol.Frame{}, false, fmt.Errorf("send raw frame: %w", err)
	}
	echo, acked, err = s.transport.Receive(s.options.echoTimeout)
	if err != nil {
		t.fail(err)
		return protocol.Frame{}, false, err
	}
	t.finish()
	return echo, acked, nil
}

// readOrTemplate reads the device config, substituting the factory
// template when the read comes back short or errors. Effect and per-key
// writes prefer a slightly stale baseline over failing outright.
func (t *tx) readOrTemplate(ctx context.Context) protocol.ConfigBlob {
	if t.svc.options.skipRead {
		t.progress("skipping config read, using factory template")
		return protocol.TemplateConfig()
	}
	blob, ok, err := t.readConfig(ctx)
	if err != nil {
		t.log.Warn("config read failed, using factory template", zap.Error(err))
		return protocol.TemplateConfig()
	}
	if !ok {
		t.log.Warn("config read incomplete, using factory template")
		t.progress("read incomplete, falling back to factory template")
		return protocol.TemplateConfig()
	}
	return blob
}
