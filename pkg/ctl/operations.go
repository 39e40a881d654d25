package ctl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openaula/aulactl/internal/hidsvc"
	"github.com/openaula/aulactl/internal/keymap"
	"github.com/openaula/aulactl/internal/lightsvc"
	"github.com/openaula/aulactl/internal/profilesvc"
	"github.com/openaula/aulactl/internal/protocol"
)

// Scan enumerates every HID collection of the known keyboard models and
// records the devices it saw. Enumeration is a single synchronous hidapi
// call, so there is no context to thread through.
func (c *Controller) Scan() ([]hidsvc.Collection, error) {
	collections, err := c.hidSvc.Scan()
	if err != nil {
		return nil, err
	}
	for _, col := range collections {
		if !col.VendorPage {
			continue
		}
		if _, err := c.profileSvc.Touch(col); err != nil {
			c.log.Warn("failed to update device profile", zap.Error(err))
		}
	}
	return collections, nil
}

// List returns the stored records of every keyboard ever seen.
func (c *Controller) List() ([]profilesvc.Profile, error) {
	return c.profileSvc.List()
}

// Read fetches and decodes the live device configuration.
func (c *Controller) Read(ctx context.Context, progress func(string)) (*lightsvc.StateReport, error) {
	svc, dev, err := c.openDevice(progress)
	if err != nil {
		return nil, err
	}
	defer dev.Close()
	return svc.ReadState(ctx)
}

// EffectRequest is a CLI-level effect selection.
type EffectRequest struct {
	Selector   string // effect name or wire number
	Brightness *uint8
	Speed      *uint8
	Color      string // hex RRGGBB, empty for none
	Colorful   bool
	Preset     string // preset name for the profile record, if any
}

// SetEffect applies a built-in effect and records it in the device
// profile.
func (c *Controller) SetEffect(ctx context.Context, req EffectRequest, progress func(string)) (*lightsvc.Outcome, error) {
	info, err := protocol.ParseEffect(req.Selector)
	if err != nil {
		return nil, err
	}
	var color *protocol.RGB
	if req.Color != "" {
		parsed, err := keymap.ParseColor(req.Color)
		if err != nil {
			return nil, err
		}
		color = &parsed
	}

	svc, dev, err := c.openDevice(progress)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	outcome, err := svc.SetEffect(ctx, lightsvc.SetEffectRequest{
		Effect:     info.Number,
		Brightness: req.Brightness,
		Speed:      req.Speed,
		Color:      color,
		Colorful:   req.Colorful,
	})
	if err != nil {
		return outcome, err
	}
	c.recordApplied(dev, profilesvc.AppliedState{
		Effect:     info.Number,
		EffectName: info.Name,
		Brightness: req.Brightness,
		Speed:      req.Speed,
		Color:      color,
		Colorful:   req.Colorful,
		Preset:     req.Preset,
	})
	return outcome, nil
}

// ApplyPerKey resolves key:color specs ("wasd:ff0000", "esc:00ff00") and
// uploads the resulting color planes.
func (c *Controller) ApplyPerKey(ctx context.Context, specs []string, preset string, progress func(string)) (*lightsvc.Outcome, error) {
	colors, resolved, err := keymap.Resolve(specs)
	if err != nil {
		return nil, err
	}
	if resolved == 0 {
		return nil, fmt.Errorf("no keys resolved from %d specs", len(specs))
	}

	svc, dev, err := c.openDevice(progress)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	outcome, err := svc.ApplyPerKey(ctx, colors)
	if err != nil {
		return outcome, err
	}
	c.recordApplied(dev, profilesvc.AppliedState{
		Effect:     protocol.EffectSelfDefine,
		EffectName: "Self Define",
		PerKey:     true,
		Preset:     preset,
	})
	return outcome, nil
}

// SetSleepTimer changes the idle sleep timeout in minutes.
func (c *Controller) SetSleepTimer(ctx context.Context, minutes uint8, progress func(string)) (*lightsvc.Outcome, error) {
	svc, dev, err := c.openDevice(progress)
	if err != nil {
		return nil, err
	}
	defer dev.Close()
	return svc.SetSleepTimer(ctx, minutes)
}

// FactoryReset restores the factory lighting configuration.
func (c *Controller) FactoryReset(ctx context.Context, progress func(string)) (*lightsvc.Outcome, error) {
	svc, dev, err := c.openDevice(progress)
	if err != nil {
		return nil, err
	}
	defer dev.Close()
	return svc.FactoryReset(ctx)
}

// Raw builds a frame from the given command, subcommand, sequence and
// payload bytes, sends it, and returns the echo if one arrives.
func (c *Controller) Raw(ctx context.Context, cmd, sub, seq uint8, payload []byte) (protocol.Frame, bool, error) {
	frame, err := protocol.BuildFrame(protocol.Command(cmd), protocol.Subcommand(sub), seq, payload)
	if err != nil {
		return protocol.Frame{}, false, err
	}
	svc, dev, err := c.openDevice(nil)
	if err != nil {
		return protocol.Frame{}, false, err
	}
	defer dev.Close()
	return svc.Raw(ctx, frame)
}

func (c *Controller) recordApplied(dev *hidsvc.Device, state profilesvc.AppliedState) {
	if err := c.profileSvc.RecordApplied(dev.Address(), state); err != nil {
		c.log.Warn("failed to record applied state", zap.Error(err))
	}
}
