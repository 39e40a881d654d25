package ctl

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openaula/aulactl/internal/configsvc"
)

// Preset is one named lighting setup in the presets file.
type Preset struct {
	Name       string   `yaml:"name"`
	Effect     string   `yaml:"effect,omitempty"`
	Brightness *uint8   `yaml:"brightness,omitempty"`
	Speed      *uint8   `yaml:"speed,omitempty"`
	Color      string   `yaml:"color,omitempty"`
	Colorful   bool     `yaml:"colorful,omitempty"`
	Keys       []string `yaml:"keys,omitempty"`
}

// PresetsConfig is the on-disk presets file. Active names the preset that
// watch mode keeps applied.
type PresetsConfig struct {
	Active  string   `yaml:"active"`
	Presets []Preset `yaml:"presets"`
}

func defaultPresets() PresetsConfig {
	return PresetsConfig{
		Active: "default",
		Presets: []Preset{
			{Name: "default", Effect: "fixed on", Colorful: true},
			{Name: "gaming", Effect: "self define", Keys: []string{"wasd:ff0000", "space:ff0000", "arrows:0000ff"}},
			{Name: "calm", Effect: "respire", Color: "2040a0"},
		},
	}
}

func (p PresetsConfig) find(name string) (Preset, error) {
	for _, preset := range p.Presets {
		if preset.Name == name {
			return preset, nil
		}
	}
	return Preset{}, fmt.Errorf("preset %q not found", name)
}

// ApplyPreset applies one named preset from the config.
func (c *Controller) ApplyPreset(ctx context.Context, cfg PresetsConfig, name string, progress func(string)) error {
	preset, err := cfg.find(name)
	if err != nil {
		return err
	}
	if len(preset.Keys) > 0 {
		_, err = c.ApplyPerKey(ctx, preset.Keys, preset.Name, progress)
		return err
	}
	if preset.Effect == "" {
		return fmt.Errorf("preset %q has neither an effect nor keys", preset.Name)
	}
	_, err = c.SetEffect(ctx, EffectRequest{
		Selector:   preset.Effect,
		Brightness: preset.Brightness,
		Speed:      preset.Speed,
		Color:      preset.Color,
		Colorful:   preset.Colorful,
		Preset:     preset.Name,
	}, progress)
	return err
}

// pushLatest replaces any pending entry in the 1-slot change channel.
// An apply can take seconds; saves landing during one must not leave a
// stale config queued over the newest one.
func pushLatest(changes chan PresetsConfig, cfg PresetsConfig) {
	select {
	case <-changes:
	default:
	}
	changes <- cfg
}

// Watch keeps the keyboard in sync with the presets file: the active
// preset is applied on startup and re-applied on every file change. The
// file is created with defaults when missing.
func (c *Controller) Watch(ctx context.Context, progress func(string)) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.configSvc.Start(ctx)
	})
	group.Go(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.configSvc.Ready():
		}
		changes := make(chan PresetsConfig, 1)
		cfg, err := configsvc.RegisterWriteable(c.configSvc, c.config.PresetsFile, defaultPresets(), func(cfg PresetsConfig, err error) {
			if err != nil {
				// Keep running on the last valid configuration.
				c.log.Error("failed to reload presets", zap.Error(err))
				return
			}
			pushLatest(changes, cfg)
		})
		if err != nil {
			return err
		}
		for {
			if err := c.ApplyPreset(ctx, cfg, cfg.Active, progress); err != nil {
				c.log.Error("failed to apply preset",
					zap.String("preset", cfg.Active), zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cfg = <-changes:
				c.log.Info("presets changed", zap.String("active", cfg.Active))
			}
		}
	})
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
