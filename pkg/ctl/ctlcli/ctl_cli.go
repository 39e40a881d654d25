// Package ctlcli assembles the aulactl command tree.
package ctlcli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openaula/aulactl/internal/keymap"
	"github.com/openaula/aulactl/internal/protocol"
	"github.com/openaula/aulactl/pkg/ctl"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "aulactl"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type controllerProvider func() *ctl.Controller

func NewRootCmd(configDir string) *cobra.Command {
	cfg := ctl.Config{
		DataDir:     filepath.Join(configDir, "data"),
		PresetsFile: filepath.Join(configDir, "presets.yml"),
	}
	var preferPage uint16
	rootCmd := &cobra.Command{
		Use:   "aulactl",
		Short: "AULA F87 RGB lighting control",
		Long:  `aulactl drives the RGB lighting of AULA F87 keyboards over the vendor HID protocol: built-in effects, per-key colors, sleep timer and factory reset.`,
	}
	var c *ctl.Controller
	provider := func() *ctl.Controller {
		return c
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.PresetsFile, "presets", cfg.PresetsFile, "presets file")
	rootCmd.PersistentFlags().BoolVar(&cfg.Fast, "fast", false, "skip the config read and per-fragment echo waits")
	rootCmd.PersistentFlags().Uint16Var(&preferPage, "page", 0, "prefer a specific vendor usage page (e.g. 0xff00)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", false, "verbose logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg.PreferPage = preferPage
		var err error
		c, err = ctl.NewController(cfg)
		return err
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if c == nil {
			return nil
		}
		return c.Close()
	}
	rootCmd.AddCommand(NewScan(provider))
	rootCmd.AddCommand(NewList(provider))
	rootCmd.AddCommand(NewRead(provider))
	rootCmd.AddCommand(NewEffect(provider))
	rootCmd.AddCommand(NewPerKey(provider))
	rootCmd.AddCommand(NewSleep(provider))
	rootCmd.AddCommand(NewReset(provider))
	rootCmd.AddCommand(NewRaw(provider))
	rootCmd.AddCommand(NewWatch(provider))
	return rootCmd
}

func printProgress(cmd *cobra.Command) func(string) {
	return func(line string) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}

func NewScan(c controllerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Enumerate keyboard HID collections",
		Long:  `Enumerate every HID collection of the supported keyboards, vendor pages and all, and record the devices found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			collections, err := c().Scan()
			if err != nil {
				return err
			}
			if len(collections) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no keyboards found")
				return nil
			}
			w := cmd.OutOrStdout()
			for _, col := range collections {
				marker := " "
				if col.VendorPage {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %s  %-8s page=0x%04x usage=0x%04x  %s\n",
					marker, col.Address, col.Mode, col.UsagePage, col.Usage, col.Product)
			}
			fmt.Fprintln(w, "* = vendor collection used for lighting control")
			return nil
		},
	}
}

func NewList(c controllerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known keyboards",
		Long:  `List every keyboard recorded by previous scans and applies, with the last lighting state pushed to each.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := c().List()
			if err != nil {
				return err
			}
			jsonB, err := json.MarshalIndent(profiles, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
			return nil
		},
	}
}

func NewRead(c controllerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read the current lighting configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c().Read(cmd.Context(), printProgress(cmd))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "effect: %s (%d)\n", report.Effect.Name, report.Effect.Number)
			if report.HasParams {
				fmt.Fprintf(w, "brightness: %d/%d\n", report.Brightness, protocol.MaxBrightness)
				fmt.Fprintf(w, "speed: %d/%d\n", report.Speed, protocol.MaxSpeed)
				fmt.Fprintf(w, "colorful: %v\n", report.Colorful)
			}
			fmt.Fprintf(w, "sleep timer: %d min\n", report.SleepMinutes)
			return nil
		},
	}
}

func NewEffect(c controllerProvider) *cobra.Command {
	var req ctl.EffectRequest
	var brightness, speed int
	cmd := &cobra.Command{
		Use:   "effect <name|number>",
		Short: "Apply a built-in lighting effect",
		Long: `Apply one of the built-in lighting effects by name or wire number.
Run without arguments to list the available effects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				w := cmd.OutOrStdout()
				for _, info := range protocol.Effects() {
					var caps []string
					if info.Speed {
						caps = append(caps, "speed")
					}
					if info.Color {
						caps = append(caps, "color")
					}
					fmt.Fprintf(w, "%2d  %-16s %s\n", info.Number, info.Name, strings.Join(caps, ","))
				}
				return nil
			}
			req.Selector = args[0]
			if cmd.Flags().Changed("brightness") {
				v := uint8(brightness)
				req.Brightness = &v
			}
			if cmd.Flags().Changed("speed") {
				v := uint8(speed)
				req.Speed = &v
			}
			outcome, err := c().SetEffect(cmd.Context(), req, printProgress(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied (%s)\n", outcome.Final)
			return nil
		},
	}
	cmd.Flags().IntVarP(&brightness, "brightness", "b", 0, "brightness 0-4")
	cmd.Flags().IntVarP(&speed, "speed", "s", 0, "animation speed 0-4")
	cmd.Flags().StringVar(&req.Color, "color", "", "custom color as hex RRGGBB")
	cmd.Flags().BoolVar(&req.Colorful, "colorful", false, "cycle through colors instead of a single one")
	return cmd
}

func NewPerKey(c controllerProvider) *cobra.Command {
	var listKeys bool
	cmd := &cobra.Command{
		Use:   "perkey <key:color> [<key:color>...]",
		Short: "Set individual key colors",
		Long: `Upload a color for individual keys or key groups, e.g.
"wasd:ff0000 esc:00ff00 arrows:0000ff". Unlisted keys go dark.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listKeys {
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, "keys:")
				fmt.Fprintln(w, " ", strings.Join(keymap.KeyNames(), " "))
				fmt.Fprintln(w, "groups:")
				for name, keys := range keymap.Groups() {
					fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(keys, " "))
				}
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("no key:color specs given")
			}
			outcome, err := c().ApplyPerKey(cmd.Context(), args, "", printProgress(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied (%s)\n", outcome.Final)
			return nil
		},
	}
	cmd.Flags().BoolVar(&listKeys, "list-keys", false, "list known key names and groups")
	return cmd
}

func NewSleep(c controllerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "sleep <minutes>",
		Short: "Set the idle sleep timer",
		Long:  `Set the idle sleep timer in minutes. Valid values: 0 (off), 5, 10, 15.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var minutes uint8
			if _, err := fmt.Sscanf(args[0], "%d", &minutes); err != nil {
				return fmt.Errorf("invalid minutes %q", args[0])
			}
			outcome, err := c().SetSleepTimer(cmd.Context(), minutes, printProgress(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sleep timer set (%s)\n", outcome.Final)
			return nil
		},
	}
}

func NewReset(c controllerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore factory lighting defaults",
		Long:  `Push the factory configuration and palette without reading the device first. This is the recovery path for corrupted lighting state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := c().FactoryReset(cmd.Context(), printProgress(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "factory defaults restored (%s)\n", outcome.Final)
			return nil
		},
	}
}

func NewRaw(c controllerProvider) *cobra.Command {
	var seq uint8
	cmd := &cobra.Command{
		Use:   "raw <command> <subcommand> [payload-hex]",
		Short: "Send a single raw frame",
		Long:  `Build and send one frame from a command byte, subcommand byte and optional hex payload, then print the echo. For protocol exploration.`,
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			parseByte := func(s string) (uint8, error) {
				var v uint8
				if _, err := fmt.Sscanf(s, "0x%x", &v); err == nil {
					return v, nil
				}
				if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
					return v, nil
				}
				return 0, fmt.Errorf("invalid byte %q", s)
			}
			command, err := parseByte(args[0])
			if err != nil {
				return err
			}
			sub, err := parseByte(args[1])
			if err != nil {
				return err
			}
			var payload []byte
			if len(args) == 3 {
				payload, err = hex.DecodeString(args[2])
				if err != nil {
					return fmt.Errorf("invalid payload hex: %w", err)
				}
			}
			echo, acked, err := c().Raw(cmd.Context(), command, sub, seq, payload)
			if err != nil {
				return err
			}
			if !acked {
				fmt.Fprintln(cmd.OutOrStdout(), "no echo")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "echo: %s\n", hex.EncodeToString(echo[:]))
			return nil
		},
	}
	cmd.Flags().Uint8Var(&seq, "seq", 0, "sequence byte")
	return cmd
}

func NewWatch(c controllerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Apply the active preset and re-apply on changes",
		Long:  `Watch the presets file and keep the keyboard in sync: the active preset is applied on startup and re-applied whenever the file changes. The file is created with defaults when missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c().Watch(cmd.Context(), printProgress(cmd))
		},
	}
}
