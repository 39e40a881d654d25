// Package hidsvc discovers and opens the keyboard's vendor HID collection
// and exposes the raw fragment transport consumed by the lighting
// transaction sequencer.
package hidsvc

import (
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sstallion/go-hid"
	"go.uber.org/zap"

	"github.com/openaula/aulactl/internal/protocol"
)

var ErrDeviceNotFound = errors.New("keyboard not found")

// Address identifies one HID collection of a connected keyboard.
type Address struct {
	VendorID  uint16
	ProductID uint16
	Interface int
}

func (a Address) String() string {
	return fmt.Sprintf("%04x:%04x:%d", a.VendorID, a.ProductID, a.Interface)
}

// model pairs a VID/PID with its transport label.
type model struct {
	VendorID  uint16
	ProductID uint16
	Label     string
}

var models = []model{
	{protocol.WiredVendorID, protocol.WiredProductID, "wired"},
	{protocol.WirelessVendorID, protocol.WirelessProductID, "wireless"},
}

// Collection describes one enumerated HID collection, for scan output.
type Collection struct {
	Address    Address
	Mode       string
	Path       string
	UsagePage  uint16
	Usage      uint16
	VendorPage bool
	Product    string
}

// Service enumerates and opens the keyboard. The fragment protocol only
// works on the vendor-defined usage page, so every other collection the
// device exposes (boot keyboard, consumer control) is ignored.
type Service struct {
	log  *zap.Logger
	seen *xsync.MapOf[Address, Collection]
}

func New(log *zap.Logger) *Service {
	return &Service{
		log:  log,
		seen: xsync.NewMapOf[Address, Collection](),
	}
}

// Init initializes the hidapi library. Call Close when done.
func (s *Service) Init() error {
	if err := hid.Init(); err != nil {
		return fmt.Errorf("hidapi init: %w", err)
	}
	return nil
}

func (s *Service) Close() error {
	return hid.Exit()
}

func isVendorPage(page uint16) bool {
	return page >= 0xFF00
}

// Scan enumerates every collection of the known keyboard models,
// including the non-vendor ones, and remembers what it saw.
func (s *Service) Scan() ([]Collection, error) {
	var out []Collection
	for _, m := range models {
		m := m
		err := hid.Enumerate(m.VendorID, m.ProductID, func(info *hid.DeviceInfo) error {
			col := Collection{
				Address: Address{
					VendorID:  info.VendorID,
					ProductID: info.ProductID,
					Interface: info.InterfaceNbr,
				},
				Mode:       m.Label,
				Path:       info.Path,
				UsagePage:  info.UsagePage,
				Usage:      info.Usage,
				VendorPage: isVendorPage(info.UsagePage),
				Product:    info.ProductStr,
			}
			out = append(out, col)
			s.seen.Store(col.Address, col)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("enumerate %s: %w", m.Label, err)
		}
	}
	return out, nil
}

// Open finds the keyboard's vendor collection and opens it. When
// preferPage is non-zero, a collection on exactly that usage page wins;
// otherwise the first vendor-page collection is used, wired before
// wireless.
func (s *Service) Open(preferPage uint16) (*Device, error) {
	var best *Collection
	for _, m := range models {
		m := m
		err := hid.Enumerate(m.VendorID, m.ProductID, func(info *hid.DeviceInfo) error {
			if !isVendorPage(info.UsagePage) {
				return nil
			}
			col := Collection{
				Address: Address{
					VendorID:  info.VendorID,
					ProductID: info.ProductID,
					Interface: info.InterfaceNbr,
				},
				Mode:      m.Label,
				Path:      info.Path,
				UsagePage: info.UsagePage,
				Usage:     info.Usage,
			}
			if preferPage != 0 && info.UsagePage != preferPage {
				// Keep as fallback in case no exact page match exists.
				if best == nil {
					best = &col
				}
				return nil
			}
			if best == nil || (preferPage != 0 && best.UsagePage != preferPage) {
				best = &col
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("enumerate %s: %w", m.Label, err)
		}
		if best != nil && (preferPage == 0 || best.UsagePage == preferPage) {
			break
		}
	}
	if best == nil {
		return nil, ErrDeviceNotFound
	}

	dev, err := hid.OpenPath(best.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s (%s): %w", best.Address, best.Mode, err)
	}
	s.log.Debug("opened device",
		zap.String("addr", best.Address.String()),
		zap.String("mode", best.Mode),
		zap.Uint16("usagePage", best.UsagePage),
	)
	return &Device{
		log:        s.log,
		dev:        dev,
		collection: *best,
	}, nil
}
