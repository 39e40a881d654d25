package hidsvc

import (
	"fmt"
	"time"

	"github.com/sstallion/go-hid"
	"go.uber.org/zap"

	"github.com/openaula/aulactl/internal/protocol"
)

// Device is an open handle on the keyboard's vendor collection. It moves
// whole fragments: one Send per outbound report, one Receive per inbound
// report. The sequencer above it owns ordering and timing.
type Device struct {
	log        *zap.Logger
	dev        *hid.Device
	collection Collection
}

// Collection returns the collection this handle was opened on.
func (d *Device) Collection() Collection {
	return d.collection
}

// Mode returns "wired" or "wireless".
func (d *Device) Mode() string {
	return d.collection.Mode
}

// Address returns the collection address.
func (d *Device) Address() Address {
	return d.collection.Address
}

// Send writes one fragment.
func (d *Device) Send(f protocol.Frame) error {
	n, err := d.dev.Write(f[:])
	if err != nil {
		return fmt.Errorf("write fragment: %w", err)
	}
	if n != protocol.FrameSize {
		return fmt.Errorf("short write: %d of %d bytes", n, protocol.FrameSize)
	}
	return nil
}

// Receive reads one inbound fragment, waiting up to timeout. ok is false
// when the window elapses without data; that is not an error here, the
// firmware frequently swallows echoes.
func (d *Device) Receive(timeout time.Duration) (protocol.Frame, bool, error) {
	buf := make([]byte, protocol.FrameSize)
	n, err := d.dev.ReadWithTimeout(buf, timeout)
	if err != nil {
		return protocol.Frame{}, false, fmt.Errorf("read fragment: %w", err)
	}
	if n == 0 {
		return protocol.Frame{}, false, nil
	}
	if n < protocol.FrameSize {
		d.log.Debug("short inbound report dropped", zap.Int("bytes", n))
		return protocol.Frame{}, false, nil
	}
	var f protocol.Frame
	copy(f[:], buf)
	return f, true, nil
}

func (d *Device) Close() error {
	return d.dev.Close()
}
