package protocol

import "fmt"

// USB identifiers for the two known transports of the F87.
const (
	WiredVendorID     uint16 = 0x258A
	WiredProductID    uint16 = 0x010C
	WirelessVendorID  uint16 = 0x3554
	WirelessProductID uint16 = 0xFA09
)

const (
	// ReportID is the vendor output report carrying every fragment.
	ReportID byte = 0x13

	// FrameSize is the fixed size of one fragment on the wire.
	FrameSize = 20

	// PayloadSize is the command-specific payload area inside a fragment.
	PayloadSize = 15
)

// Command selects the fragment's top-level operation.
type Command byte

const (
	CmdRead   Command = 0x44
	CmdWrite  Command = 0x04
	CmdColor  Command = 0x09
	CmdPerKey Command = 0x02
	CmdSave   Command = 0x0A

	// CmdAudio appears in captures of the OEM app's audio-reactive mode.
	// The mode has no confirmed working behavior and is never sent here.
	CmdAudio Command = 0x88
)

// Subcommand qualifies a Command.
type Subcommand byte

const (
	SubConfig  Subcommand = 0x0A
	SubPalette Subcommand = 0x25
	SubPerKey  Subcommand = 0x1C
	SubConfirm Subcommand = 0x01
)

// Frame is one 20-byte HID fragment, the atomic unit of the protocol.
// Frames are immutable values; builders return fresh frames instead of
// mutating shared buffers, so a read snapshot can never alias the copy
// queued for writing.
type Frame [FrameSize]byte

// BuildFrame constructs a fragment with the checksum already computed.
// The payload is zero-padded to PayloadSize bytes; a longer payload is a
// programmer error and is rejected.
func BuildFrame(cmd Command, sub Subcommand, seq uint8, payload []byte) (Frame, error) {
	if len(payload) > PayloadSize {
		return Frame{}, fmt.Errorf("payload is %d bytes, maximum is %d", len(payload), PayloadSize)
	}
	var f Frame
	f[0] = ReportID
	f[1] = byte(cmd)
	f[2] = byte(sub)
	f[3] = seq
	copy(f[4:4+PayloadSize], payload)
	f[FrameSize-1] = Checksum(f[:])
	return f, nil
}

// Checksum returns the sum of bytes 0-18 modulo 256.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b[:FrameSize-1] {
		sum += v
	}
	return sum
}

// VerifyChecksum reports whether the trailing checksum matches the header
// and payload bytes.
func (f Frame) VerifyChecksum() bool {
	return f[FrameSize-1] == Checksum(f[:])
}

// Command returns the fragment's command byte.
func (f Frame) Command() Command { return Command(f[1]) }

// Subcommand returns the fragment's subcommand byte.
func (f Frame) Subcommand() Subcommand { return Subcommand(f[2]) }

// Sequence returns the fragment index within the current message.
func (f Frame) Sequence() uint8 { return f[3] }

// Payload returns a copy of the 15-byte payload area.
func (f Frame) Payload() []byte {
	p := make([]byte, PayloadSize)
	copy(p, f[4:4+PayloadSize])
	return p
}

// withByte returns a copy of f with the byte at offset replaced and the
// checksum recomputed.
func (f Frame) withByte(offset int, v byte) Frame {
	f[offset] = v
	f[FrameSize-1] = Checksum(f[:])
	return f
}

// withCommand returns a copy of f re-tagged with cmd.
func (f Frame) withCommand(cmd Command) Frame {
	return f.withByte(1, byte(cmd))
}
