// Package protocol implements the AULA F87 vendor HID lighting protocol.
//
// All device communication happens through fixed 20-byte report fragments.
// A lighting change is a multi-phase read-modify-write transaction: the host
// reads the 10-fragment configuration blob, mutates it, writes it back,
// sends a palette or per-key color sequence, and finally asks the firmware
// to commit to flash. The framing and field offsets in this package were
// reverse-engineered from USB traffic captures of the OEM Windows app; none
// of them are documented by the vendor.
package protocol
