package us144mkii

import "github.com/google/gousb"

// DeviceVariant identifies one member of the US-144 family. The US-122MKII
// shares most of the control/feedback protocol but uses a distinct capture
// bit layout; the implementation gates on PID rather than attempting to
// auto-detect the layout.
type DeviceVariant int

const (
	VariantUnknown DeviceVariant = iota
	VariantMKII
	VariantNonMKII
	VariantUS122MKII
)

// VendorID is the TASCAM vendor ID shared by every variant in this family.
const VendorID = gousb.ID(0x0644)

// ProductID returns the USB PID for v, and ok=false for VariantUnknown.
func (v DeviceVariant) ProductID() (gousb.ID, bool) {
	switch v {
	case VariantMKII:
		return 0x8020, true
	case VariantNonMKII:
		return 0x800f, true
	case VariantUS122MKII:
		return 0x8021, true
	default:
		return 0, false
	}
}

// VariantForPID maps a USB PID back to the variant it identifies, or
// VariantUnknown if pid isn't part of this family.
func VariantForPID(pid gousb.ID) DeviceVariant {
	switch pid {
	case 0x8020:
		return VariantMKII
	case 0x800f:
		return VariantNonMKII
	case 0x8021:
		return VariantUS122MKII
	default:
		return VariantUnknown
	}
}

// HasStandardCaptureLayout reports whether v uses the bit-interleaved
// capture layout implemented by DecodeCaptureBlock. The US-122MKII variant
// uses a distinct, undocumented layout and is not supported by this decoder.
func (v DeviceVariant) HasStandardCaptureLayout() bool {
	return v == VariantMKII || v == VariantNonMKII
}

// String renders a human-readable variant name for logging.
func (v DeviceVariant) String() string {
	switch v {
	case VariantMKII:
		return "US-144MKII"
	case VariantNonMKII:
		return "US-144 (non-MKII)"
	case VariantUS122MKII:
		return "US-122MKII"
	default:
		return "unknown"
	}
}
