package us144mkii

// BytesPerFrame is the wire size of one 4-channel, 24-bit-packed audio
// frame: four channels, 3 bytes each, little-endian.
const BytesPerFrame = 12

// Channels is the fixed host/device channel count: this module always
// exposes four host channels to match the device; a host binding that needs
// a stereo view implements the selection above the core.
const Channels = 4

// RoutingSelectors holds the instance's four routing enums. Each field is 0
// or 1, selecting which source pair feeds a destination pair. Defaults:
// LineOut=0, DigitalOut=1, Capture12=0, Capture34=1.
type RoutingSelectors struct {
	LineOutSource    int // 0: pair 1-2, 1: pair 3-4 (playback)
	DigitalOutSource int // 0: pair 1-2, 1: pair 3-4 (playback)
	Capture12Source  int // 0: analog pair (dev ch 0-1), 1: digital pair (dev ch 2-3)
	Capture34Source  int // 0: analog pair, 1: digital pair
}

// DefaultRoutingSelectors returns the instance-creation defaults.
func DefaultRoutingSelectors() RoutingSelectors {
	return RoutingSelectors{
		LineOutSource:    0,
		DigitalOutSource: 1,
		Capture12Source:  0,
		Capture34Source:  1,
	}
}

// RoutePlayback copies n frames of 4-channel audio from src to dst,
// selecting device channels 1-2 (line out) and 3-4 (digital out) from
// source pair 1-2 or 3-4 according to sel.
//
// src and dst may be the same slice (in-place routing): each source frame
// is snapshotted into frame-local temporaries before either destination
// pair is written, so overlapping reads and writes within one frame never
// corrupt each other regardless of which pair is selected for which output.
func RoutePlayback(sel RoutingSelectors, src, dst []byte, n int) {
	for i := 0; i < n; i++ {
		base := i * BytesPerFrame

		// Snapshot the full source frame (all 4 channels, 3 bytes each)
		// before writing anything — required for src == dst safety.
		var frame [BytesPerFrame]byte
		copy(frame[:], src[base:base+BytesPerFrame])

		pair12 := frame[0:6]  // channels 1-2
		pair34 := frame[6:12] // channels 3-4

		if sel.LineOutSource == 0 {
			copy(dst[base+0:base+6], pair12)
		} else {
			copy(dst[base+0:base+6], pair34)
		}

		if sel.DigitalOutSource == 0 {
			copy(dst[base+6:base+12], pair12)
		} else {
			copy(dst[base+6:base+12], pair34)
		}
	}
}

// RouteCapture applies the capture-side routing selection to one decoded
// 8-frame block of 32-bit samples (frames[FramesPerDecodeBlock][Channels]int32).
// Target pair 1-2 and target
// pair 3-4 each independently select the analog pair (decoded channels 0-1)
// or the digital pair (decoded channels 2-3).
func RouteCapture(sel RoutingSelectors, decoded, routed *[FramesPerDecodeBlock][Channels]int32) {
	for f := 0; f < FramesPerDecodeBlock; f++ {
		var frame [Channels]int32
		copy(frame[:], decoded[f][:])

		analog := frame[0:2]
		digital := frame[2:4]

		if sel.Capture12Source == 0 {
			routed[f][0], routed[f][1] = analog[0], analog[1]
		} else {
			routed[f][0], routed[f][1] = digital[0], digital[1]
		}

		if sel.Capture34Source == 0 {
			routed[f][2], routed[f][3] = analog[0], analog[1]
		} else {
			routed[f][2], routed[f][3] = digital[0], digital[1]
		}
	}
}
