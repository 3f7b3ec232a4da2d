package us144mkii

import "testing"

func makeFrame(seed byte) [BytesPerFrame]byte {
	var f [BytesPerFrame]byte
	for i := range f {
		f[i] = seed + byte(i)
	}
	return f
}

func TestRoutePlaybackDefaultsArePassthrough(t *testing.T) {
	sel := DefaultRoutingSelectors()
	frame := makeFrame(1)
	src := frame[:]
	dst := make([]byte, BytesPerFrame)

	RoutePlayback(sel, src, dst, 1)

	pair12 := frame[0:6]
	pair34 := frame[6:12]
	if string(dst[0:6]) != string(pair12) {
		t.Fatalf("line out (selector 0) = %v, want source pair 1-2 %v", dst[0:6], pair12)
	}
	if string(dst[6:12]) != string(pair34) {
		t.Fatalf("digital out (selector 1) = %v, want source pair 3-4 %v", dst[6:12], pair34)
	}
}

func TestRoutePlaybackInPlaceSafe(t *testing.T) {
	sel := RoutingSelectors{LineOutSource: 1, DigitalOutSource: 0}
	frame := makeFrame(1)

	inPlace := frame
	RoutePlayback(sel, inPlace[:], inPlace[:], 1)

	separate := frame
	out := make([]byte, BytesPerFrame)
	RoutePlayback(sel, separate[:], out, 1)

	if string(inPlace[:]) != string(out) {
		t.Fatalf("in-place routing diverged from separate-buffer routing:\n in-place %v\n separate %v", inPlace, out)
	}
}

func TestRoutePlaybackMultipleFrames(t *testing.T) {
	sel := DefaultRoutingSelectors()
	const n = 3
	src := make([]byte, n*BytesPerFrame)
	for i := 0; i < n; i++ {
		f := makeFrame(byte(i*16 + 1))
		copy(src[i*BytesPerFrame:], f[:])
	}
	dst := make([]byte, n*BytesPerFrame)
	RoutePlayback(sel, src, dst, n)

	for i := 0; i < n; i++ {
		base := i * BytesPerFrame
		if string(dst[base:base+6]) != string(src[base:base+6]) {
			t.Fatalf("frame %d line out mismatch", i)
		}
		if string(dst[base+6:base+12]) != string(src[base+6:base+12]) {
			t.Fatalf("frame %d digital out mismatch", i)
		}
	}
}

func TestRouteCaptureDefaultsSelectExpectedPairs(t *testing.T) {
	sel := DefaultRoutingSelectors()
	var decoded, routed DecodedBlock
	for f := 0; f < FramesPerDecodeBlock; f++ {
		decoded[f][0] = int32(f*10 + 1) // analog L
		decoded[f][1] = int32(f*10 + 2) // analog R
		decoded[f][2] = int32(f*10 + 3) // digital L
		decoded[f][3] = int32(f*10 + 4) // digital R
	}

	RouteCapture(sel, &decoded, &routed)

	for f := 0; f < FramesPerDecodeBlock; f++ {
		// Capture12Source=0 selects analog.
		if routed[f][0] != decoded[f][0] || routed[f][1] != decoded[f][1] {
			t.Fatalf("frame %d: capture pair 1-2 = %v,%v, want analog %v,%v", f, routed[f][0], routed[f][1], decoded[f][0], decoded[f][1])
		}
		// Capture34Source=1 selects digital.
		if routed[f][2] != decoded[f][2] || routed[f][3] != decoded[f][3] {
			t.Fatalf("frame %d: capture pair 3-4 = %v,%v, want digital %v,%v", f, routed[f][2], routed[f][3], decoded[f][2], decoded[f][3])
		}
	}
}

func TestRouteCaptureBothPairsCanSelectSameSource(t *testing.T) {
	sel := RoutingSelectors{Capture12Source: 0, Capture34Source: 0}
	var decoded, routed DecodedBlock
	decoded[0] = [Channels]int32{100, 200, 300, 400}

	RouteCapture(sel, &decoded, &routed)

	if routed[0][0] != 100 || routed[0][1] != 200 {
		t.Fatalf("pair 1-2 = %v,%v, want analog 100,200", routed[0][0], routed[0][1])
	}
	if routed[0][2] != 100 || routed[0][3] != 200 {
		t.Fatalf("pair 3-4 = %v,%v, want analog 100,200 (both pairs selecting analog)", routed[0][2], routed[0][3])
	}
}
