package us144mkii

import (
	"testing"
	"time"
)

func TestEncodeMIDIFramePadsAndTerminates(t *testing.T) {
	frame := EncodeMIDIFrame([]byte{0x90, 0x40, 0x7f})
	want := [MIDIFrameSize]byte{0x90, 0x40, 0x7f, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0x00}
	if frame != want {
		t.Fatalf("EncodeMIDIFrame([0x90,0x40,0x7f]) = % x, want % x", frame, want)
	}
}

func TestEncodeMIDIFrameFullPayload(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	frame := EncodeMIDIFrame(data)
	for i, b := range data {
		if frame[i] != b {
			t.Fatalf("frame[%d] = 0x%02x, want 0x%02x", i, frame[i], b)
		}
	}
	if frame[8] != midiOutputTrailer {
		t.Fatalf("frame[8] = 0x%02x, want trailer 0x%02x", frame[8], midiOutputTrailer)
	}
}

func TestEncodeMIDIFramePanicsOverLongPayload(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("EncodeMIDIFrame with a 9-byte payload did not panic")
		}
	}()
	EncodeMIDIFrame(make([]byte, 9))
}

func TestDecodeMIDIFrameSkipsPadding(t *testing.T) {
	frame := [MIDIFrameSize]byte{0x90, 0x40, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0x00}
	got := DecodeMIDIFrame(frame)
	want := []byte{0x90, 0x40}
	if string(got) != string(want) {
		t.Fatalf("DecodeMIDIFrame = % x, want % x", got, want)
	}
}

func TestMIDIFrameRoundTrip(t *testing.T) {
	data := []byte{0xf0, 0x43, 0x10, 0x4c}
	decoded := DecodeMIDIFrame(EncodeMIDIFrame(data))
	if string(decoded) != string(data) {
		t.Fatalf("round trip = % x, want % x", decoded, data)
	}
}

func TestStartStopMIDIInDeliversDecodedBytes(t *testing.T) {
	d, tr := newTestDevice(t)
	frame := EncodeMIDIFrame([]byte{0x90, 0x40, 0x7f})
	tr.midiIn.reads = [][]byte{frame[:]}

	out := make(chan []byte, 1)
	d.StartMIDIIn(out)
	d.StartMIDIIn(out) // no-op while already active

	select {
	case got := <-out:
		want := []byte{0x90, 0x40, 0x7f}
		if string(got) != string(want) {
			t.Fatalf("received MIDI data = % x, want % x", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("never received decoded MIDI data")
	}

	d.StopMIDIIn()
	d.StopMIDIIn() // no-op, must not block or panic
}

func TestStartStopMIDIOutEncodesAndWrites(t *testing.T) {
	d, tr := newTestDevice(t)

	in := make(chan []byte, 1)
	d.StartMIDIOut(in)
	in <- []byte{0xb0, 0x07, 0x7f}

	waitUntil(t, func() bool { return len(tr.midiOut.writes) > 0 })
	d.StopMIDIOut()

	want := EncodeMIDIFrame([]byte{0xb0, 0x07, 0x7f})
	if string(tr.midiOut.writes[0]) != string(want[:]) {
		t.Fatalf("written frame = % x, want % x", tr.midiOut.writes[0], want)
	}
}
