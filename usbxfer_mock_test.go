package us144mkii

import (
	"errors"
	"sync"

	"us144mkii/internal/usbxfer"
)

var errEndpointClosed = errors.New("us144mkii: mock endpoint has no more queued reads")

// mockEndpoint is a minimal in-memory stand-in for usbxfer.Endpoint: reads
// are served from a fixed queue of canned frames, writes are recorded. Both
// sides are mutex-guarded since the device's stream goroutines and the test
// goroutine observing them run concurrently.
type mockEndpoint struct {
	mu      sync.Mutex
	reads   [][]byte
	readPos int

	writes [][]byte
}

func (e *mockEndpoint) Read(buf []byte) (int, usbxfer.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readPos >= len(e.reads) {
		return 0, usbxfer.StatusENOENT, errEndpointClosed
	}
	n := copy(buf, e.reads[e.readPos])
	e.readPos++
	return n, usbxfer.StatusOK, nil
}

func (e *mockEndpoint) Write(buf []byte) (int, usbxfer.Status, error) {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	e.mu.Lock()
	e.writes = append(e.writes, cp)
	e.mu.Unlock()
	return len(buf), usbxfer.StatusOK, nil
}

func (e *mockEndpoint) writeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.writes)
}

func (e *mockEndpoint) writeAt(i int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes[i]
}

// mockTransport is an in-memory usbxfer.Transport recording every control
// transfer it receives, the way a hardware trace would, without requiring a
// live device.
type mockTransport struct {
	controls []usbxfer.ControlRequest

	handshakeByte byte

	playbackOut mockEndpoint
	feedbackIn  mockEndpoint
	captureIn   mockEndpoint
	midiIn      mockEndpoint
	midiOut     mockEndpoint

	closed bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{handshakeByte: handshakeExpected}
}

func (t *mockTransport) Control(req usbxfer.ControlRequest, data []byte) (int, error) {
	t.controls = append(t.controls, req)
	if req.RequestType == reqVendorRead && req.Request == bReqHandshake && len(data) > 0 {
		data[0] = t.handshakeByte
	}
	return len(data), nil
}

func (t *mockTransport) PlaybackOut() usbxfer.Endpoint { return &t.playbackOut }
func (t *mockTransport) FeedbackIn() usbxfer.Endpoint  { return &t.feedbackIn }
func (t *mockTransport) CaptureIn() usbxfer.Endpoint   { return &t.captureIn }
func (t *mockTransport) MIDIIn() usbxfer.Endpoint      { return &t.midiIn }
func (t *mockTransport) MIDIOut() usbxfer.Endpoint     { return &t.midiOut }

func (t *mockTransport) Close() error {
	t.closed = true
	return nil
}
