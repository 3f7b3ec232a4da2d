package us144mkii

import "testing"

func newTestDevice(t *testing.T) (*Device, *mockTransport) {
	t.Helper()
	tr := newMockTransport()
	playback := newMockPCMRing(4096, 256)
	capture := newMockPCMRing(4096, 256)
	notifier := &mockPeriodNotifier{}

	d, err := NewDevice(tr, VariantMKII, playback, capture, notifier)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	return d, tr
}

func TestNewDeviceRejectsMissingCollaborator(t *testing.T) {
	tr := newMockTransport()
	playback := newMockPCMRing(4096, 256)
	capture := newMockPCMRing(4096, 256)
	notifier := &mockPeriodNotifier{}

	if _, err := NewDevice(nil, VariantMKII, playback, capture, notifier); err == nil {
		t.Fatalf("NewDevice(nil transport) returned nil error")
	}
	if _, err := NewDevice(tr, VariantMKII, nil, capture, notifier); err == nil {
		t.Fatalf("NewDevice(nil playback ring) returned nil error")
	}
	if _, err := NewDevice(tr, VariantMKII, playback, nil, notifier); err == nil {
		t.Fatalf("NewDevice(nil capture ring) returned nil error")
	}
	if _, err := NewDevice(tr, VariantMKII, playback, capture, nil); err == nil {
		t.Fatalf("NewDevice(nil notifier) returned nil error")
	}
}

func TestNewDeviceProbesHandshake(t *testing.T) {
	_, tr := newTestDevice(t)
	found := false
	for _, c := range tr.controls {
		if c.RequestType == reqVendorRead && c.Request == bReqHandshake {
			found = true
		}
	}
	if !found {
		t.Fatalf("NewDevice never issued the handshake probe control transfer")
	}
}

func TestDeviceRoutingRoundTrip(t *testing.T) {
	d, _ := newTestDevice(t)
	if got := d.Routing(); got != DefaultRoutingSelectors() {
		t.Fatalf("initial Routing() = %+v, want defaults %+v", got, DefaultRoutingSelectors())
	}

	sel := RoutingSelectors{LineOutSource: 1, DigitalOutSource: 0, Capture12Source: 1, Capture34Source: 0}
	d.SetRouting(sel)
	if got := d.Routing(); got != sel {
		t.Fatalf("Routing() after SetRouting = %+v, want %+v", got, sel)
	}
}

func TestDevicePrepareRejectsUnsupportedRate(t *testing.T) {
	d, _ := newTestDevice(t)
	if err := d.Prepare(22050); err == nil {
		t.Fatalf("Prepare(22050) returned nil error, want ErrConfig")
	}
	if rate := d.CurrentRate(); rate != 0 {
		t.Fatalf("CurrentRate() = %d after a failed Prepare, want 0", rate)
	}
}

func TestDevicePrepareConfiguresRate(t *testing.T) {
	d, _ := newTestDevice(t)
	if err := d.Prepare(48000); err != nil {
		t.Fatalf("Prepare(48000): %v", err)
	}
	if rate := d.CurrentRate(); rate != 48000 {
		t.Fatalf("CurrentRate() = %d, want 48000", rate)
	}
	if d.Synced() {
		t.Fatalf("Synced() = true immediately after Prepare, want false before any feedback packet")
	}
}

func TestDeviceTriggerStartRequiresPrepare(t *testing.T) {
	d, _ := newTestDevice(t)
	if err := d.TriggerStart(); err == nil {
		t.Fatalf("TriggerStart before Prepare returned nil error, want ErrNotRunning")
	}
}

func TestDeviceTriggerStartStopLifecycle(t *testing.T) {
	d, tr := newTestDevice(t)
	if err := d.Prepare(48000); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	// The feedback and capture-producer loops' first Read call returns a
	// transient status, so those goroutines exit at once; the playback and
	// capture-decode loops run until TriggerStop closes stopCh.
	tr.feedbackIn.reads = nil
	tr.captureIn.reads = nil

	if err := d.TriggerStart(); err != nil {
		t.Fatalf("TriggerStart: %v", err)
	}
	if err := d.TriggerStart(); err != nil {
		t.Fatalf("second TriggerStart (no-op) returned error: %v", err)
	}

	d.TriggerStop()
	d.TriggerStop() // no-op, must not block or panic

	if d.running.Load() {
		t.Fatalf("running flag still set after TriggerStop")
	}
}

func TestFeedbackLoopSyncLossStopsWithoutDeadlock(t *testing.T) {
	d, tr := newTestDevice(t)
	if err := d.Prepare(48000); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var reads [][]byte
	// Enough in-range packets to cross the sync-priming threshold (each
	// packet always occupies 8 accumulator slots once produced).
	for i := 0; i < FeedbackAccumulatorSize/8+1; i++ {
		reads = append(reads, []byte{48})
	}
	// Then enough out-of-range packets to exceed FeedbackSyncLossThreshold
	// and force HandleCompletion to return ErrSyncLost.
	for i := 0; i < FeedbackSyncLossThreshold+1; i++ {
		reads = append(reads, []byte{200})
	}
	tr.feedbackIn.reads = reads

	if err := d.TriggerStart(); err != nil {
		t.Fatalf("TriggerStart: %v", err)
	}

	// feedbackLoop hits ErrSyncLost and hands teardown to an async
	// goroutine (feedbackLoop cannot call TriggerStop itself without
	// self-joining d.wg). Both the running flag and activeURBs must settle
	// to their stopped state without this test ever blocking.
	waitUntil(t, func() bool { return !d.running.Load() })
	waitUntil(t, func() bool { return d.activeURBs.Load() == 0 })
}

func TestDevicePlaybackAndCapturePointerWrap(t *testing.T) {
	d, _ := newTestDevice(t)
	if err := d.Prepare(48000); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	size := d.playbackRing.SizeFrames()
	d.driverPlaybackPos = uint64(size) + 10
	if got := d.PlaybackPointer(); got != 10 {
		t.Fatalf("PlaybackPointer() = %d, want 10 (wrapped at ring size %d)", got, size)
	}

	csize := d.captureHost.SizeFrames()
	d.driverCapturePos = uint64(csize) + 3
	if got := d.CapturePointer(); got != 3 {
		t.Fatalf("CapturePointer() = %d, want 3 (wrapped at ring size %d)", got, csize)
	}
}

func TestDeviceResumeNoopWithoutPriorRate(t *testing.T) {
	d, tr := newTestDevice(t)
	tr.controls = nil
	if err := d.Resume(); err != nil {
		t.Fatalf("Resume() with no prior rate: %v", err)
	}
	if len(tr.controls) != 0 {
		t.Fatalf("Resume() issued %d control transfers with no prior rate, want 0", len(tr.controls))
	}
}

func TestDeviceResumeReconfiguresPriorRate(t *testing.T) {
	d, tr := newTestDevice(t)
	if err := d.Prepare(44100); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	tr.controls = nil

	if err := d.Resume(); err != nil {
		t.Fatalf("Resume(): %v", err)
	}
	if len(tr.controls) == 0 {
		t.Fatalf("Resume() issued no control transfers after a prior Prepare")
	}
	if rate := d.CurrentRate(); rate != 44100 {
		t.Fatalf("CurrentRate() after Resume = %d, want 44100", rate)
	}
}

func TestDeviceDisconnectClosesTransport(t *testing.T) {
	d, tr := newTestDevice(t)
	if err := d.Disconnect(); err != nil {
		t.Fatalf("Disconnect(): %v", err)
	}
	if !tr.closed {
		t.Fatalf("Disconnect() did not close the transport")
	}
}
