// Package us144mkii implements a user-space driver core for the TASCAM
// US-144MKII family of USB audio interfaces: sample-rate configuration,
// the feedback-driven isochronous clock, the bit-interleaved capture
// decoder, and the playback/capture engines that ride on it.
//
// The package owns protocol state and timing; it does not talk to any
// concrete USB stack or host audio API directly. Those are the internal
// usbxfer and hostio collaborators — see NewDevice.
package us144mkii

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"us144mkii/internal/hostio"
	"us144mkii/internal/usbxfer"
)

// Fixed sizes from the wire protocol and instance data model.
const (
	// CaptureURBSize is the payload size of one capture bulk URB/read.
	CaptureURBSize = 512

	// NumCaptureURBs is chosen so CaptureURBSize × NumCaptureURBs × 4 is the
	// smallest multiple of CaptureURBSize meeting the ≥16 KiB minimum ring
	// size: 512×8×4 = 16384 = 16 KiB exactly.
	NumCaptureURBs = 8

	// captureRingSize is the capture ring's byte capacity.
	captureRingSize = CaptureURBSize * NumCaptureURBs * 4

	// NumFeedbackURBs seeds skip_count at Prepare time.
	NumFeedbackURBs = 4

	// PlaybackURBPackets is the number of isochronous packets rebuilt per
	// playback URB completion.
	PlaybackURBPackets = 4
)

// Device is one attached US-144MKII instance: one USB device handle, its
// claimed audio and MIDI interfaces, and every piece of shared mutable
// protocol state.
//
// The mutex guards the feedback clock handle, the cached rate, the routing
// selectors, and the driver playback/capture positions — never a memcpy of
// non-trivial size, never a URB submission, never a host notification. The
// feedback accumulator and frame counters are guarded by feedbackClock's own
// mutex, and the capture ring's pointers by captureRing's.
// Per-stream activity is tracked with atomics so callbacks can read "should
// we still be running?" without taking the lock.
type Device struct {
	mu sync.Mutex

	transport usbxfer.Transport
	variant   DeviceVariant

	rateConfigurator *rateConfigurator
	currentRate      int // 0 when unconfigured

	routing RoutingSelectors

	feedback *feedbackClock

	captureRing     *captureRing
	captureDoorbell chan struct{}

	playbackRing hostio.PCMRing
	captureHost  hostio.PCMRing
	notifier     hostio.PeriodNotifier

	driverPlaybackPos uint64
	driverCapturePos  uint64

	running atomic.Bool
	playbackActive atomic.Bool
	captureActive  atomic.Bool
	midiInActive   atomic.Bool
	midiOutActive  atomic.Bool
	activeURBs     atomic.Int32

	scratch []byte // routing scratch buffer, shared across the instance

	stopCh chan struct{}
	wg     sync.WaitGroup

	midiInStopCh  chan struct{}
	midiOutStopCh chan struct{}
	midiWg        sync.WaitGroup
}

// NewDevice constructs a Device around an already-open transport and the
// host-owned playback/capture ring buffers and period notifier. Its only I/O
// is the one-byte handshake probe; call Prepare before TriggerStart.
func NewDevice(transport usbxfer.Transport, variant DeviceVariant, playbackRing, captureHost hostio.PCMRing, notifier hostio.PeriodNotifier) (*Device, error) {
	if transport == nil || playbackRing == nil || captureHost == nil || notifier == nil {
		return nil, fmt.Errorf("us144mkii: missing collaborator: %w", ErrAllocation)
	}

	d := &Device{
		transport:        transport,
		variant:          variant,
		rateConfigurator: newRateConfigurator(transport),
		routing:          DefaultRoutingSelectors(),
		captureRing:      newCaptureRing(captureRingSize),
		captureDoorbell:  make(chan struct{}, 1),
		playbackRing:     playbackRing,
		captureHost:      captureHost,
		notifier:         notifier,
		scratch:          make([]byte, PlaybackURBPackets*16*BytesPerFrame), // generous upper bound
	}

	if got, matched, err := d.rateConfigurator.Probe(); err != nil {
		return nil, fmt.Errorf("us144mkii: probe: %w: %v", ErrAllocation, err)
	} else if !matched {
		log.Printf("us144mkii: handshake mismatch: got 0x%02x, want 0x12", got)
	}

	if variant != VariantUnknown && !variant.HasStandardCaptureLayout() {
		log.Printf("us144mkii: variant %s uses a capture bit layout this decoder does not implement", variant)
	}

	return d, nil
}

// Routing returns the current routing selectors.
func (d *Device) Routing() RoutingSelectors {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.routing
}

// SetRouting updates the routing selectors. Safe to call while streams are
// running; the next playback/capture copy observes the new selection.
func (d *Device) SetRouting(sel RoutingSelectors) {
	d.mu.Lock()
	d.routing = sel
	d.mu.Unlock()
}

// CurrentRate returns the cached configured rate, or 0 if unconfigured.
func (d *Device) CurrentRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentRate
}

// Synced reports whether the feedback clock currently considers itself
// locked to the device's feedback stream.
func (d *Device) Synced() bool {
	d.mu.Lock()
	fc := d.feedback
	d.mu.Unlock()
	if fc == nil {
		return false
	}
	return fc.Synced()
}

// PlaybackPointer returns the next host-ring frame the driver will read,
// the hw_pointer callback's contract.
func (d *Device) PlaybackPointer() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.driverPlaybackPos % uint64(d.playbackRing.SizeFrames()))
}

// CapturePointer returns the next host-ring frame the driver will write.
func (d *Device) CapturePointer() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.driverCapturePos % uint64(d.captureHost.SizeFrames()))
}

// configureRate runs the fixed control sequence and updates or invalidates
// the cached rate. Calling it twice with the same rate repeats the
// identical sequence both times — there is no early return for "already at
// this rate."
func (d *Device) configureRate(rate int) error {
	if err := d.rateConfigurator.ConfigureForRate(rate); err != nil {
		d.mu.Lock()
		d.currentRate = 0
		d.mu.Unlock()
		return err
	}
	d.mu.Lock()
	d.currentRate = rate
	d.mu.Unlock()
	return nil
}

// Prepare resets per-stream state and configures the device for rate ahead
// of TriggerStart: frame counters to 0, sync and consecutive_errors
// cleared, the accumulator prefilled with nominal frame counts, skip_count
// reloaded.
func (d *Device) Prepare(rate int) error {
	if !RateSupported(rate) {
		return fmt.Errorf("us144mkii: rate %d not supported: %w", rate, ErrConfig)
	}
	if err := d.configureRate(rate); err != nil {
		return err
	}

	fc, err := newFeedbackClock(rate, NumFeedbackURBs)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.feedback = fc
	d.driverPlaybackPos = 0
	d.driverCapturePos = 0
	d.mu.Unlock()

	return nil
}

// TriggerStart starts the feedback, playback, and capture loops together:
// both streams share one trigger path so the feedback clock has meaning. A
// no-op if already running.
func (d *Device) TriggerStart() error {
	if !d.running.CompareAndSwap(false, true) {
		return nil
	}

	d.mu.Lock()
	if d.feedback == nil {
		d.mu.Unlock()
		d.running.Store(false)
		return fmt.Errorf("us144mkii: trigger-start before prepare: %w", ErrNotRunning)
	}
	d.mu.Unlock()

	d.playbackActive.Store(true)
	d.captureActive.Store(true)
	d.stopCh = make(chan struct{})

	d.wg.Add(4)
	go func() { defer d.wg.Done(); d.feedbackLoop() }()
	go func() { defer d.wg.Done(); d.playbackLoop() }()
	go func() { defer d.wg.Done(); d.captureProducerLoop() }()
	go func() { defer d.wg.Done(); d.captureDecodeLoop() }()
	d.activeURBs.Add(4)

	return nil
}

// TriggerStop clears both active flags and waits for every stream
// goroutine to exit. A no-op if not running.
func (d *Device) TriggerStop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.playbackActive.Store(false)
	d.captureActive.Store(false)
	close(d.stopCh)
	d.wg.Wait()
	d.activeURBs.Store(0)
}

// Suspend stops all streams while preserving the cached current rate.
func (d *Device) Suspend() {
	d.TriggerStop()
}

// Resume re-runs the rate configurator if a rate was previously configured.
// Re-claiming the alternate interface settings is the
// transport's responsibility at Open time; audio streams are re-prepared
// and re-triggered by the host layer, not here.
func (d *Device) Resume() error {
	rate := d.CurrentRate()
	if rate == 0 {
		return nil
	}
	return d.configureRate(rate)
}

// Disconnect stops every stream and MIDI pump and releases the transport.
func (d *Device) Disconnect() error {
	d.TriggerStop()
	d.StopMIDIIn()
	d.StopMIDIOut()
	return d.transport.Close()
}
