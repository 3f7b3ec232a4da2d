package us144mkii

import (
	"log"

	"us144mkii/internal/hostio"
)

// feedbackURBPacketCount is the number of one-byte feedback packets
// requested per feedback read. The device may carry one to five feedback
// packets per URB; this implementation always requests exactly one.
const feedbackURBPacketCount = 1

// feedbackLoop is the master clock goroutine: each iteration stands in for
// one feedback URB completion with status 0. It
// reads one or more feedback bytes, updates the shared accumulator and
// frame counters through feedbackClock, and signals period-elapsed upcalls
// to the host.
func (d *Device) feedbackLoop() {
	in := d.transport.FeedbackIn()
	raw := make([]byte, feedbackURBPacketCount)

	for {
		select {
		case <-d.stopCh:
			return
		default:
		}
		if !d.playbackActive.Load() {
			return
		}

		n, status, err := in.Read(raw)
		if err != nil {
			if status.Transient() {
				return
			}
			log.Printf("us144mkii: feedback read: %v (status %s)", err, status)
			continue
		}
		if n <= 0 {
			continue
		}

		d.mu.Lock()
		fc := d.feedback
		periodSize := d.playbackRing.PeriodFrames()
		captureActive := d.captureActive.Load()
		d.mu.Unlock()
		if fc == nil {
			return
		}

		playbackElapsed, captureElapsed, err := fc.HandleCompletion(raw[:n], periodSize, captureActive)
		if err != nil {
			log.Printf("us144mkii: %v", err)
			// TriggerStop waits on d.wg, which this goroutine is itself
			// part of: calling it inline would self-join and deadlock, so
			// teardown is handed to a separate goroutine and this one
			// returns to release its own wg slot first.
			go d.TriggerStop()
			return
		}

		if playbackElapsed {
			d.notifier.PeriodElapsed(hostio.StreamPlayback)
		}
		if captureElapsed {
			d.notifier.PeriodElapsed(hostio.StreamCapture)
		}
	}
}
