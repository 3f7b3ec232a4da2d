package us144mkii

import (
	"log"
	"math"
)

// nominalFramesPerPacket returns round(rate/8000), the per-packet frame
// count used while the feedback clock is not yet synced.
func nominalFramesPerPacket(rateHz int) int {
	return int(math.Round(float64(rateHz) / 8000.0))
}

// playbackLoop rebuilds and submits one outgoing isochronous transfer per
// iteration, standing in for the original URB-completion callback: each
// loop body is the Go equivalent of one playback URB completion.
func (d *Device) playbackLoop() {
	out := d.transport.PlaybackOut()

	for {
		select {
		case <-d.stopCh:
			return
		default:
		}
		if !d.playbackActive.Load() {
			return
		}

		d.mu.Lock()
		fc := d.feedback
		rate := d.currentRate
		routing := d.routing
		d.mu.Unlock()
		if fc == nil {
			return
		}

		// 1. Size each of the URB's packets from the accumulator, or
		// nominally while unsynced. The per-packet boundaries only matter
		// for building an isochronous descriptor table, which this
		// translation has no analog for; only their sum drives the copy.
		totalFrames := 0
		nominal := nominalFramesPerPacket(rate)
		for i := 0; i < PlaybackURBPackets; i++ {
			frames := nominal
			if fc.Synced() {
				if slot, ok := fc.NextSlot(); ok {
					frames = int(slot)
				}
			}
			totalFrames += frames
		}

		totalBytes := totalFrames * BytesPerFrame
		if totalBytes > len(d.scratch) {
			// Grow the shared scratch buffer if an unusually large burst
			// of large packets is ever requested; normal operation never
			// hits this since packet sizes track the nominal rate closely.
			d.scratch = make([]byte, totalBytes)
		}
		buf := d.scratch[:totalBytes]

		// 2-3. Snapshot and advance the driver playback position under the
		// lock; the frame counters and accumulator were already mutated
		// above inside fc, which owns its own lock.
		d.mu.Lock()
		pos := d.driverPlaybackPos
		d.driverPlaybackPos += uint64(totalFrames)
		d.mu.Unlock()

		// 4. Copy from the host ring outside the lock. hostio.PCMRing's
		// ReadAt contract already wraps internally, so no explicit
		// wrap-around handling is needed here.
		d.playbackRing.ReadAt(pos, buf)

		// 5. Apply routing in place.
		RoutePlayback(routing, buf, buf, totalFrames)

		// 6. Submit.
		_, status, err := out.Write(buf)
		if err != nil {
			if status.Transient() {
				continue
			}
			log.Printf("us144mkii: playback write: %v (status %s)", err, status)
			continue
		}
	}
}
