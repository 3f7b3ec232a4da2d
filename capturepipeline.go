package us144mkii

import "log"

// captureProducerLoop stands in for interrupt-time capture URB completions:
// each successful read is appended to the capture ring and the decode
// worker is woken. Transient errors end this loop quietly without
// resubmission; everything else is logged and the loop continues, since
// stream stop is never this loop's own decision.
func (d *Device) captureProducerLoop() {
	in := d.transport.CaptureIn()
	raw := make([]byte, CaptureURBSize)

	for {
		select {
		case <-d.stopCh:
			return
		default:
		}
		if !d.captureActive.Load() {
			return
		}

		n, status, err := in.Read(raw)
		if err != nil {
			if status.Transient() {
				return
			}
			log.Printf("us144mkii: capture read: %v (status %s)", err, status)
			continue
		}
		if n <= 0 {
			continue
		}

		d.captureRing.Write(raw[:n])

		select {
		case d.captureDoorbell <- struct{}{}:
		default:
		}
	}
}

// captureDecodeLoop is the deferred decode worker: it wakes on the
// doorbell, drains the ring in 512-byte blocks, decodes and routes each one
// outside the lock, then writes the routed frames into the host capture
// ring under the lock.
func (d *Device) captureDecodeLoop() {
	var raw [RawBytesPerDecodeBlock]byte
	var decoded, routed DecodedBlock
	hostBuf := make([]byte, FramesPerDecodeBlock*BytesPerFrame)

	for {
		select {
		case <-d.stopCh:
			return
		case <-d.captureDoorbell:
		}

		for d.captureActive.Load() && d.captureRing.TryRead(raw[:]) {
			decoded = DecodeCaptureBlock(&raw)

			d.mu.Lock()
			routing := d.routing
			d.mu.Unlock()
			RouteCapture(routing, &decoded, &routed)

			packCaptureFrames(&routed, hostBuf)

			d.mu.Lock()
			pos := d.driverCapturePos
			d.driverCapturePos += FramesPerDecodeBlock
			d.captureHost.WriteAt(pos, hostBuf)
			d.mu.Unlock()
		}

		if !d.captureActive.Load() {
			return
		}
	}
}

// packCaptureFrames writes the three most-significant bytes of each
// channel's 32-bit sample (the 24-bit little-endian capture wire layout)
// into dst, one 12-byte frame per entry in frames.
func packCaptureFrames(frames *DecodedBlock, dst []byte) {
	for f := 0; f < FramesPerDecodeBlock; f++ {
		base := f * BytesPerFrame
		for c := 0; c < Channels; c++ {
			v := uint32(frames[f][c])
			off := base + c*3
			dst[off+0] = byte(v >> 8)
			dst[off+1] = byte(v >> 16)
			dst[off+2] = byte(v >> 24)
		}
	}
}
