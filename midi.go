package us144mkii

import "log"

// MIDIFrameSize is the fixed wire size of one MIDI packet in both
// directions.
const MIDIFrameSize = 9

// midiPadByte fills unused payload bytes inside a 9-byte MIDI frame.
const midiPadByte = 0xFD

// midiOutputTrailer is the fixed trailing byte senders emit on output.
const midiOutputTrailer = 0x00

// EncodeMIDIFrame packs up to 8 bytes of MIDI data into a 9-byte wire frame:
// the data bytes, padded with 0xFD up to 8 bytes, followed by the trailing
// byte 0x00. Panics if len(data) > 8 — callers split longer messages before
// framing.
func EncodeMIDIFrame(data []byte) [MIDIFrameSize]byte {
	if len(data) > 8 {
		panic("us144mkii: MIDI payload exceeds 8 bytes")
	}
	var frame [MIDIFrameSize]byte
	n := copy(frame[:8], data)
	for i := n; i < 8; i++ {
		frame[i] = midiPadByte
	}
	frame[8] = midiOutputTrailer
	return frame
}

// DecodeMIDIFrame extracts the real MIDI data bytes from a received 9-byte
// wire frame, skipping 0xFD padding bytes among the first 8. The trailing
// 9th byte is a terminator and never treated as data.
func DecodeMIDIFrame(frame [MIDIFrameSize]byte) []byte {
	data := make([]byte, 0, 8)
	for _, b := range frame[:8] {
		if b == midiPadByte {
			continue
		}
		data = append(data, b)
	}
	return data
}

// StartMIDIIn starts the MIDI-in deferred worker: it reads 9-byte frames
// from the MIDI-in endpoint, decodes them,
// and sends the recovered data bytes on out. Frames arriving while out is
// full are dropped rather than blocking the read loop. A no-op if already
// active.
func (d *Device) StartMIDIIn(out chan<- []byte) {
	if !d.midiInActive.CompareAndSwap(false, true) {
		return
	}
	d.midiInStopCh = make(chan struct{})
	stopCh := d.midiInStopCh

	d.midiWg.Add(1)
	go func() {
		defer d.midiWg.Done()
		in := d.transport.MIDIIn()
		var raw [MIDIFrameSize]byte

		for {
			select {
			case <-stopCh:
				return
			default:
			}

			n, status, err := in.Read(raw[:])
			if err != nil {
				if status.Transient() {
					return
				}
				log.Printf("us144mkii: midi in read: %v (status %s)", err, status)
				continue
			}
			if n < MIDIFrameSize {
				continue
			}

			data := DecodeMIDIFrame(raw)
			if len(data) == 0 {
				continue
			}
			select {
			case out <- data:
			default:
			}
		}
	}()
}

// StopMIDIIn stops the MIDI-in worker and waits for it to exit. A no-op if
// not active.
func (d *Device) StopMIDIIn() {
	if !d.midiInActive.CompareAndSwap(true, false) {
		return
	}
	close(d.midiInStopCh)
	d.midiWg.Wait()
}

// StartMIDIOut starts the MIDI-out deferred worker: it encodes each byte
// slice received on in as a 9-byte frame and writes it to the MIDI-out
// endpoint. in is drained until closed or StopMIDIOut is called. A no-op if
// already active.
func (d *Device) StartMIDIOut(in <-chan []byte) {
	if !d.midiOutActive.CompareAndSwap(false, true) {
		return
	}
	d.midiOutStopCh = make(chan struct{})
	stopCh := d.midiOutStopCh

	d.midiWg.Add(1)
	go func() {
		defer d.midiWg.Done()
		out := d.transport.MIDIOut()

		for {
			select {
			case <-stopCh:
				return
			case data, ok := <-in:
				if !ok {
					return
				}
				frame := EncodeMIDIFrame(data)
				if _, status, err := out.Write(frame[:]); err != nil && !status.Transient() {
					log.Printf("us144mkii: midi out write: %v (status %s)", err, status)
				}
			}
		}
	}()
}

// StopMIDIOut stops the MIDI-out worker and waits for it to exit. A no-op
// if not active.
func (d *Device) StopMIDIOut() {
	if !d.midiOutActive.CompareAndSwap(true, false) {
		return
	}
	close(d.midiOutStopCh)
	d.midiWg.Wait()
}
