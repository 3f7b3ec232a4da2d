// Package hostio names the parts of the host-audio-API collaborator
// contract the core uses: the host-owned PCM ring and the period-elapsed
// upcall. Hardware descriptor advertisement and pointer queries have no
// interface here. None of it is designed here — these interfaces exist so
// the core can be written and tested against a contract instead of a
// concrete ALSA/CoreAudio/PortAudio binding, the same way a small
// Transporter interface lets an audio engine be tested without a live
// network transport.
package hostio

// StreamKind distinguishes the playback and capture directions for the
// period-elapsed upcall.
type StreamKind int

const (
	StreamPlayback StreamKind = iota
	StreamCapture
)

func (k StreamKind) String() string {
	if k == StreamCapture {
		return "capture"
	}
	return "playback"
}

// PCMRing is the host-owned circular buffer of interleaved 4-channel,
// packed 24-bit (3 bytes per sample, 12 bytes per frame) frames. The host audio API binding allocates and
// advertises this buffer (format S24_3LE, 4 channels, period 48..1024
// frames, up to 1024 periods, buffer up to 1 MiB); the core only reads from
// it (playback) or writes into it (capture).
type PCMRing interface {
	// SizeFrames returns the ring's capacity in frames.
	SizeFrames() int
	// PeriodFrames returns the configured period size in frames (48..1024),
	// the granularity at which PeriodNotifier.PeriodElapsed fires.
	PeriodFrames() int
	// ReadAt copies frames starting at the frame offset pos (mod SizeFrames)
	// into dst, wrapping as needed. len(dst) must be a multiple of the
	// 12-byte frame size.
	ReadAt(pos uint64, dst []byte)
	// WriteAt copies frames from src into the ring starting at frame offset
	// pos (mod SizeFrames), wrapping as needed. len(src) must be a multiple
	// of the 12-byte frame size.
	WriteAt(pos uint64, src []byte)
}

// PeriodNotifier is the host "period elapsed" upcall invoked from the
// feedback callback.
type PeriodNotifier interface {
	PeriodElapsed(stream StreamKind)
}
