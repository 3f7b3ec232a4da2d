package us144mkii

import (
	"math"
	"sync"
)

// FeedbackAccumulatorSize is the capacity of the circular frame-count
// accumulator the feedback clock feeds and the playback engine drains.
const FeedbackAccumulatorSize = 128

// FeedbackSyncLossThreshold is the number of consecutive out-of-range
// feedback values that fatally stops both streams.
const FeedbackSyncLossThreshold = 41

// feedbackAccumulatorHighWater is the unread distance (inIdx − outIdx)
// above which a feedback completion writes no slots at all for a value, so
// the distance never exceeds FeedbackAccumulatorSize (120 + 8 = 128) and
// the writer never wraps onto unread slots.
const feedbackAccumulatorHighWater = 120

// supportedRates are the sample rates with a defined pattern table.
var supportedRates = []int{44100, 48000, 88200, 96000}

// patternTable is one rate's 5×8 frame-per-microframe lookup plus the
// feedback-byte range it covers.
//
// Row i is indexed by feedback value (base+i) and holds the 8 per-microframe
// frame counts whose sum is exactly (base+i) — the feedback byte is read as
// "this many frames are due this millisecond," spread as evenly as possible
// across the 8 microframes making up that millisecond at high speed.
type patternTable struct {
	rows [5][8]uint32
	base uint32
	max  uint32
}

// distribute8 spreads sum frames as evenly as possible across 8 slots, the
// same Bresenham-style even-distribution used by rate converters to avoid
// clustering rounding error at one end (grounded on the frame-distribution
// idea in other_examples' USRP sample-rate converter). The result sums to
// exactly sum; slot values differ by at most 1.
func distribute8(sum int) [8]uint32 {
	var out [8]uint32
	base := sum / 8
	rem := sum % 8
	acc := 0
	for i := 0; i < 8; i++ {
		acc += rem
		if acc >= 8 {
			out[i] = uint32(base + 1)
			acc -= 8
		} else {
			out[i] = uint32(base)
		}
	}
	return out
}

// buildPatternTable derives the 5×8 pattern table for rateHz.
//
// base is chosen as round(rateHz/1000) − 1, the narrower of the two
// base/max ranges observed across hardware traces, adopted because its
// table has exactly five rows. This reproduces the documented 48 kHz
// worked example for row 0 exactly ({5,6,6,6,6,6,6,6}) and matches row 4's
// frame total (taking the recorded sum of 50 for row 4 as the arithmetic
// slip it is: {7,6,6,7,6,6,7,6} sums to 51, which is what base+4=51
// predicts); distribute8 orders row 4 as {6,6,7,6,6,7,6,7}, not in the
// documented slot order. The documented example row
// ({6,6,6,6,6,6,6,6}, sum 48) corresponds to feedback value 48, i.e. row 1
// under this base rather than the row index it was recorded against — this
// implementation treats that as the same kind of transcription slip rather
// than evidence of a different base, since no single base reproduces all
// the worked rows at once.
//
// For 48 kHz this makes max 51, not the (47, 49) range quoted elsewhere in
// the protocol notes for this rate — bytes 50 and 51 are deliberately
// treated as in-range here rather than as out-of-range values that would
// count toward consecutive_errors.
func buildPatternTable(rateHz int) patternTable {
	nominalPerMs := int(math.Round(float64(rateHz) / 1000.0))
	base := uint32(nominalPerMs - 1)

	var t patternTable
	t.base = base
	t.max = base + 4
	for i := 0; i < 5; i++ {
		t.rows[i] = distribute8(int(base) + i)
	}
	return t
}

var ratePatternTables = func() map[int]patternTable {
	m := make(map[int]patternTable, len(supportedRates))
	for _, r := range supportedRates {
		m[r] = buildPatternTable(r)
	}
	return m
}()

// RateSupported reports whether rateHz has a defined pattern table.
func RateSupported(rateHz int) bool {
	_, ok := ratePatternTables[rateHz]
	return ok
}

// feedbackClock is the master timing source for both streams: it decodes
// feedback URB payloads into the frame-count accumulator, tracks sync
// acquisition and loss, and advances the two frame counters that drive
// period-elapsed reporting.
type feedbackClock struct {
	mu sync.Mutex

	table          patternTable
	nominalPattern [8]uint32 // fallback pattern for out-of-range values

	accum  [FeedbackAccumulatorSize]uint32
	inIdx  uint32
	outIdx uint32

	synced            bool
	consecutiveErrors int
	skipCount         int

	playbackFramesConsumed uint64
	captureFramesProcessed uint64
	lastPeriodPos          uint64
	lastCapturePeriodPos   uint64
}

// newFeedbackClock builds a feedback clock for rateHz. numURBs is the
// configured feedback URB count; skipCount starts there and counts down to
// zero before any packet is interpreted.
func newFeedbackClock(rateHz, numURBs int) (*feedbackClock, error) {
	table, ok := ratePatternTables[rateHz]
	if !ok {
		return nil, ErrConfig
	}
	nominalPerMs := int(math.Round(float64(rateHz) / 1000.0))
	fc := &feedbackClock{
		table:          table,
		nominalPattern: distribute8(nominalPerMs),
		skipCount:      numURBs,
	}
	// Prefill every slot with the nominal per-microframe counts for this
	// rate, the same way the original driver programs each URB's descriptor
	// table with nominal sizes before the first real feedback value arrives.
	// inIdx/outIdx stay at 0: nothing is "produced" yet, so the sync
	// priming crossing in HandleCompletion still starts from an empty
	// accumulator — only the slot values themselves are seeded, as a
	// fallback for any read that could otherwise observe a zeroed slot.
	for i := range fc.accum {
		fc.accum[i] = fc.nominalPattern[i%8]
	}
	return fc, nil
}

// distanceLocked returns the count of written-but-unread accumulator slots,
// inIdx − outIdx. Both counters only ever increase, so unsigned subtraction
// gives the true distance without wrapping it into [0, FeedbackAccumulatorSize)
// the way indexing into accum does — wrapping here would hide exactly the
// overrun condition feedbackAccumulatorHighWater exists to catch. Caller
// must hold mu.
func (fc *feedbackClock) distanceLocked() uint32 {
	return fc.inIdx - fc.outIdx
}

// HandleCompletion processes one feedback URB completion carrying the given
// packet values (one byte per packet with actual_length ≥ 1; the caller
// filters zero-length packets before calling).
//
// periodSize is the host ring's period size in frames; captureActive
// reports whether the capture stream is currently running. The returned
// bools indicate a playback and/or capture period boundary was crossed.
// err is ErrSyncLost once consecutive_errors exceeds
// FeedbackSyncLossThreshold — the caller must fatal-stop both streams.
func (fc *feedbackClock) HandleCompletion(values []byte, periodSize int, captureActive bool) (playbackElapsed, captureElapsed bool, err error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.skipCount > 0 {
		fc.skipCount--
		return false, false, nil
	}

	before := fc.distanceLocked()
	frameTotal := 0

	for _, v := range values {
		inRange := uint32(v) >= fc.table.base && uint32(v) <= fc.table.max
		if inRange {
			fc.consecutiveErrors = 0
		} else if fc.synced {
			fc.consecutiveErrors++
			if fc.consecutiveErrors > FeedbackSyncLossThreshold {
				fc.synced = false
				return false, false, ErrSyncLost
			}
		}

		// Never produce this value's 8 slots while the consumer hasn't
		// caught up: writing them would advance inIdx past outIdx+128 and
		// start overwriting slots NextSlot hasn't read yet. Skip production
		// entirely rather than writing a smaller row, since a row always
		// occupies exactly 8 slots regardless of its frame-count contents.
		if fc.distanceLocked() > feedbackAccumulatorHighWater {
			continue
		}

		row := fc.nominalPattern
		if inRange {
			row = fc.table.rows[uint32(v)-fc.table.base]
		}

		for _, c := range row {
			fc.accum[fc.inIdx%FeedbackAccumulatorSize] = c
			fc.inIdx++
			frameTotal += int(c)
		}
	}

	// Sync is acquired once the accumulator has primed past half its
	// capacity: writes only ever grow distanceLocked within a call, so the
	// crossing to detect is upward, not downward.
	if !fc.synced {
		after := fc.distanceLocked()
		if before <= FeedbackAccumulatorSize/2 && after > FeedbackAccumulatorSize/2 {
			fc.synced = true
		}
	}

	if frameTotal > 0 {
		fc.playbackFramesConsumed += uint64(frameTotal)
		if captureActive {
			fc.captureFramesProcessed += uint64(frameTotal)
		}
	}

	if periodSize > 0 {
		cur := fc.playbackFramesConsumed / uint64(periodSize)
		if cur > fc.lastPeriodPos {
			fc.lastPeriodPos = cur
			playbackElapsed = true
		}
		if captureActive {
			curC := fc.captureFramesProcessed / uint64(periodSize)
			if curC > fc.lastCapturePeriodPos {
				fc.lastCapturePeriodPos = curC
				captureElapsed = true
			}
		}
	}

	return playbackElapsed, captureElapsed, nil
}

// NextSlot pops the next frame count the playback engine should use for its
// next outgoing isochronous packet. ok is false if the accumulator has
// nothing left to consume (the playback engine falls back to the nominal
// frame count per packet in that case).
func (fc *feedbackClock) NextSlot() (frames uint32, ok bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.outIdx == fc.inIdx {
		return 0, false
	}
	frames = fc.accum[fc.outIdx%FeedbackAccumulatorSize]
	fc.outIdx++
	return frames, true
}

// Synced reports whether the clock currently considers itself locked to the
// device's feedback stream.
func (fc *feedbackClock) Synced() bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.synced
}

// FrameCounters returns the two monotone frame counters.
func (fc *feedbackClock) FrameCounters() (playback, capture uint64) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.playbackFramesConsumed, fc.captureFramesProcessed
}

// Reset restores the clock to its just-constructed state: sync, counters,
// and the accumulator cursors
// are cleared and skip_count is reloaded so initial jitter is absorbed
// again after a resume.
func (fc *feedbackClock) Reset(numURBs int) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for i := range fc.accum {
		fc.accum[i] = fc.nominalPattern[i%8]
	}
	fc.inIdx = 0
	fc.outIdx = 0
	fc.synced = false
	fc.consecutiveErrors = 0
	fc.skipCount = numURBs
	fc.playbackFramesConsumed = 0
	fc.captureFramesProcessed = 0
	fc.lastPeriodPos = 0
	fc.lastCapturePeriodPos = 0
}
