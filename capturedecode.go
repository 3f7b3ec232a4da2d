package us144mkii

// RawBytesPerDecodeBlock is the size of one capture bulk URB payload and of
// one decode unit.
const RawBytesPerDecodeBlock = 512

// FramesPerDecodeBlock is the number of audio frames recovered from one
// RawBytesPerDecodeBlock-sized block.
const FramesPerDecodeBlock = 8

// bytesPerFrameRecord is the raw wire size of one of the eight frame
// records a decode block is segmented into (512 / 8).
const bytesPerFrameRecord = RawBytesPerDecodeBlock / FramesPerDecodeBlock

// DecodedBlock is the output shape of DecodeCaptureBlock: eight frames of
// four 32-bit signed samples each, 24 bits of data left-shifted into the top
// of the container.
type DecodedBlock [FramesPerDecodeBlock][Channels]int32

// DecodeCaptureBlock demultiplexes one 512-byte raw capture block into 8
// frames of 4 channels of 24-bit samples.
//
// This is a pure function with no shared state, safe to call outside any
// lock. The bit-interleaving was reverse-engineered from USB traces and has
// not been corroborated against every hardware revision — treat it as the
// best available description rather than a verified ground truth.
//
// Layout: raw is split into 8 consecutive 64-byte frame records. Within each
// record, byte offsets [0,24) and [32,56) each carry 24 bit-slices — one bit
// per byte — for two channels apiece. Bit 0 of byte offset b feeds channel 0,
// bit 1 feeds channel 2; bit 0 of byte offset 32+b feeds channel 1, bit 1
// feeds channel 3. Bits accumulate MSB-first across b = 0..23.
func DecodeCaptureBlock(raw *[RawBytesPerDecodeBlock]byte) DecodedBlock {
	var out DecodedBlock

	for f := 0; f < FramesPerDecodeBlock; f++ {
		rec := raw[f*bytesPerFrameRecord : (f+1)*bytesPerFrameRecord]

		var ch0, ch1, ch2, ch3 uint32
		for b := 0; b < 24; b++ {
			lo := rec[b]
			hi := rec[32+b]

			ch0 = (ch0 << 1) | uint32(lo&0x01)
			ch2 = (ch2 << 1) | uint32((lo>>1)&0x01)
			ch1 = (ch1 << 1) | uint32(hi&0x01)
			ch3 = (ch3 << 1) | uint32((hi>>1)&0x01)
		}

		out[f][0] = int32(ch0 << 8)
		out[f][1] = int32(ch1 << 8)
		out[f][2] = int32(ch2 << 8)
		out[f][3] = int32(ch3 << 8)
	}

	return out
}

// EncodeCaptureBlock is the inverse of DecodeCaptureBlock: given 8 frames of
// 4 channels of 24-bit-in-32-bit samples (low 8 bits ignored), it produces
// the 512-byte bit-interleaved wire block that would decode back to them.
// Used by tests to exercise the round-trip property and by hardware-trace
// tooling; never called from the capture pipeline itself.
func EncodeCaptureBlock(frames *DecodedBlock) [RawBytesPerDecodeBlock]byte {
	var raw [RawBytesPerDecodeBlock]byte

	for f := 0; f < FramesPerDecodeBlock; f++ {
		rec := raw[f*bytesPerFrameRecord : (f+1)*bytesPerFrameRecord]

		ch0 := uint32(frames[f][0]) >> 8
		ch1 := uint32(frames[f][1]) >> 8
		ch2 := uint32(frames[f][2]) >> 8
		ch3 := uint32(frames[f][3]) >> 8

		for b := 0; b < 24; b++ {
			// Bit (23-b) of each 24-bit value was accumulated at loop index
			// b during decode (MSB-first), so it must be written back there.
			shift := uint(23 - b)
			var lo, hi byte
			lo |= byte((ch0 >> shift) & 0x01)
			lo |= byte((ch2>>shift)&0x01) << 1
			hi |= byte((ch1 >> shift) & 0x01)
			hi |= byte((ch3>>shift)&0x01) << 1
			rec[b] = lo
			rec[32+b] = hi
		}
	}

	return raw
}
