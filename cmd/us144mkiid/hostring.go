package main

import "us144mkii"

// byteRing is a minimal hostio.PCMRing backed by a flat byte slice. It
// trusts its single pump goroutine and the driver's own goroutines never to
// race on overlapping regions — true in this daemon because the pump stays
// one period ahead of (playback) or behind (capture) the driver's position,
// the same assumption ALSA plugins make of their mmap'd ring.
type byteRing struct {
	buf          []byte
	periodFrames int
}

func newByteRing(sizeFrames, periodFrames int) *byteRing {
	return &byteRing{
		buf:          make([]byte, sizeFrames*us144mkii.BytesPerFrame),
		periodFrames: periodFrames,
	}
}

func (r *byteRing) SizeFrames() int    { return len(r.buf) / us144mkii.BytesPerFrame }
func (r *byteRing) PeriodFrames() int  { return r.periodFrames }

func (r *byteRing) ReadAt(pos uint64, dst []byte) {
	r.copyAt(pos, dst, false)
}

func (r *byteRing) WriteAt(pos uint64, src []byte) {
	r.copyAt(pos, src, true)
}

func (r *byteRing) copyAt(pos uint64, p []byte, write bool) {
	frameBytes := us144mkii.BytesPerFrame
	total := len(r.buf)
	start := int(pos%uint64(r.SizeFrames())) * frameBytes

	done := 0
	for done < len(p) {
		chunk := total - start
		if remain := len(p) - done; chunk > remain {
			chunk = remain
		}
		if write {
			copy(r.buf[start:start+chunk], p[done:done+chunk])
		} else {
			copy(p[done:done+chunk], r.buf[start:start+chunk])
		}
		done += chunk
		start = (start + chunk) % total
	}
}
