package main

import (
	"log"
	"sync/atomic"

	"us144mkii/internal/hostio"
)

// logNotifier counts period-elapsed upcalls per stream and logs periodically
// rather than on every call, since at typical rates those fire hundreds of
// times a second.
type logNotifier struct {
	playbackCount atomic.Uint64
	captureCount  atomic.Uint64
}

func (n *logNotifier) PeriodElapsed(stream hostio.StreamKind) {
	var count uint64
	switch stream {
	case hostio.StreamPlayback:
		count = n.playbackCount.Add(1)
	case hostio.StreamCapture:
		count = n.captureCount.Add(1)
	}
	if count%500 == 0 {
		log.Printf("us144mkiid: %s period %d elapsed", stream, count)
	}
}
