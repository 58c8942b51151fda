package pipeline

import (
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// tapStreamer sits between the segment streamer and the resampler. It counts
// source frames pulled through it, which is the pipeline's sample-accurate
// clock, and forwards each rendered block to the tap consumer. Counting
// happens before the resampler so the clock advances in source time
// regardless of the speed ratio.
type tapStreamer struct {
	src     beep.Streamer
	fn      TapFunc
	frames  atomic.Int64
	touched atomic.Bool
}

var _ beep.Streamer = (*tapStreamer)(nil)

func newTap(src beep.Streamer, fn TapFunc) *tapStreamer {
	return &tapStreamer{src: src, fn: fn}
}

func (t *tapStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = t.src.Stream(samples)
	if n > 0 {
		t.frames.Add(int64(n))
		t.touched.Store(true)
		if t.fn != nil {
			t.fn(samples[:n])
		}
	}
	return n, ok
}

func (t *tapStreamer) Err() error {
	return t.src.Err()
}
