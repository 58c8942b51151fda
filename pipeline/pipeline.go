// Package pipeline implements the audio render pipeline on top of beep: file
// decoding, per-segment graph construction, speed/pitch rate control, the
// render tap and count-in tones. It satisfies engine.Pipeline.
package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/speaker"

	"riffloop/engine"
)

// TapFunc receives every rendered sample block of the current segment. It is
// invoked on the render context: keep it fast and allocation-free.
type TapFunc func(block [][2]float64)

// Config holds pipeline tuning knobs.
type Config struct {
	BufferLength    time.Duration // speaker buffer, default 100ms
	ResampleQuality int           // beep resampler quality, default 4
	ToneFrequency   float64       // count-in tone frequency in Hz, default 880
	Volume          float64       // output volume, base-2 exponent, 0 = unity
	Tap             TapFunc
	Logger          *slog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.BufferLength <= 0 {
		cfg.BufferLength = 100 * time.Millisecond
	}
	if cfg.ResampleQuality <= 0 {
		cfg.ResampleQuality = 4
	}
	if cfg.ToneFrequency <= 0 {
		cfg.ToneFrequency = 880
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Pipeline renders bounded segments of one decoded file through the speaker.
// The node graph is torn down and rebuilt on every schedule so no residual
// scheduled buffers from a prior segment can fire late.
type Pipeline struct {
	mu     sync.Mutex
	cfg    Config
	log    *slog.Logger
	buf    *beep.Buffer
	format beep.Format
	info   engine.FileInfo

	ctrl      *beep.Ctrl
	resampler *beep.Resampler
	tap       *tapStreamer
	speed     float64
	pitch     float64
}

var _ engine.Pipeline = (*Pipeline)(nil)

// Open decodes the file into memory and initializes the output device at the
// file's sample rate.
func Open(path string, cfg Config) (*Pipeline, error) {
	cfg = cfg.withDefaults()

	buf, format, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(cfg.BufferLength)); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrPipelineStart, err)
	}

	return &Pipeline{
		cfg:    cfg,
		log:    cfg.Logger.With("component", "pipeline"),
		buf:    buf,
		format: format,
		info: engine.FileInfo{
			Path:        path,
			SampleRate:  int(format.SampleRate),
			TotalFrames: buf.Len(),
		},
		speed: 1.0,
	}, nil
}

// Info returns the decoded file's parameters.
func (p *Pipeline) Info() engine.FileInfo {
	return p.info
}

// ScheduleSegment rebuilds the node graph for seg:
//
//	buffer[resume:end] -> tap -> resampler(speed, pitch) -> volume -> ctrl
//
// followed by a one-shot completion callback that fires on the render
// goroutine once the frame range is exhausted. The graph starts paused;
// rendering begins on Play.
func (p *Pipeline) ScheduleSegment(seg engine.Segment, onComplete func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buf == nil {
		return fmt.Errorf("%w: pipeline closed", engine.ErrFileUnavailable)
	}
	if seg.ResumeFrame < 0 || seg.EndFrame > p.buf.Len() || seg.Frames() <= 0 {
		return fmt.Errorf("%w: frames [%d, %d) outside buffer", engine.ErrInvalidRange, seg.ResumeFrame, seg.EndFrame)
	}

	// Detach everything before reconnecting. This is a correctness measure:
	// it guarantees a previously scheduled segment cannot play into this one.
	speaker.Clear()

	p.tap = newTap(p.buf.Streamer(seg.ResumeFrame, seg.EndFrame), p.cfg.Tap)
	p.resampler = beep.ResampleRatio(p.cfg.ResampleQuality, p.ratio(), p.tap)
	volume := &effects.Volume{
		Streamer: p.resampler,
		Base:     2,
		Volume:   p.cfg.Volume,
		Silent:   false,
	}
	p.ctrl = &beep.Ctrl{
		Streamer: beep.Seq(volume, beep.Callback(onComplete)),
		Paused:   true,
	}

	speaker.Play(p.ctrl)
	return nil
}

// Play starts or resumes rendering of the scheduled segment.
func (p *Pipeline) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl == nil {
		return fmt.Errorf("%w: no segment scheduled", engine.ErrPipelineStart)
	}
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

// Pause halts rendering, keeping the scheduled segment and its position.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
}

// Stop discards the scheduled segment.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	speaker.Clear()
	p.ctrl = nil
	p.resampler = nil
	p.tap = nil
}

// SetSpeed adjusts the playback rate factor on the live resampler node.
func (p *Pipeline) SetSpeed(factor float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.speed = factor
	p.applyRatioLocked()
}

// SetPitch adjusts the pitch shift in semitones. The shift is realized as a
// rate ratio on the resampler node, so it also scales playback speed of the
// underlying samples; combined with SetSpeed it forms a single ratio.
func (p *Pipeline) SetPitch(semitones float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pitch = semitones
	p.applyRatioLocked()
}

// Position reports source frames rendered since the last schedule. ok is
// false until the first render callback has pulled samples.
func (p *Pipeline) Position() (int, bool) {
	p.mu.Lock()
	tap := p.tap
	p.mu.Unlock()

	if tap == nil || !tap.touched.Load() {
		return 0, false
	}
	return int(tap.frames.Load()), true
}

// PlayTone mixes one short count-in tone over whatever is playing.
func (p *Pipeline) PlayTone(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sine, err := generators.SineTone(p.format.SampleRate, p.cfg.ToneFrequency)
	if err != nil {
		p.log.Error("count-in tone generation failed", "err", err)
		return
	}
	speaker.Play(beep.Take(p.format.SampleRate.N(d), sine))
}

// Close stops rendering and releases the output device.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	speaker.Clear()
	speaker.Close()
	p.buf = nil
	p.ctrl = nil
	p.resampler = nil
	p.tap = nil
	return nil
}

func (p *Pipeline) ratio() float64 {
	return p.speed * math.Pow(2, p.pitch/12)
}

func (p *Pipeline) applyRatioLocked() {
	if p.resampler == nil {
		return
	}
	speaker.Lock()
	p.resampler.SetRatio(p.ratio())
	speaker.Unlock()
}
