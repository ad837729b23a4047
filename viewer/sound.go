package viewer

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// Sound plays short cues for agent arrivals and failures.
type Sound struct {
	lock        sync.Mutex
	mixer       *beep.Mixer
	initialized bool
}

// NewSound creates a silent Sound. Call Initialize to open the speaker.
func NewSound() *Sound {
	return &Sound{mixer: &beep.Mixer{}}
}

// Initialize opens the audio device.
func (s *Sound) Initialize() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(s.mixer)
	s.initialized = true
	return nil
}

// Close silences anything still playing.
func (s *Sound) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.initialized {
		return
	}
	speaker.Lock()
	s.mixer.Clear()
	speaker.Unlock()
	s.initialized = false
}

// Arrival plays a short high blip.
func (s *Sound) Arrival() {
	s.play(newTone(880, 60*time.Millisecond, sampleRate))
}

// Failure plays a low buzz.
func (s *Sound) Failure() {
	s.play(newTone(220, 150*time.Millisecond, sampleRate))
}

func (s *Sound) play(st beep.Streamer) {
	if s == nil {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.initialized {
		return
	}
	speaker.Lock()
	s.mixer.Add(st)
	speaker.Unlock()
}

// tone is a sine wave with a linear fade out.
type tone struct {
	freq  float64
	rate  beep.SampleRate
	pos   int
	total int
}

func newTone(freq float64, duration time.Duration, rate beep.SampleRate) *tone {
	return &tone{freq: freq, rate: rate, total: rate.N(duration)}
}

// Stream implements beep.Streamer.
func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	if t.pos >= t.total {
		return 0, false
	}
	for i := range samples {
		if t.pos >= t.total {
			return i, true
		}
		phase := 2 * math.Pi * t.freq * float64(t.pos) / float64(t.rate)
		fade := 1 - float64(t.pos)/float64(t.total)
		v := 0.2 * fade * math.Sin(phase)
		samples[i][0] = v
		samples[i][1] = v
		t.pos++
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (t *tone) Err() error { return nil }
