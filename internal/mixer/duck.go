// Package mixer lowers other applications' PulseAudio streams while the
// assistant is talking.
package mixer

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"jarvis/internal/speech"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Runner executes pactl with the given arguments and returns stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func pactl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pactl", args...).Output()
}

// Ducker fades every sink input except those whose application.name is in
// selfNames.
type Ducker struct {
	mu          sync.Mutex
	run         Runner
	active      bool
	selfNames   []string
	originalVol map[int]int
	minVolume   int
	stepEvery   time.Duration
}

func NewDucker(selfNames []string, minVolume int) *Ducker {
	return &Ducker{
		run:         pactl,
		selfNames:   slices.Clone(selfNames),
		originalVol: make(map[int]int),
		minVolume:   max(0, min(maxVolume, minVolume)),
		stepEvery:   10 * time.Millisecond,
	}
}

// Duck fades foreign streams to current*factor, but not below minVolume.
func (d *Ducker) Duck(ctx context.Context, factor float64, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	var targets []fadeTarget
	for _, s := range streams {
		if slices.Contains(d.selfNames, s.AppName) {
			continue
		}

		to := math.Max(float64(s.Volume)*factor, float64(d.minVolume))
		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{
			id:   s.ID,
			from: s.Volume,
			to:   int(math.Round(math.Min(to, maxVolume))),
		})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}
	d.active = true
	return nil
}

// Restore fades ducked streams back. Streams that appeared after Duck are
// left alone.
func (d *Ducker) Restore(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || slices.Contains(d.selfNames, s.AppName) {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}
	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Ducker) fade(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	steps := 1
	if duration > 0 && d.stepEvery > 0 {
		steps = max(1, int(duration/d.stepEvery))
	}
	stepDuration := duration / time.Duration(steps)

	// with no duration only the final volume is set
	first := 0
	if duration <= 0 {
		first = steps
	}

	for i := first; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := float64(i) / float64(steps)
		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.setVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			time.Sleep(stepDuration)
		}
	}
	return nil
}

func (d *Ducker) listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := d.run(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	percent = max(0, min(maxVolume, percent))
	_, err := d.run(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
	return err
}

func parseSinkInputs(text string) []streamInfo {
	parts := strings.Split(text, "Sink Input #")

	var res []streamInfo
	for _, block := range parts[1:] {
		idLine, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(idLine))
		if err != nil {
			continue
		}

		s := streamInfo{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					s.Volume, _ = strconv.Atoi(m[1])
				}
			}

			// application.name = "Firefox"
			if rest, ok := strings.CutPrefix(line, "application.name ="); ok && s.AppName == "" {
				s.AppName = strings.Trim(strings.TrimSpace(rest), `"`)
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}
	return res
}

// DuckingSpeaker wraps a synthesizer so other audio is lowered for the
// duration of each utterance. Mixer failures are logged and never block
// speech.
type DuckingSpeaker struct {
	next   speech.Synthesizer
	ducker *Ducker
	factor float64
	fade   time.Duration
}

func NewDuckingSpeaker(next speech.Synthesizer, ducker *Ducker) *DuckingSpeaker {
	return &DuckingSpeaker{
		next:   next,
		ducker: ducker,
		factor: 0.3,
		fade:   200 * time.Millisecond,
	}
}

func (s *DuckingSpeaker) Speak(ctx context.Context, text string) error {
	if err := s.ducker.Duck(ctx, s.factor, s.fade); err != nil {
		log.Warn("Failed to duck other audio", "err", err)
	}
	defer func() {
		// restore even when ctx is already canceled
		if err := s.ducker.Restore(context.WithoutCancel(ctx), s.fade); err != nil {
			log.Warn("Failed to restore other audio", "err", err)
		}
	}()

	return s.next.Speak(ctx, text)
}

var _ speech.Synthesizer = (*DuckingSpeaker)(nil)
