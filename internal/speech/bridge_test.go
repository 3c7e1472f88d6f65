package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMic returns one short frame per call, or blocks until ctx is done
// when block is set.
type fakeMic struct {
	block      bool
	calls      atomic.Int32
	calibrated bool
}

func (m *fakeMic) Capture(ctx context.Context, timeout time.Duration) ([]float32, error) {
	m.calls.Add(1)
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []float32{0.1, 0.2}, nil
}

type calibratingMic struct{ fakeMic }

func (m *calibratingMic) Calibrate(context.Context, time.Duration) error {
	m.calibrated = true
	return nil
}

// scriptRecognizer replays results in order and then repeats the last one.
type scriptRecognizer struct {
	mu    sync.Mutex
	steps []step
	i     int
}

type step struct {
	tr  Transcript
	err error
}

func (r *scriptRecognizer) Recognize(context.Context, []float32) (Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.steps[min(r.i, len(r.steps)-1)]
	r.i++
	return s.tr, s.err
}

func said(text string) step { return step{tr: Transcript{Text: text, Confidence: 1}} }

type recordingSynth struct {
	mu     sync.Mutex
	spoken []string
}

func (s *recordingSynth) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

func drain(b *Bridge) []string {
	var out []string
	for {
		s, ok := b.Poll()
		if !ok {
			return out
		}
		out = append(out, s)
	}
}

func TestBridge_StopHaltsEnqueueing(t *testing.T) {
	b := NewBridge(&fakeMic{}, &scriptRecognizer{steps: []step{said("hello")}}, WithPause(time.Millisecond))
	require.NoError(t, b.Start())
	assert.Equal(t, Listening, b.State())

	require.Eventually(t, func() bool { return b.Pending() >= 3 }, time.Second, time.Millisecond)

	b.Stop()
	assert.Equal(t, Idle, b.State())
	b.Wait()

	got := drain(b)
	assert.GreaterOrEqual(t, len(got), 3)
	for _, s := range got {
		assert.Equal(t, "hello", s)
	}

	time.Sleep(20 * time.Millisecond)
	_, ok := b.Poll()
	assert.False(t, ok, "nothing is enqueued after the loop exits")
}

func TestBridge_DiscardsFailures(t *testing.T) {
	rec := &scriptRecognizer{steps: []step{
		{err: ErrTimeout},
		{err: ErrUnintelligible},
		{err: ErrNetwork},
		{err: errors.New("boom")},
		{tr: Transcript{Text: "   ", Confidence: 1}},
		{tr: Transcript{Text: "mumble", Confidence: 0.2}},
		said("what time is it"),
	}}
	b := NewBridge(&fakeMic{}, rec, WithPause(time.Millisecond), WithMinConfidence(func() float64 { return 0.7 }))
	require.NoError(t, b.Start())

	var first string
	require.Eventually(t, func() bool {
		s, ok := b.Poll()
		first = s
		return ok
	}, time.Second, time.Millisecond)

	b.Stop()
	b.Wait()
	assert.Equal(t, "what time is it", first)
}

func TestBridge_StopCancelsCapture(t *testing.T) {
	mic := &fakeMic{block: true}
	b := NewBridge(mic, &scriptRecognizer{steps: []step{said("x")}})
	require.NoError(t, b.Start())
	require.Eventually(t, func() bool { return mic.calls.Load() > 0 }, time.Second, time.Millisecond)

	b.Stop()
	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after Stop")
	}
	assert.Zero(t, b.Pending())
}

func TestBridge_StartTwiceAndRestart(t *testing.T) {
	b := NewBridge(&fakeMic{}, &scriptRecognizer{steps: []step{said("again")}}, WithPause(time.Millisecond))
	require.NoError(t, b.Start())
	require.NoError(t, b.Start())
	b.Stop()
	b.Stop()
	b.Wait()
	drain(b)

	require.NoError(t, b.Start())
	require.Eventually(t, func() bool { return b.Pending() > 0 }, time.Second, time.Millisecond)
	b.Stop()
	b.Wait()
}

func TestBridge_Unavailable(t *testing.T) {
	b := NewBridge(nil, nil)
	assert.False(t, b.CanListen())
	assert.False(t, b.CanSpeak())
	assert.ErrorIs(t, b.Start(), ErrUnavailable)
	_, err := b.ListenOnce(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, b.Speak(context.Background(), "hi"), ErrUnavailable)
	assert.ErrorIs(t, b.Calibrate(context.Background(), time.Second), ErrUnavailable)
	_, ok := b.Poll()
	assert.False(t, ok)
}

func TestBridge_ListenOnce(t *testing.T) {
	b := NewBridge(&fakeMic{}, &scriptRecognizer{steps: []step{said("  open calculator ")}})
	text, err := b.ListenOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "open calculator", text)

	require.NoError(t, b.Start())
	_, err = b.ListenOnce(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	b.Stop()
	b.Wait()
}

func TestBridge_ListenOnceLowConfidence(t *testing.T) {
	rec := &scriptRecognizer{steps: []step{{tr: Transcript{Text: "hmm", Confidence: 0.3}}}}
	b := NewBridge(&fakeMic{}, rec, WithMinConfidence(func() float64 { return 0.5 }))
	_, err := b.ListenOnce(context.Background())
	assert.ErrorIs(t, err, ErrUnintelligible)
	assert.True(t, Discardable(err))
}

func TestBridge_SpeakAndCalibrate(t *testing.T) {
	synth := &recordingSynth{}
	mic := &calibratingMic{}
	b := NewBridge(mic, &scriptRecognizer{steps: []step{said("x")}}, WithSynthesizer(synth))

	require.NoError(t, b.Speak(context.Background(), "Hello there"))
	require.NoError(t, b.Speak(context.Background(), "  "))
	assert.Equal(t, []string{"Hello there"}, synth.spoken)

	require.NoError(t, b.Calibrate(context.Background(), time.Millisecond))
	assert.True(t, mic.calibrated)
}

func TestQueue(t *testing.T) {
	var q queue
	_, ok := q.pop()
	assert.False(t, ok)

	for _, s := range []string{"a", "b", "c"} {
		q.push(s)
	}
	assert.Equal(t, 3, q.len())
	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Zero(t, q.len())
}

func TestBridge_Transcribe(t *testing.T) {
	b := NewBridge(nil, &scriptRecognizer{steps: []step{said("upload text")}})
	assert.True(t, b.CanTranscribe())
	assert.False(t, b.CanListen())

	text, err := b.Transcribe(context.Background(), []float32{0.1})
	require.NoError(t, err)
	assert.Equal(t, "upload text", text)

	_, err = NewBridge(nil, nil).Transcribe(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}
