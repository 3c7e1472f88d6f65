package assistant

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/history"
	"jarvis/internal/nlu"
	"jarvis/internal/prefs"
	"jarvis/internal/speech"
)

type oneShotMic struct{}

func (oneShotMic) Capture(context.Context, time.Duration) ([]float32, error) {
	return []float32{0.2}, nil
}

type fixedRecognizer struct {
	text string
	err  error
}

func (r fixedRecognizer) Recognize(context.Context, []float32) (speech.Transcript, error) {
	return speech.Transcript{Text: r.text, Confidence: 1}, r.err
}

type synth struct {
	mu     sync.Mutex
	spoken []string
}

func (s *synth) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *synth) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type failingStore struct{ history.Store }

func (failingStore) Append(context.Context, string, string) error { return errors.New("disk full") }

type fixture struct {
	a     *Assistant
	synth *synth
	prefs *prefs.Store
}

func newFixture(t *testing.T, rec speech.Recognizer, store history.Store) fixture {
	t.Helper()
	dir := t.TempDir()
	if store == nil {
		store = history.NewFileStore(filepath.Join(dir, "history.json"), 100)
	}
	p := prefs.Load(filepath.Join(dir, "prefs.json"))
	s := &synth{}
	bridge := speech.NewBridge(oneShotMic{}, rec, speech.WithSynthesizer(s), speech.WithPause(time.Millisecond))
	resp := nlu.NewResponder(nlu.WithRand(rand.New(rand.NewPCG(3, 4))))

	a := New(resp, store, p, bridge)
	t.Cleanup(a.Close)
	return fixture{a: a, synth: s, prefs: p}
}

func TestHandle(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	r, err := f.a.Handle(ctx, "  2 + 2  ")
	require.NoError(t, err)
	assert.Equal(t, nlu.Calculation, r.Intent)
	assert.Equal(t, "2 + 2", r.Command)
	assert.Contains(t, r.Response, "4")
	assert.False(t, r.Timestamp.IsZero())

	recs, err := f.a.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, history.RoleUser, recs[0].Role)
	assert.Equal(t, "2 + 2", recs[0].Content)
	assert.Equal(t, r.Response, recs[1].Content)

	f.a.Close()
	assert.Equal(t, []string{r.Response}, f.synth.said(), "voice is enabled by default")
}

func TestHandleWakeWordAndSanitize(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	r, err := f.a.Handle(ctx, "JARVIS, what time is it?")
	require.NoError(t, err)
	assert.Equal(t, "what time is it?", r.Command)
	assert.Equal(t, nlu.Time, r.Intent)

	r, err = f.a.Handle(ctx, `<script>hello</script>`)
	require.NoError(t, err)
	assert.Equal(t, "scripthello/script", r.Command)
	assert.Equal(t, nlu.Greeting, r.Intent)
}

func TestHandleEmpty(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, in := range []string{"", "   ", "<>;|"} {
		_, err := f.a.Handle(context.Background(), in)
		assert.ErrorIs(t, err, ErrEmptyCommand, in)
	}
	assert.Zero(t, f.a.Stats(context.Background()).Commands)
}

func TestHandleVoiceDisabled(t *testing.T) {
	f := newFixture(t, nil, nil)
	p := prefs.Defaults()
	p.VoiceEnabled = false
	_, err := f.a.SavePreferences(p)
	require.NoError(t, err)

	_, err = f.a.Handle(context.Background(), "hello")
	require.NoError(t, err)
	f.a.Close()
	assert.Empty(t, f.synth.said())
}

func TestHandleHistoryFailure(t *testing.T) {
	f := newFixture(t, nil, failingStore{history.NewFileStore(filepath.Join(t.TempDir(), "h.json"), 10)})
	r, err := f.a.Handle(context.Background(), "tell me a joke")
	require.NoError(t, err, "a failed history write still answers")
	assert.Equal(t, nlu.Joke, r.Intent)
}

func TestStatsAndClear(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	for _, c := range []string{"hello", "what date is it", "bye"} {
		_, err := f.a.Handle(ctx, c)
		require.NoError(t, err)
	}

	st := f.a.Stats(ctx)
	assert.Equal(t, 3, st.Commands)
	assert.Equal(t, 3, st.Conversations)
	assert.False(t, st.Listening)
	assert.True(t, st.CanSpeak)
	assert.False(t, st.CanListen, "no recognizer configured")

	require.NoError(t, f.a.Clear(ctx))
	st = f.a.Stats(ctx)
	assert.Zero(t, st.Commands)
	assert.Zero(t, st.Conversations)

	recs, err := f.a.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestListen(t *testing.T) {
	f := newFixture(t, fixedRecognizer{text: "Jarvis open sesame"}, nil)
	cued := false
	f.a.cue = func(context.Context) { cued = true }

	r, err := f.a.Listen(context.Background())
	require.NoError(t, err)
	assert.True(t, cued)
	assert.Equal(t, "open sesame", r.Command)
	assert.Equal(t, nlu.System, r.Intent)
}

func TestListenFailure(t *testing.T) {
	f := newFixture(t, fixedRecognizer{err: speech.ErrNetwork}, nil)
	_, err := f.a.Listen(context.Background())
	assert.ErrorIs(t, err, speech.ErrNetwork)
	assert.Zero(t, f.a.Stats(context.Background()).Commands)
}

func TestHandleAudio(t *testing.T) {
	f := newFixture(t, fixedRecognizer{text: "tell me a joke"}, nil)
	r, err := f.a.HandleAudio(context.Background(), []float32{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, nlu.Joke, r.Intent)
}

func TestContinuousListening(t *testing.T) {
	f := newFixture(t, fixedRecognizer{text: "hello"}, nil)
	ctx := context.Background()

	require.NoError(t, f.a.StartListening())
	assert.True(t, f.a.Stats(ctx).Listening)

	var replies []Reply
	require.Eventually(t, func() bool {
		replies = append(replies, f.a.DrainVoice(ctx)...)
		return len(replies) >= 2
	}, time.Second, 5*time.Millisecond)

	f.a.StopListening()
	f.a.Voice().Wait()
	replies = append(replies, f.a.DrainVoice(ctx)...)
	for _, r := range replies {
		assert.Equal(t, nlu.Greeting, r.Intent)
	}
	assert.Empty(t, f.a.DrainVoice(ctx))
	assert.False(t, f.a.Stats(ctx).Listening)
}

func TestStartListeningUnavailable(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.ErrorIs(t, f.a.StartListening(), speech.ErrUnavailable)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "rm -rf / ls", Sanitize("rm -rf /; ls"))
	assert.Equal(t, "ls  cat", Sanitize("`ls` | cat"))
	assert.Equal(t, "Whats 2+2", Sanitize(`"What's 2+2"`))
	assert.Len(t, []rune(Sanitize(strings.Repeat("é", 600))), 500)
}

func TestStripWakeWord(t *testing.T) {
	tbl := []struct{ in, wake, want string }{
		{"jarvis open calculator", "jarvis", "open calculator"},
		{"Jarvis, what time is it", "jarvis", "what time is it"},
		{"JARVIS: (2+3)*4", "jarvis", "(2+3)*4"},
		{"jarvis", "jarvis", "jarvis"},
		{"jarvis!", "jarvis", "jarvis!"},
		{"jarvisx hello", "jarvis", "jarvisx hello"},
		{"hello jarvis", "jarvis", "hello jarvis"},
		{"computer hello", "computer", "hello"},
		{"computer hello", "jarvis", "computer hello"},
		{"jarvis hi", "", "jarvis hi"},
	}
	for _, tt := range tbl {
		assert.Equal(t, tt.want, StripWakeWord(tt.in, tt.wake), tt.in)
	}
}
