// Package espeak speaks through the local espeak-ng library.
package espeak

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

int
espeak_say(const char *text, const char *lang, int rate)
{
	if (!text)
	{ return -1; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -2; }

	espeak_VOICE specs = { 0 };
	specs.languages = lang;
	espeak_SetVoiceByProperties(&specs);
	espeak_SetParameter(espeakRATE, rate, 0);

	espeak_Synth(text, 500, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"jarvis/internal/speech"
)

const baseRate = 175 // words per minute at speed 1.0

type Synthesizer struct {
	mu    sync.Mutex
	lang  string
	speed func() float64
}

// New reads speed before each utterance; nil means 1.0.
func New(lang string, speed func() float64) *Synthesizer {
	if lang == "" {
		lang = "en"
	}
	if speed == nil {
		speed = func() float64 { return 1 }
	}
	return &Synthesizer{lang: lang, speed: speed}
}

// Speak blocks until the utterance is played. ctx is only checked before
// starting; espeak cannot be interrupted mid-sentence.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	clang := C.CString(s.lang)
	defer C.free(unsafe.Pointer(clang))

	rate := int(float64(baseRate) * s.speed())
	if rc := C.espeak_say(ctext, clang, C.int(rate)); rc != 0 {
		return fmt.Errorf("%w: espeak_say failed: %d", speech.ErrUnavailable, int(rc))
	}
	return nil
}

var _ speech.Synthesizer = (*Synthesizer)(nil)
