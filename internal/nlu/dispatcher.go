package nlu

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"jarvis/internal/calc"
)

const CalcApology = "I can help with calculations, but I need a clearer mathematical expression. Try something like '2 + 2' or 'calculate 10 * 5'"

var (
	greetings = []string{
		"Hello! I'm JARVIS, your AI assistant. How can I help you today?",
		"Greetings! JARVIS at your service. What can I do for you?",
		"Hi there! Ready to assist you with anything you need.",
		"Good day! JARVIS here, ready for your commands.",
	}
	jokes = []string{
		"Why don't scientists trust atoms? Because they make up everything!",
		"Why did the AI go to therapy? It had too many deep learning issues!",
		"What do you call a computer that sings? A-Dell!",
		"Why don't robots ever panic? They have great artificial composure!",
		"What's an AI's favorite type of music? Algo-rhythms!",
	}
	farewells = []string{
		"Goodbye! Feel free to call on me anytime you need assistance.",
		"See you later! I'll be here whenever you need help.",
		"Until next time! Stay safe and productive.",
		"Farewell! It was a pleasure assisting you today.",
	}
	unknowns = []string{
		"I'm not sure I understand '%s'. Could you rephrase that?",
		"That's an interesting request! I'm still learning. Can you try asking differently?",
		"I don't have that capability yet, but I'm always improving. What else can I help with?",
		"Could you clarify what you'd like me to do? I'm here to help!",
	}
	conditions = []string{"sunny", "cloudy", "rainy", "partly cloudy", "clear"}
)

// Controller performs system actions on behalf of the system intent.
type Controller interface {
	Execute(ctx context.Context, command string) string
}

type Responder struct {
	sys Controller
	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Responder)

// WithController routes the system intent to c instead of describing the action.
func WithController(c Controller) Option {
	return func(r *Responder) { r.sys = c }
}

func WithClock(now func() time.Time) Option {
	return func(r *Responder) { r.now = now }
}

func WithRand(rnd *rand.Rand) Option {
	return func(r *Responder) { r.rnd = rnd }
}

func NewResponder(opts ...Option) *Responder {
	r := &Responder{
		now: time.Now,
		rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond produces the reply text for an already classified command.
func (r *Responder) Respond(ctx context.Context, intent Intent, command string) string {
	cmd := Normalize(command)

	switch intent {
	case Greeting:
		return r.pick(greetings)
	case Time:
		return "The current time is " + r.now().Format("03:04 PM")
	case Date:
		return "Today is " + r.now().Format("Monday, January 02, 2006")
	case Weather:
		return r.weather()
	case System:
		if r.sys != nil {
			return r.sys.Execute(ctx, cmd)
		}
		return describeSystem(cmd)
	case Calculation:
		return calculate(cmd)
	case Joke:
		return r.pick(jokes)
	case Goodbye:
		return r.pick(farewells)
	default:
		s := r.pick(unknowns)
		if strings.Contains(s, "%s") {
			s = fmt.Sprintf(s, strings.TrimSpace(command))
		}
		return s
	}
}

// Process classifies and answers in one step.
func (r *Responder) Process(ctx context.Context, command string) (Intent, string) {
	intent := Classify(command)
	return intent, r.Respond(ctx, intent, command)
}

func (r *Responder) weather() string {
	r.mu.Lock()
	temp := 15 + r.rnd.IntN(16)
	cond := conditions[r.rnd.IntN(len(conditions))]
	r.mu.Unlock()

	return fmt.Sprintf("I'd need access to a weather API for real data, but here's a demo: "+
		"It's %d°C and %s outside. For real weather data, please integrate with a weather service.", temp, cond)
}

func (r *Responder) pick(list []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return list[r.rnd.IntN(len(list))]
}

func calculate(cmd string) string {
	v, err := calc.Calculate(cmd)
	if err != nil {
		return CalcApology
	}
	return "The result is: " + calc.Format(v)
}

func describeSystem(cmd string) string {
	switch {
	case strings.Contains(cmd, "open"):
		switch {
		case strings.Contains(cmd, "calculator"):
			return "Calculator would be opened (system integration needed for actual execution)"
		case strings.Contains(cmd, "notepad"):
			return "Notepad would be opened (system integration needed for actual execution)"
		case strings.Contains(cmd, "browser"), strings.Contains(cmd, "chrome"):
			return "Browser would be opened (system integration needed for actual execution)"
		default:
			return "System command recognized but specific application not identified"
		}
	case strings.Contains(cmd, "shutdown"):
		return "Shutdown command received (would require elevated permissions in actual implementation)"
	default:
		return "System command recognized but not implemented in this demo version"
	}
}
