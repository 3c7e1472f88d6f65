package nlu

import (
	"strings"
)

type Intent string

const (
	Greeting    Intent = "greeting"
	Time        Intent = "time"
	Date        Intent = "date"
	Weather     Intent = "weather"
	System      Intent = "system"
	Calculation Intent = "calculation"
	Joke        Intent = "joke"
	Goodbye     Intent = "goodbye"
	Unknown     Intent = "unknown"
)

type Category struct {
	Intent   Intent
	Keywords []string
}

// Categories is matched top to bottom; the first hit wins.
var Categories = []Category{
	{Greeting, []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}},
	{Time, []string{"time", "what time", "current time"}},
	{Date, []string{"date", "what date", "today", "current date"}},
	{Weather, []string{"weather", "temperature", "forecast"}},
	{System, []string{"open", "close", "launch", "start", "shutdown", "restart"}},
	{Calculation, []string{"calculate", "compute", "math", "+", "-", "*", "/"}},
	{Joke, []string{"joke", "funny", "humor", "laugh"}},
	{Goodbye, []string{"bye", "goodbye", "see you", "exit", "quit"}},
}

func Normalize(command string) string {
	return strings.ToLower(strings.TrimSpace(command))
}

// Classify maps a command to the first category owning a keyword that is a
// substring of the normalized command.
func Classify(command string) Intent {
	cmd := Normalize(command)
	if cmd == "" {
		return Unknown
	}

	for _, c := range Categories {
		for _, kw := range c.Keywords {
			if strings.Contains(cmd, kw) {
				return c.Intent
			}
		}
	}

	return Unknown
}

func Intents() []Intent {
	out := make([]Intent, 0, len(Categories)+1)
	for _, c := range Categories {
		out = append(out, c.Intent)
	}
	return append(out, Unknown)
}
