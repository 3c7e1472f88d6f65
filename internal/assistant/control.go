package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"github.com/dustin/go-humanize"

	"jarvis/internal/ipc"
	"jarvis/internal/speech"
)

// Control serves one control-socket request.
func (a *Assistant) Control(ctx context.Context, msg ipc.ControlMessage) ipc.ControlReply {
	switch msg.Cmd {
	case ipc.CmdSay:
		r, err := a.Handle(ctx, msg.Text)
		if err != nil {
			return ipc.Fail(err)
		}
		return ipc.Reply(r.Response)

	case ipc.CmdListen:
		r, err := a.Listen(ctx)
		if err != nil {
			if speech.Discardable(err) {
				log.Info("Nothing recognized", "err", err)
				return ipc.Fail(fmt.Errorf("nothing recognized: %w", err))
			}
			return ipc.Fail(err)
		}
		return ipc.Reply(fmt.Sprintf("%s\n%s", r.Command, r.Response))

	case ipc.CmdStart:
		if err := a.StartListening(); err != nil {
			return ipc.Fail(err)
		}
		return ipc.Reply("Listening")

	case ipc.CmdStop:
		a.StopListening()
		return ipc.Reply("Stopped listening")

	case ipc.CmdClear:
		if err := a.Clear(ctx); err != nil {
			return ipc.Fail(err)
		}
		return ipc.Reply("Conversation history cleared")

	case ipc.CmdStats:
		st := a.Stats(ctx)
		return ipc.Reply(fmt.Sprintf("Session started %s\nCommands processed: %d\nConversations: %d\nVoice: %s",
			humanize.Time(st.SessionStart), st.Commands, st.Conversations, st.Voice))

	default:
		return ipc.Fail(errors.New("unknown command: " + msg.Cmd))
	}
}
