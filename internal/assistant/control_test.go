package assistant

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/ipc"
	"jarvis/internal/speech"
)

func TestControl(t *testing.T) {
	f := newFixture(t, fixedRecognizer{text: "calculate 6 * 7"}, nil)
	ctx := context.Background()

	r := f.a.Control(ctx, ipc.ControlMessage{Cmd: ipc.CmdSay, Text: "2 + 2"})
	require.True(t, r.OK, r.Error)
	assert.Contains(t, r.Text, "4")

	r = f.a.Control(ctx, ipc.ControlMessage{Cmd: ipc.CmdSay})
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "empty command")

	r = f.a.Control(ctx, ipc.ControlMessage{Cmd: ipc.CmdListen})
	require.True(t, r.OK, r.Error)
	assert.Equal(t, "calculate 6 * 7\nThe result is: 42", r.Text)

	r = f.a.Control(ctx, ipc.ControlMessage{Cmd: ipc.CmdStats})
	require.True(t, r.OK)
	assert.Contains(t, r.Text, "Commands processed: 2")
	assert.Contains(t, r.Text, "Conversations: 2")

	r = f.a.Control(ctx, ipc.ControlMessage{Cmd: ipc.CmdClear})
	require.True(t, r.OK)
	assert.Zero(t, f.a.Stats(ctx).Commands)

	r = f.a.Control(ctx, ipc.ControlMessage{Cmd: "dance"})
	assert.False(t, r.OK)
	assert.Equal(t, "unknown command: dance", r.Error)
}

func TestControlListenNothing(t *testing.T) {
	f := newFixture(t, fixedRecognizer{err: speech.ErrTimeout}, nil)
	r := f.a.Control(context.Background(), ipc.ControlMessage{Cmd: ipc.CmdListen})
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "nothing recognized")
}

func TestControlStartStop(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	r := f.a.Control(ctx, ipc.ControlMessage{Cmd: ipc.CmdStart})
	assert.False(t, r.OK, "no recognizer, nothing to listen with")

	r = f.a.Control(ctx, ipc.ControlMessage{Cmd: ipc.CmdStop})
	assert.True(t, r.OK)
}

func TestControlOverSocket(t *testing.T) {
	f := newFixture(t, nil, nil)
	path := shortSocketPath(t)

	srv, err := ipc.Listen(path, f.a.Control)
	require.NoError(t, err)
	defer srv.Close()

	r, err := ipc.Send(path, ipc.ControlMessage{Cmd: ipc.CmdSay, Text: "tell me a joke"}, 0)
	require.NoError(t, err)
	assert.True(t, r.OK)
	assert.NotEmpty(t, r.Text)
}

func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "jv")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}
