package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"jarvis/internal/ipc"
)

const usage = `Usage: jarvis-ctl [flags] <command> [text...]

Commands:
  say <text>   send a typed command
  listen       capture and answer one spoken command
  start        start continuous listening
  stop         stop continuous listening
  clear        clear the conversation history
  stats        print session statistics

Flags:
`

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	timeout := cli.DurationP("timeout", "t", time.Minute, "Reply timeout")
	cli.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0], Text: strings.Join(args[1:], " ")}
	reply, err := ipc.Send(*socket, msg, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jarvis-daemon not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Fprintln(os.Stderr, "error:", reply.Error)
		os.Exit(1)
	}
	fmt.Println(reply.Text)
}
