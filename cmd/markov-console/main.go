/*
Copyright (C) 2026  Markovchain Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Command markov-console is an operator REPL that attaches to a
// running markovd's control socket and issues diagnostic commands
// (`stats <tenant>`, `generate <tenant> <maxLen> [seed...]`,
// `train-lock <tenant>`). Grounded on the teacher's scm/prompt.go
// readline loop; the evaluator here is "send a line, print the reply"
// instead of a scheme interpreter.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/chzyer/readline"
)

const (
	newprompt    = "\033[32m>\033[0m "
	resultprompt = "\033[31m=\033[0m "
)

func main() {
	socketPath := flag.String("socket", "markovd.sock", "path of the markovd control Unix-domain socket")
	flag.Parse()

	conn, err := net.Dial("unix", *socketPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "markov-console: connecting to", *socketPath, ":", err)
		os.Exit(1)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".markov-console-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		if line == "" {
			continue
		}

		if _, err := fmt.Fprintln(conn, line); err != nil {
			fmt.Fprintln(os.Stderr, "markov-console: write:", err)
			break
		}
		reply, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "markov-console: read:", err)
			break
		}
		fmt.Print(resultprompt)
		fmt.Print(reply)
	}
}
