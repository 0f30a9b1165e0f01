package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/wenlang/wen/pkg/corelib"
	"github.com/wenlang/wen/pkg/heap"
	"github.com/wenlang/wen/pkg/vm"
)

// replCommand hosts an interactive session: one persistent Heap and VM
// across every line, so globals and classes declared in an earlier line
// stay visible to later ones. chzyer/readline supplies line editing and
// history; multi-line continuation is handled here, by buffering lines
// until braceDepth reports every '{' closed.
func replCommand(ctx context.Context, cmd *cli.Command) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wen> ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "再见！",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	verbose := cmd.Bool("verbose")
	logger := newLogger(verbose)
	defer logger.Sync()

	h := heap.New(nil)
	machine := vm.New(h, logger)
	corelib.Register(machine)

	fmt.Printf("wen %s — 输入 :退出 结束\n", version)

	var buf strings.Builder
	for {
		prompt := "wen> "
		if buf.Len() > 0 {
			prompt = "...> "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err != nil {
			return nil
		}

		if buf.Len() == 0 {
			switch strings.TrimSpace(line) {
			case ":退出", ":exit", ":quit":
				return nil
			case "":
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteString("\n")

		if braceDepth(buf.String()) > 0 {
			continue
		}

		source := buf.String()
		buf.Reset()

		if _, err := machine.Interpret(source); err != nil {
			printRuntimeError(err, verbose)
		}
	}
}

// braceDepth counts unterminated `{`/`}` across the REPL's accumulated
// input, the trigger for continuing to the next line instead of running
// what's been typed so far.
func braceDepth(src string) int {
	depth := 0
	inString := false
	for _, r := range src {
		switch {
		case r == '"':
			inString = !inString
		case inString:
			continue
		case r == '{':
			depth++
		case r == '}':
			depth--
		}
	}
	return depth
}

func historyFilePath() string {
	return ".wenc_history"
}
