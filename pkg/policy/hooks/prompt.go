package hooks

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

// answer is the outcome of one review prompt.
type answer int

const (
	answerYes answer = iota
	answerNo
	answerInspect
	answerInterrupt
)

// promptFn asks the user one review question. Replaceable in tests.
var promptFn = promptTTY

// promptTTY reads one line from the controlling terminal. Prompting on
// /dev/tty keeps the answer out of the hosted program's stdin; without a
// terminal it falls back to the process stdin.
func promptTTY(question string) (answer, error) {
	cfg := &readline.Config{
		Prompt:                 question,
		DisableAutoSaveHistory: true,
	}
	if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		defer tty.Close()
		cfg.Stdin = tty
		cfg.Stdout = tty
		cfg.Stderr = tty
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return answerInterrupt, err
	}
	defer rl.Close()

	line, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return answerInterrupt, nil
	}
	if err != nil {
		return answerInterrupt, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return answerYes, nil
	case "i", "inspect":
		return answerInspect, nil
	default:
		return answerNo, nil
	}
}
