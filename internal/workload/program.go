// Package workload parses and runs the small programs that kernel threads
// execute on the host.
//
// A program is a list of statements separated by newlines or semicolons.
// Each statement is tokenized with shell quoting rules:
//
//	spin N       run N preemptible busy iterations
//	sleep D      sleep for duration D ("5ms")
//	yield        give up the CPU
//	lock M       acquire semaphore M
//	unlock M     release semaphore M
//	down S       acquire semaphore S
//	up S         release semaphore S
//	send B TEXT  send TEXT to mailbox B
//	recv B       receive one message from mailbox B
//	log TEXT     write TEXT to the run log
package workload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

var (
	// ErrSyntax is wrapped by every parse failure.
	ErrSyntax = errors.New("workload syntax error")
	// ErrUnknownObject is wrapped when a program names a semaphore or
	// mailbox that does not exist.
	ErrUnknownObject = errors.New("unknown workload object")
)

// Op is a statement kind.
type Op uint8

const (
	OpSpin Op = iota + 1
	OpSleep
	OpYield
	OpLock
	OpUnlock
	OpDown
	OpUp
	OpSend
	OpRecv
	OpLog
)

var opNames = map[string]Op{
	"spin":   OpSpin,
	"sleep":  OpSleep,
	"yield":  OpYield,
	"lock":   OpLock,
	"unlock": OpUnlock,
	"down":   OpDown,
	"up":     OpUp,
	"send":   OpSend,
	"recv":   OpRecv,
	"log":    OpLog,
}

func (o Op) String() string {
	for name, op := range opNames {
		if op == o {
			return name
		}
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Step is one parsed statement.
type Step struct {
	Op     Op
	N      int
	D      time.Duration
	Object string
	Text   string
}

// Program is a parsed statement list.
type Program []Step

// Parse tokenizes and checks src.
func Parse(src string) (Program, error) {
	var prog Program
	for lineNo, line := range strings.Split(src, "\n") {
		for _, stmt := range strings.Split(line, ";") {
			words, err := shlex.Split(stmt)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrSyntax, lineNo+1, err)
			}
			if len(words) == 0 {
				continue
			}
			step, err := parseStep(words)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrSyntax, lineNo+1, words[0], err)
			}
			prog = append(prog, step)
		}
	}
	if len(prog) == 0 {
		return nil, fmt.Errorf("%w: empty program", ErrSyntax)
	}
	return prog, nil
}

func parseStep(words []string) (Step, error) {
	op, ok := opNames[strings.ToLower(words[0])]
	if !ok {
		return Step{}, errors.New("unknown statement")
	}
	args := words[1:]
	step := Step{Op: op}
	switch op {
	case OpYield:
		if len(args) != 0 {
			return step, errors.New("takes no arguments")
		}
	case OpSpin:
		if len(args) != 1 {
			return step, errors.New("want an iteration count")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return step, fmt.Errorf("bad count %q", args[0])
		}
		step.N = n
	case OpSleep:
		if len(args) != 1 {
			return step, errors.New("want a duration")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil || d < 0 {
			return step, fmt.Errorf("bad duration %q", args[0])
		}
		step.D = d
	case OpLock, OpUnlock, OpDown, OpUp, OpRecv:
		if len(args) != 1 {
			return step, errors.New("want one object name")
		}
		step.Object = args[0]
	case OpSend:
		if len(args) < 2 {
			return step, errors.New("want a mailbox and a message")
		}
		step.Object = args[0]
		step.Text = strings.Join(args[1:], " ")
	case OpLog:
		if len(args) == 0 {
			return step, errors.New("want a message")
		}
		step.Text = strings.Join(args, " ")
	}
	return step, nil
}

func (s Step) String() string {
	switch s.Op {
	case OpSpin:
		return fmt.Sprintf("spin %d", s.N)
	case OpSleep:
		return "sleep " + s.D.String()
	case OpYield:
		return "yield"
	case OpSend:
		return fmt.Sprintf("send %s %q", s.Object, s.Text)
	case OpLog:
		return fmt.Sprintf("log %q", s.Text)
	default:
		return s.Op.String() + " " + s.Object
	}
}
