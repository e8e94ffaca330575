// Package config loads the scheduler run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration written as a Go duration string ("20ms").
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", value.Line, err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds everything a run needs: machine parameters, logging, trace
// storage and the workload.
type Config struct {
	Quantum   Duration `yaml:"quantum"`    // normal-priority time slice
	Tick      Duration `yaml:"tick"`       // timer resolution
	Hz        int      `yaml:"hz"`         // clock steps per second
	Ticks     uint64   `yaml:"ticks"`      // stop after this many ticks; 0 runs until interrupted
	LogLevel  string   `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string   `yaml:"log_format"` // text, json
	TraceDB   string   `yaml:"trace_db"`   // sqlite path; empty disables the trace store

	Semaphores []Semaphore `yaml:"semaphores"`
	Mailboxes  []Mailbox   `yaml:"mailboxes"`
	Processes  []Process   `yaml:"processes"`
}

// Semaphore declares a named counting semaphore. Max 1 is a mutex.
type Semaphore struct {
	Name string `yaml:"name"`
	Max  int    `yaml:"max"`
}

// Mailbox declares a named message queue.
type Mailbox struct {
	Name  string `yaml:"name"`
	Slots int    `yaml:"slots"`
}

// Process declares a process and the threads it starts with.
type Process struct {
	Name        string   `yaml:"name"`
	PageContext uint64   `yaml:"page_context"`
	Threads     []Thread `yaml:"threads"`
}

// Thread declares a thread running a workload program.
type Thread struct {
	Name     string `yaml:"name"`
	Priority string `yaml:"priority"` // low, normal, high
	Repeat   int    `yaml:"repeat"`   // program iterations; 0 runs it once
	Program  string `yaml:"program"`
}

// DefaultConfig returns sensible defaults with an empty workload.
func DefaultConfig() Config {
	return Config{
		Quantum:   Duration(20 * time.Millisecond),
		Tick:      Duration(time.Millisecond),
		Hz:        100,
		Ticks:     1000,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Demo returns the defaults plus a small producer/consumer workload.
func Demo() Config {
	cfg := DefaultConfig()
	cfg.Semaphores = []Semaphore{{Name: "console", Max: 1}}
	cfg.Mailboxes = []Mailbox{{Name: "jobs", Slots: 4}}
	cfg.Processes = []Process{
		{
			Name:        "producer",
			PageContext: 0x1000,
			Threads: []Thread{
				{Name: "feed", Priority: "normal", Repeat: 8, Program: "spin 200; send jobs tick; sleep 5ms"},
			},
		},
		{
			Name:        "consumer",
			PageContext: 0x2000,
			Threads: []Thread{
				{Name: "drain", Priority: "high", Repeat: 8, Program: "recv jobs; lock console; log 'job done'; unlock console"},
				{Name: "crunch", Priority: "low", Repeat: 20, Program: "spin 500; yield"},
			},
		},
	}
	return cfg
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and name uniqueness. Program text is checked
// by the workload parser.
func (c Config) Validate() error {
	if c.Quantum <= 0 {
		return fmt.Errorf("%w: quantum must be positive", ErrInvalid)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive", ErrInvalid)
	}
	if c.Hz <= 0 {
		return fmt.Errorf("%w: hz must be positive", ErrInvalid)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}

	objects := map[string]string{}
	claim := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("%w: %s without a name", ErrInvalid, kind)
		}
		if prev, ok := objects[name]; ok {
			return fmt.Errorf("%w: %s %q already names a %s", ErrInvalid, kind, name, prev)
		}
		objects[name] = kind
		return nil
	}
	for _, s := range c.Semaphores {
		if err := claim("semaphore", s.Name); err != nil {
			return err
		}
		if s.Max < 1 {
			return fmt.Errorf("%w: semaphore %q max %d", ErrInvalid, s.Name, s.Max)
		}
	}
	for _, m := range c.Mailboxes {
		if err := claim("mailbox", m.Name); err != nil {
			return err
		}
		if m.Slots < 0 {
			return fmt.Errorf("%w: mailbox %q slots %d", ErrInvalid, m.Name, m.Slots)
		}
	}

	procs := map[string]bool{}
	for _, p := range c.Processes {
		if p.Name == "" {
			return fmt.Errorf("%w: process without a name", ErrInvalid)
		}
		if procs[p.Name] {
			return fmt.Errorf("%w: duplicate process %q", ErrInvalid, p.Name)
		}
		procs[p.Name] = true
		for _, t := range p.Threads {
			if t.Name == "" {
				return fmt.Errorf("%w: process %q has a thread without a name", ErrInvalid, p.Name)
			}
			if _, err := ParsePriority(t.Priority); err != nil {
				return fmt.Errorf("%w: thread %q: %v", ErrInvalid, t.Name, err)
			}
			if t.Repeat < 0 {
				return fmt.Errorf("%w: thread %q repeat %d", ErrInvalid, t.Name, t.Repeat)
			}
			if strings.TrimSpace(t.Program) == "" {
				return fmt.Errorf("%w: thread %q has no program", ErrInvalid, t.Name)
			}
		}
	}
	return nil
}
