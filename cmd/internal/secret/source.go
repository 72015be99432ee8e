package secret

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a secret from an environment variable or by
// prompting the operator. The value is cached after the first successful
// retrieval.
type Source struct {
	envVar string
	label  string
	prompt io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a source that checks envVar before prompting for label
// on the terminal.
func NewSource(envVar, label string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar), label: label, prompt: os.Stderr}
}

// Get returns the cached secret or resolves it on first use. Whitespace-only
// secrets are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = strings.TrimSpace(value)
				return
			}
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			if s.envVar != "" {
				s.err = fmt.Errorf("%s required; set %s or run interactively", s.label, s.envVar)
			} else {
				s.err = fmt.Errorf("%s required and no terminal available", s.label)
			}
			return
		}

		fmt.Fprintf(s.prompt, "Enter %s: ", s.label)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(s.prompt)
		if err != nil {
			s.err = fmt.Errorf("read %s: %w", s.label, err)
			return
		}

		value := strings.TrimSpace(string(raw))
		if value == "" {
			s.err = errors.New(s.label + " cannot be empty")
			return
		}
		s.value = value
	})

	return s.value, s.err
}
