package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a secret from an environment variable or by prompting on
// the terminal. The value is cached after the first successful read.
type Source struct {
	envVar     string
	label      string
	allowEmpty bool

	once  sync.Once
	value string
	err   error

	// lookupEnv and prompt are swapped in tests.
	lookupEnv func(string) (string, bool)
	prompt    func(label string) (string, error)
}

// NewSource constructs a source that checks envVar before prompting for
// label.
func NewSource(envVar, label string) *Source {
	return &Source{
		envVar:    strings.TrimSpace(envVar),
		label:     label,
		lookupEnv: os.LookupEnv,
		prompt:    promptTerminal,
	}
}

// AllowEmpty accepts blank secrets, for keystores written without a
// passphrase.
func (s *Source) AllowEmpty() *Source {
	s.allowEmpty = true
	return s
}

// Fixed returns a source that always yields value.
func Fixed(value string) *Source {
	s := &Source{value: value}
	s.once.Do(func() {})
	return s
}

// Get returns the cached secret or resolves it on first use. Whitespace-only
// secrets are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := s.lookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" && !s.allowEmpty {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		value, err := s.prompt(s.label)
		if err != nil {
			if s.envVar != "" {
				s.err = fmt.Errorf("%s required; set %s or run interactively: %w", s.label, s.envVar, err)
			} else {
				s.err = fmt.Errorf("%s required: %w", s.label, err)
			}
			return
		}
		if strings.TrimSpace(value) == "" && !s.allowEmpty {
			s.err = fmt.Errorf("%s cannot be empty", s.label)
			return
		}
		s.value = value
	})

	return s.value, s.err
}

var errNoTerminal = errors.New("no terminal available")

func promptTerminal(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoTerminal
	}
	fmt.Fprintf(os.Stderr, "Enter %s: ", label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return string(raw), nil
}
