package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PassphraseEnv is the environment variable consulted for the kdbx passphrase.
const PassphraseEnv = "STACK_KDBX_PASS"

// ErrNoPassphrase is returned when no passphrase source is available.
var ErrNoPassphrase = errors.New("missing --password and $" + PassphraseEnv +
	" env var value and --interactive is not set")

// PassphraseOptions lists the passphrase sources in precedence order.
type PassphraseOptions struct {
	// Flag is the value of --password.
	Flag string
	// Env is the value of $STACK_KDBX_PASS.
	Env string
	// Interactive allows prompting.
	Interactive bool
	// Prompt reads a secret from the user. Defaults to PromptTerminal.
	Prompt func(label string) (string, error)
}

// Passphrase picks the first available source: flag, environment, then prompt.
func Passphrase(opts PassphraseOptions) (string, error) {
	if opts.Flag != "" {
		return opts.Flag, nil
	}
	if opts.Env != "" {
		return opts.Env, nil
	}
	if !opts.Interactive {
		return "", ErrNoPassphrase
	}
	prompt := opts.Prompt
	if prompt == nil {
		prompt = PromptTerminal
	}
	return prompt("Password:")
}

// PromptTerminal reads a line from the terminal on stdin without echoing it.
func PromptTerminal(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for %q: stdin is not a terminal", strings.TrimSuffix(label, ":"))
	}
	fmt.Fprint(os.Stderr, label+" ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ":"), err)
	}
	return string(raw), nil
}
