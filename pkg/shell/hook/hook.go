// pkg/shell/hook/hook.go
//
// Package hook tracks the shell that is currently running so that code
// outside the shell can add commands to it.
package hook

import (
	"errors"
	"fmt"
	"sync"

	"bayeslite/pkg/shell"
)

// ErrNoCurrentShell is returned by AddCommand when no shell is current.
var ErrNoCurrentShell = errors.New("no current shell")

type registration struct {
	name string
	help string
	fn   shell.CommandFunc
}

var (
	mu         sync.Mutex
	current    *shell.Shell
	registered []registration
)

// SetCurrentShell makes sh the current shell and installs every command
// added with Register on it, skipping names sh already defines. The
// returned function restores the previous current shell and must be
// called when sh stops running.
func SetCurrentShell(sh *shell.Shell) (restore func(), err error) {
	mu.Lock()
	defer mu.Unlock()

	for _, r := range registered {
		if err := sh.AddCommand(r.name, r.help, r.fn); err != nil &&
			!errors.Is(err, shell.ErrCommandExists) {
			return nil, err
		}
	}

	prev := current
	current = sh
	return func() {
		mu.Lock()
		current = prev
		mu.Unlock()
	}, nil
}

// CurrentShell returns the current shell, or nil.
func CurrentShell() *shell.Shell {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// AddCommand adds a command to the current shell.
func AddCommand(name, help string, fn shell.CommandFunc) error {
	mu.Lock()
	sh := current
	mu.Unlock()

	if sh == nil {
		return fmt.Errorf("%w: cannot add %s", ErrNoCurrentShell, name)
	}
	return sh.AddCommand(name, help, fn)
}

// Register records a command to be added to every shell made current
// from now on, and to the current shell if there is one.
func Register(name, help string, fn shell.CommandFunc) error {
	mu.Lock()
	defer mu.Unlock()

	registered = append(registered, registration{name: name, help: help, fn: fn})
	if current != nil {
		return current.AddCommand(name, help, fn)
	}
	return nil
}
