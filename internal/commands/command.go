package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mmproteo/internal/logging"
	"mmproteo/internal/preflight"
	"mmproteo/internal/services"
)

// Command is one user-facing action.
type Command interface {
	Name() string
	Description() string
	// Validate checks the session before any command runs.
	Validate(s *Session) error
	Run(ctx context.Context, s *Session) error
}

// Requirer is implemented by commands that depend on external programs or
// network access.
type Requirer interface {
	Needs() preflight.Needs
}

// Dispatcher resolves command names to implementations.
type Dispatcher struct {
	commands map[string]Command
}

// NewDispatcher registers cmds. Registering a name twice is an error.
func NewDispatcher(cmds ...Command) (*Dispatcher, error) {
	d := &Dispatcher{commands: make(map[string]Command, len(cmds))}
	for _, cmd := range cmds {
		if _, dup := d.commands[cmd.Name()]; dup {
			return nil, fmt.Errorf("command %q is already registered", cmd.Name())
		}
		d.commands[cmd.Name()] = cmd
	}
	return d, nil
}

// Default returns a dispatcher with every built-in command.
func Default() *Dispatcher {
	d, err := NewDispatcher(Builtins()...)
	if err != nil {
		panic(err)
	}
	return d
}

// Names lists the registered command names, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns one "name : description" line per command with padded names.
func (d *Dispatcher) Describe() string {
	names := d.Names()
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%-*s : %s", width, name, d.commands[name].Description()))
	}
	return strings.Join(lines, "\n")
}

// Resolve maps names to commands, keeping the first occurrence of repeated
// names. Unknown names are reported together.
func (d *Dispatcher) Resolve(names []string) ([]Command, error) {
	seen := make(map[string]struct{}, len(names))
	var resolved []Command
	var unknown []string
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cmd, ok := d.commands[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		resolved = append(resolved, cmd)
	}
	if len(unknown) > 0 {
		return nil, services.Wrap(services.ErrValidation, "", "dispatch",
			fmt.Sprintf("unknown command(s) %s; known commands are %s", strings.Join(unknown, ", "), strings.Join(d.Names(), ", ")), nil)
	}
	if len(resolved) == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "dispatch", "no command given", nil)
	}
	return resolved, nil
}

// Needs merges the requirements of cmds.
func Needs(cmds []Command) preflight.Needs {
	var needs preflight.Needs
	for _, cmd := range cmds {
		if r, ok := cmd.(Requirer); ok {
			needs = needs.Merge(r.Needs())
		}
	}
	return needs
}

// Dispatch validates every named command, then runs them in order. Warnings
// abort the remaining commands only under the fail-early policy; any other
// error aborts immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, names []string) error {
	cmds, err := d.Resolve(names)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := d.handle(s, cmd, "validation", cmd.Validate(s)); err != nil {
			return err
		}
	}
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := s.Logger.With(logging.String(logging.FieldCommand, cmd.Name()))
		logger.Debug("Running command")
		if err := d.handle(s, cmd, "run", cmd.Run(ctx, s)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handle(s *Session, cmd Command, phase string, err error) error {
	if err == nil {
		return nil
	}
	if !services.IsWarning(err) || s.Config.Processing.FailEarly {
		return fmt.Errorf("%s %s: %w", cmd.Name(), phase, err)
	}
	logging.WarnWithContext(s.Logger, services.Message(err), "command_warning",
		logging.String(logging.FieldCommand, cmd.Name()),
		logging.String("phase", phase),
		logging.String(logging.FieldImpact, "continuing with the next command"),
		logging.String(logging.FieldErrorHint, "set fail_early to stop at the first warning"))
	return nil
}
