package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Command is one prefixed chat command.
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Help    string

	// AdminOnly commands require community management permission.
	AdminOnly bool
	// OwnerOnly commands only answer to the configured owner.
	OwnerOnly bool

	Run func(ctx context.Context, inv *Invocation) error
}

// Extension is a named group of commands.
type Extension interface {
	Name() string
	Commands() []Command
}

// MessageHandler is implemented by extensions that inspect every non-command
// message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, inv *Invocation)
}

// Registry holds the registered extensions and resolves command names,
// aliases included.
type Registry struct {
	mu         sync.RWMutex
	extensions map[string]Extension
	commands   map[string]*Command
}

func NewRegistry() *Registry {
	return &Registry{
		extensions: make(map[string]Extension),
		commands:   make(map[string]*Command),
	}
}

// Register adds an extension and its commands. Duplicate extension or
// command names are rejected.
func (r *Registry) Register(ext Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := ext.Name()
	if _, exists := r.extensions[name]; exists {
		return fmt.Errorf("extension %s already registered", name)
	}

	commands := ext.Commands()
	for i := range commands {
		cmd := &commands[i]
		for _, alias := range append([]string{cmd.Name}, cmd.Aliases...) {
			alias = strings.ToLower(alias)
			if _, exists := r.commands[alias]; exists {
				return fmt.Errorf("command %s already registered", alias)
			}
			r.commands[alias] = cmd
		}
	}

	r.extensions[name] = ext
	return nil
}

// Command resolves a command by name or alias.
func (r *Registry) Command(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// Extensions returns the registered extensions sorted by name.
func (r *Registry) Extensions() []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.extensions))
	for name := range r.extensions {
		names = append(names, name)
	}
	sort.Strings(names)

	extensions := make([]Extension, 0, len(names))
	for _, name := range names {
		extensions = append(extensions, r.extensions[name])
	}
	return extensions
}
