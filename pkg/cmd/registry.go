package cmd

import (
	"fmt"
	"sort"
)

// Registry stores commands by name. Dispatch is left to adapters.
type Registry struct {
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds c. Names are unique.
func (r *Registry) Register(c Command) error {
	if _, exists := r.commands[c.Name()]; exists {
		return fmt.Errorf("command %q already registered", c.Name())
	}
	r.commands[c.Name()] = c
	return nil
}

// Get returns the command with the given name, or nil.
func (r *Registry) Get(name string) Command {
	return r.commands[name]
}

// All returns the registered commands sorted by name.
func (r *Registry) All() []Command {
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}
