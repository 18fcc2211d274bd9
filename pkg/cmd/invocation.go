// Package cmd is the transport-agnostic command core: a command has a name, a
// description and Run(ctx, invocation). Adapters decide how commands are
// registered and dispatched and what they carry in the invocation.
package cmd

import "context"

// Invocation is what an adapter hands to a command. Data holds the adapter's
// own request type.
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
