package command

import "fmt"

func errUnknownSubcommand(name string) error {
	return fmt.Errorf("unknown subcommand %q", name)
}
