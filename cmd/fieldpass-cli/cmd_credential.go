package main

import (
	"fmt"
)

// ---- Credential Commands ----

func (c *CLI) credentialCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fieldpass-cli credential <subcommand>")
	}

	sub := args[0]
	args = args[1:]

	switch sub {
	case "reset":
		if len(args) < 1 {
			return fmt.Errorf("usage: fieldpass-cli credential reset <worker-id>")
		}
		return c.delete("/api/v1/enroll/credentials/" + args[0])
	default:
		return fmt.Errorf("unknown credential subcommand: %s", sub)
	}
}
