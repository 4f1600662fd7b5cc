package main

import (
	"fmt"
)

// ---- Attendance Commands ----

func (c *CLI) attendanceCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fieldpass-cli attendance <subcommand>")
	}

	sub := args[0]
	args = args[1:]

	switch sub {
	case "approve":
		if len(args) < 1 {
			return fmt.Errorf("usage: fieldpass-cli attendance approve <event-id> [event-id ...]")
		}
		return c.approveEvents(args)
	default:
		return fmt.Errorf("unknown attendance subcommand: %s", sub)
	}
}

func (c *CLI) approveEvents(ids []string) error {
	resp, err := c.post("/api/v1/attendance/approve", map[string]interface{}{"ids": ids})
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}
