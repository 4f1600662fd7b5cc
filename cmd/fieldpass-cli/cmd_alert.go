package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// ---- Alert Commands ----

func (c *CLI) alertCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fieldpass-cli alert <subcommand>")
	}

	sub := args[0]
	args = args[1:]

	switch sub {
	case "list":
		return c.listAlerts(args)
	case "read":
		if len(args) < 1 {
			return fmt.Errorf("usage: fieldpass-cli alert read <id>")
		}
		return c.markAlertRead(args[0])
	case "resolve":
		if len(args) < 1 {
			return fmt.Errorf("usage: fieldpass-cli alert resolve <id>")
		}
		return c.resolveAlert(args[0])
	default:
		return fmt.Errorf("unknown alert subcommand: %s", sub)
	}
}

func (c *CLI) listAlerts(args []string) error {
	opts := parseArgs(args)
	path := "/api/v1/alerts"
	if opts["open"] == "true" {
		path += "?open=true"
	}

	resp, err := c.get(path)
	if err != nil {
		return err
	}

	var alerts []struct {
		ID         string     `json:"id"`
		Type       string     `json:"type"`
		Severity   string     `json:"severity"`
		Title      string     `json:"title"`
		WorkerID   string     `json:"worker_id"`
		Read       bool       `json:"read"`
		ResolvedAt *time.Time `json:"resolved_at"`
		CreatedAt  time.Time  `json:"created_at"`
	}
	if err := json.Unmarshal(resp, &alerts); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSEVERITY\tWORKER\tSTATE\tCREATED")
	for _, a := range alerts {
		state := "open"
		switch {
		case a.ResolvedAt != nil:
			state = "resolved"
		case a.Read:
			state = "read"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Type, a.Severity, a.WorkerID, state, a.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
	fmt.Printf("\nTotal: %d\n", len(alerts))
	return nil
}

func (c *CLI) markAlertRead(id string) error {
	resp, err := c.post("/api/v1/alerts/"+id+"/read", nil)
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) resolveAlert(id string) error {
	resp, err := c.post("/api/v1/alerts/"+id+"/resolve", nil)
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}
