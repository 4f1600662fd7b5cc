package main

// ---- Health Commands ----

func (c *CLI) healthCommand(args []string) error {
	resp, err := c.get("/healthz")
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}
