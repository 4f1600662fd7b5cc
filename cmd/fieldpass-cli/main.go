package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// Version is set at build time
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	cli := &CLI{
		BaseURL: getEnv("FIELDPASS_URL", "http://localhost:8080"),
		Token:   os.Getenv("FIELDPASS_TOKEN"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}

	var err error
	switch cmd {
	case "alert", "alerts":
		err = cli.alertCommand(args)
	case "attendance":
		err = cli.attendanceCommand(args)
	case "credential", "credentials":
		err = cli.credentialCommand(args)
	case "health":
		err = cli.healthCommand(args)
	case "version":
		fmt.Printf("fieldpass-cli %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`fieldpass-cli - FieldPass supervisor command line interface

Usage:
  fieldpass-cli <command> [subcommand] [options]

Environment Variables:
  FIELDPASS_URL    Base URL of the FieldPass server (default: http://localhost:8080)
  FIELDPASS_TOKEN  Supervisor bearer token

Commands:
  alert     Review operational alerts
    list    [--open]
    read    <id>
    resolve <id>

  attendance  Manage attendance events
    approve <event-id> [event-id ...]

  credential  Manage enrolled authenticators
    reset   <worker-id>    Revoke the worker's full credential set

  health    Check server health

  version   Print version
  help      Show this help
`)
}
