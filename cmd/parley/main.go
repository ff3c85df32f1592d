// Command parley is an interactive console around the run orchestrator,
// plus a mock backend for local development.
package main

import (
	"fmt"
	"os"
	"strings"
)

var version = "dev"

func main() {
	args := os.Args[1:]
	if handled, exitCode := dispatchSubcommand(args); handled {
		os.Exit(exitCode)
	}
	printHelp()
	os.Exit(1)
}

func dispatchSubcommand(args []string) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}
	switch args[0] {
	case "--version", "-v", "version":
		fmt.Printf("parley %s\n", version)
		return true, 0
	case "--help", "-h", "help":
		printHelp()
		return true, 0
	case "chat":
		return true, runCommand(runChatCommand, args[1:])
	case "mock-backend":
		return true, runCommand(runMockBackendCommand, args[1:])
	default:
		if strings.HasPrefix(args[0], "-") {
			fmt.Fprintf(os.Stderr, "Error: unknown flag: %s\n", args[0])
		} else {
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", args[0])
		}
		fmt.Fprintln(os.Stderr, "Run 'parley --help' for usage.")
		return true, 1
	}
}

func runCommand(handler func([]string) error, args []string) int {
	if err := handler(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printHelp() {
	fmt.Print(`parley - chat console for asynchronous agent runs

Usage:
  parley chat [flags]          interactive chat against an agent backend
  parley mock-backend [flags]  local backend with scripted runs
  parley version               print the version

Chat flags:
  -config PATH    config file (default: ~/.parley/config.yaml merged with ./.parley/config.yaml)
  -url URL        backend base URL (overrides config)
  -agent ID       agent id (overrides config)
  -token TOKEN    bearer token (overrides config)

Mock backend flags:
  -addr ADDR      listen address (default 127.0.0.1:8787)
  -pause          script an approval pause into each run
`)
}
