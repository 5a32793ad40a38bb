package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitDownloadFail = 3
	ExitStorageError = 4
	ExitLoadFail     = 5
)

func main() {
	// Optional .env next to the binary; environment beats defaults below.
	godotenv.Load()

	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "update":
		return runUpdate(cmdArgs)
	case "list":
		return runList(cmdArgs)
	case "fetch":
		return runFetch(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: uva-arena <command> [options]

Commands:
  update    Refresh stale cached archive data and rebuild the indices
  list      Print problems and categories from the local cache
  fetch     Download a single URL to a local file

Run 'uva-arena <command> -h' for command-specific help.`)
}
