package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "config":
		err = cmdConfig()
	case "doctor":
		err = cmdDoctor()
	case "new":
		err = cmdNew(os.Args[2:])
	case "validate":
		err = cmdValidate(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	case "import":
		err = cmdImport(os.Args[2:])
	case "example":
		err = cmdExample(os.Args[2:])
	case "info":
		err = cmdInfo(os.Args[2:])
	case "play":
		err = cmdPlay(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	case "result":
		err = cmdResult()
	case "results":
		err = cmdResults(os.Args[2:])
	case "mcp":
		err = cmdMCP(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("listenex %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`listenex - Listening exercises you can author, export and play

Usage:
  listenex <command> [arguments]

Setup Commands:
  init            Initialize listenex (first-time setup)
  config          Show current configuration
  doctor          Check audio, storage and reporting

Authoring Commands:
  new <dir> [title]             Create an exercise project
  validate <manifest|dir>       Check a project before export
  export <manifest|dir> [out]   Build a self-contained bundle ZIP (--no-engine to skip engine.wasm)
  import <zip> <dir>            Turn a bundle back into a project
  example [groups] [per-group]  Print a generated example exercise

Playback Commands:
  info <path>     Show what an exercise contains
  play <path>     Play an exercise in the terminal ("example" for a demo)
  serve <path>    Serve a bundle for the browser

Results Commands:
  result          Show the last recorded result
  results watch   Stream completions reported over AMQP

Integration Commands:
  mcp [addr]      Start MCP server (stdio, or HTTP when addr is given)

Other:
  help            Show this help message
  version         Show version information

Examples:
  listenex new farm "Farm animals"   # Scaffold a project
  listenex export farm               # Writes farm-animals.zip
  listenex play farm-animals.zip     # Play in the terminal
  listenex serve farm-animals.zip    # Open http://127.0.0.1:7433`)
}

// renderScoreBar creates a visual progress bar
func renderScoreBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
