package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pdfcompose <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  compose    Compose an HTML or Markdown file into a PDF")
	fmt.Fprintln(w, "  serve      Run the HTTP composition server")
	fmt.Fprintln(w, "  doctor     Check the browser and environment")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'pdfcompose help <command>' for details on a specific command.")
}

// printComposeUsage prints usage for the compose command.
func printComposeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pdfcompose compose <input> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Compose an HTML or Markdown file into a PDF, optionally signed and")
	fmt.Fprintln(w, "followed by PDF attachments.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    HTML (.html, .htm) or Markdown (.md, .markdown) file")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output PDF (default: input name with .pdf)")
	fmt.Fprintln(w, "  -f, --format <s>          Input format: html, markdown")
	fmt.Fprintln(w, "      --title <s>           Document title")
	fmt.Fprintln(w, "  -a, --attach <path>       PDF to append (repeatable, in order)")
	fmt.Fprintln(w, "      --max-file-mb <n>     Size limit for each input file (default: 64)")
	fmt.Fprintln(w, "      --html                Also write the prepared HTML")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Signature:")
	fmt.Fprintln(w, "  -s, --signature <path>    Signature image (PNG, JPG, SVG)")
	fmt.Fprintln(w, "  -l, --label <s>           Caption under the signature line")
	fmt.Fprintln(w, "      --sig-width <px>      Signature image max width (default: 100)")
	fmt.Fprintln(w, "      --sig-line-width <px> Signature line width (default: 100)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Page:")
	fmt.Fprintln(w, "      --margin-top <mm>     Top margin (0-100)")
	fmt.Fprintln(w, "      --margin-bottom <mm>  Bottom margin (0-100)")
	fmt.Fprintln(w, "      --margin-left <mm>    Left margin (0-100)")
	fmt.Fprintln(w, "      --margin-right <mm>   Right margin (0-100)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Watermark:")
	fmt.Fprintln(w, "      --watermark <s>       Watermark text")
	fmt.Fprintln(w, "      --wm-color <s>        Watermark color (hex)")
	fmt.Fprintln(w, "      --wm-opacity <f>      Watermark opacity (0.0-1.0)")
	fmt.Fprintln(w, "      --wm-angle <f>        Watermark angle in degrees (-90 to 90)")
	fmt.Fprintln(w, "      --no-watermark        Disable the configured watermark")
	fmt.Fprintln(w)
	printRenderFlags(w)
	fmt.Fprintln(w)
	printOutputControl(w)
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pdfcompose serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run the HTTP server. POST multipart forms to /v1/compose.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "      --addr <host:port>    Listen address (default: :8080)")
	fmt.Fprintln(w, "  -w, --workers <n>         Browser pool size (0 = auto)")
	fmt.Fprintln(w, "      --max-upload-mb <n>   Request body limit (default: 32)")
	fmt.Fprintln(w, "      --request-timeout <d> Per-request timeout (default: 2m)")
	fmt.Fprintln(w, "  -l, --label <s>           Default caption under the signature line")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w)
	printRenderFlags(w)
	fmt.Fprintln(w)
	printOutputControl(w)
}

func printRenderFlags(w io.Writer) {
	fmt.Fprintln(w, "Browser:")
	fmt.Fprintln(w, "  -t, --timeout <d>         Composition timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w, "      --browser-bin <path>  Chrome/Chromium binary")
	fmt.Fprintln(w, "      --no-sandbox          Disable the Chrome sandbox")
}

func printOutputControl(w io.Writer) {
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show placement details and timing")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "compose":
		printComposeUsage(env.Stdout)
	case "serve":
		printServeUsage(env.Stdout)
	case "doctor":
		fmt.Fprintln(env.Stdout, doctorUsage)
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Check that Chrome is installed and the environment can run it.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: pdfcompose version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: pdfcompose help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
