package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"StegLab/pkg/config"
	"StegLab/pkg/engine"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/logger"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
)

var (
	// Color printers
	infoColor    = color.New(color.FgBlue).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
	alertColor   = color.New(color.FgRed, color.Bold).SprintFunc()
)

func printInfo(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", infoColor("[*]"), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", successColor("[+]"), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", warningColor("[!]"), fmt.Sprintf(format, args...))
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorColor("[-]"), fmt.Sprintf(format, args...))
}

func printAlert(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", alertColor("[!!!]"), fmt.Sprintf(format, args...))
}

// command is one steglab subcommand
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, e *engine.Engine, args []string) error
}

var commands = []command{
	{"embed", "hide a payload in a cover file", runEmbed},
	{"extract", "recover a payload from a file or artifact", runExtract},
	{"detect", "run every detector of a carrier", runDetect},
	{"get", "copy a stored artifact out of the store", runGet},
	{"list", "show carriers, methods and detectors", runList},
	{"sweep", "remove artifacts older than the retention window", runSweep},
}

func usage() {
	fmt.Println("StegLab: steganography and steganalysis workbench")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  steglab [--config steglab.toml] <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  %-8s %s\n", c.name, c.summary)
	}
	fmt.Println()
	fmt.Println("Run 'steglab <command> --help' for command flags.")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := pflag.NewFlagSet("steglab", pflag.ContinueOnError)
	global.SetInterspersed(false)
	configPath := global.String("config", "", "path to steglab.toml")
	noColor := global.Bool("no-color", false, "disable colored output")
	global.Usage = usage
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		printError("%v", err)
		return 2
	}
	color.NoColor = color.NoColor || *noColor

	rest := global.Args()
	if len(rest) == 0 {
		usage()
		return 2
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == rest[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		printError("unknown command %q", rest[0])
		usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		printError("load config: %v", err)
		return 1
	}
	logger.Init(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "steglab",
	})

	e, err := engine.New(cfg)
	if err != nil {
		printError("start engine: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, e, rest[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		reportError(err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

// reportError prints the structured form of engine errors
func reportError(err error) {
	e, ok := perr.As(err)
	if !ok {
		printError("%v", err)
		return
	}
	w := e.ToWire()
	msg := fmt.Sprintf("%s: %s", w.Kind, w.Message)
	if w.Field != "" {
		msg += fmt.Sprintf(" (field %s)", w.Field)
	}
	printError("%s", msg)
	for _, k := range e.NumKeys() {
		v, _ := e.Num(k)
		fmt.Fprintf(os.Stderr, "    %s = %g\n", k, v)
	}
}
