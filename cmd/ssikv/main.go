// Command ssikv is the deterministic line-oriented driver of spec.md
// §6: it reads one command per line — from a file, from piped stdin, or
// interactively via a readline REPL — and drives a single in-process
// core/ssi.TransactionManager through it, tick by tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/vealocia/advdb-final-proj/config"
	"github.com/vealocia/advdb-final-proj/core/ssi"
	"github.com/vealocia/advdb-final-proj/internal/driver"
	"github.com/vealocia/advdb-final-proj/pkg/logger"
	"github.com/vealocia/advdb-final-proj/pkg/telemetry"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file (optional)")
	inputPath  = flag.String("input", "", "command file to read (default: stdin)")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssikv: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssikv: %v\n", err)
		return 1
	}
	defer log.Sync()

	tel, shutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Error("telemetry init failed")
		return 1
	}
	defer shutdown(context.Background())

	metrics, err := ssi.NewMetrics(tel.Meter)
	if err != nil {
		log.Error("metrics init failed")
		return 1
	}

	tm := ssi.NewTransactionManager(ssi.NewStreamEmitter(os.Stdout), log, metrics)
	d := driver.New(tm, log)

	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ssikv: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := d.Run(f); err != nil && err != io.EOF {
			fmt.Fprintf(os.Stderr, "ssikv: %v\n", err)
			return 1
		}
	} else if isatty.IsTerminal(os.Stdin.Fd()) {
		runInteractive(d)
	} else {
		if err := d.Run(os.Stdin); err != nil && err != io.EOF {
			fmt.Fprintf(os.Stderr, "ssikv: %v\n", err)
			return 1
		}
	}

	if d.MalformedCount() > 0 {
		return 1
	}
	return 0
}

func runInteractive(d *driver.Driver) {
	prompt := color.New(color.FgCyan).Sprint("ssikv> ")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssikv: %v\n", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return
		}
		d.RunLine(line)
	}
}
