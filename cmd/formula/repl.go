package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

const (
	historyFile = ".formula_history"
	prompt      = "formula> "
)

const replHelp = `  =<formula>          evaluate a formula at A1 without storing it
  <cell> := <content>  store content in a cell and print its value
  <cell>               print the value of a cell
  :sheets              list worksheets
  :add <name>          add a worksheet
  :define <name> <rng> define a named range
  :clear               clear the value cache
  :help                show this help
  :quit                leave
`

func (c *cli) replCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(func(b backend) error {
				c.interactive(&repl{backend: b, out: c.stdout})
				return nil
			})
		},
	}
}

// interactive drives r from the terminal with line editing and history
func (c *cli) interactive(r *repl) {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Fprintln(r.out, "type :help for help")
	for {
		line, err := ln.Prompt(prompt)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
				c.logger.Error("read input", "error", err)
			}
			fmt.Fprintln(r.out)
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if quit := r.execute(line); quit {
			break
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
}

// repl executes one input line at a time against a backend
type repl struct {
	backend backend
	out     io.Writer
}

// execute runs one line and reports whether the session should end.
// errors are printed, never returned.
func (r *repl) execute(line string) (quit bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.HasPrefix(line, ":"):
		return r.command(line)
	case strings.HasPrefix(line, "="):
		v, err := r.backend.Evaluate(line, "A1")
		r.print(v, err)
	default:
		if address, content, ok := strings.Cut(line, ":="); ok {
			address = strings.TrimSpace(address)
			if err := r.backend.Set(address, strings.TrimSpace(content)); err != nil {
				r.print(nil, err)
				return false
			}
			v, err := r.backend.Get(address)
			r.print(v, err)
			return false
		}
		v, err := r.backend.Get(line)
		r.print(v, err)
	}
	return false
}

func (r *repl) command(line string) (quit bool) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ":quit", ":q", ":exit":
		return true
	case ":help":
		fmt.Fprint(r.out, replHelp)
	case ":sheets":
		for _, name := range r.backend.Sheets() {
			fmt.Fprintln(r.out, name)
		}
	case ":add":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "usage: :add <name>")
			return false
		}
		r.print(nil, r.backend.AddSheet(fields[1]))
	case ":define":
		if len(fields) != 3 {
			fmt.Fprintln(r.out, "usage: :define <name> <range>")
			return false
		}
		r.print(nil, r.backend.DefineName(fields[1], fields[2]))
	case ":clear":
		r.backend.ClearCache()
	default:
		fmt.Fprintln(r.out, "unknown command. Type :help for help.")
	}
	return false
}

func (r *repl) print(v formula.Value, err error) {
	if err != nil {
		fmt.Fprintln(r.out, "error:", err)
		return
	}
	if v != nil {
		fmt.Fprintln(r.out, display(v))
	}
}
