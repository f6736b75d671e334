package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/config"
)

const (
	exitOK            = 0
	exitError         = 1
	exitUnimplemented = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli holds what the subcommands share
type cli struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	configPath string
	dbPath     string
	logLevel   string

	config *config.Config
	logger *slog.Logger
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, "error:", err)
	if errors.Is(err, formula.ErrUnimplemented) {
		return exitUnimplemented
	}
	return exitError
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "formula",
		Short: "Spreadsheet formula evaluation",
		Long: `Evaluate spreadsheet formulas against an in-memory or bbolt-backed workbook.

Without --db every command works on an empty workbook that lives only for
the duration of the command.

Examples:
  formula eval "=SUM(1,2,3)"
  formula --db book.db set Sheet1!A1 42
  formula --db book.db set A2 "=A1*2"
  formula --db book.db get A2
  formula --config formula.yaml serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "YAML configuration file")
	flags.StringVar(&c.dbPath, "db", "", "bbolt database file (overrides server.database)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		c.evalCommand(),
		c.getCommand(),
		c.setCommand(),
		c.sheetCommand(),
		c.defineCommand(),
		c.serveCommand(),
		c.replCommand(),
	)
	return root
}

func (c *cli) setup() error {
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := cfg.Log.NewLogger(c.stderr)
	if err != nil {
		return err
	}
	c.config = cfg
	c.logger = logger
	return nil
}
