package main

import (
	"fmt"
	"net"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula/server"
)

// withBackend opens the backend for the duration of fn
func (c *cli) withBackend(fn func(b backend) error) error {
	b, err := c.open()
	if err != nil {
		return err
	}
	err = fn(b)
	if closeErr := b.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (c *cli) evalCommand() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate a formula without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(func(b backend) error {
				v, err := b.Evaluate(args[0], at)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, display(v))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "A1", "cell the formula is evaluated at")
	return cmd
}

func (c *cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <address>...",
		Short: "Print the values of cells",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(func(b backend) error {
				for _, address := range args {
					v, err := b.Get(address)
					if err != nil {
						return err
					}
					if len(args) == 1 {
						fmt.Fprintln(c.stdout, display(v))
					} else {
						fmt.Fprintf(c.stdout, "%s\t%s\n", address, display(v))
					}
				}
				return nil
			})
		},
	}
}

func (c *cli) setCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <address> <content>",
		Short: "Store content in a cell and print its value",
		Long:  `Store content in a cell. content starting with '=' is a formula; empty content clears the cell.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(func(b backend) error {
				if err := b.Set(args[0], args[1]); err != nil {
					return err
				}
				v, err := b.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, display(v))
				return nil
			})
		},
	}
}

func (c *cli) sheetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Manage worksheets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a worksheet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withBackend(func(b backend) error {
					return b.AddSheet(args[0])
				})
			},
		},
		&cobra.Command{
			Use:     "rm <name>",
			Aliases: []string{"remove"},
			Short:   "Remove a worksheet and its cells",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withBackend(func(b backend) error {
					return b.RemoveSheet(args[0])
				})
			},
		},
		&cobra.Command{
			Use:     "ls",
			Aliases: []string{"list"},
			Short:   "List worksheets in order",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withBackend(func(b backend) error {
					for _, name := range b.Sheets() {
						fmt.Fprintln(c.stdout, name)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func (c *cli) defineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "define <name> <range>",
		Short: "Define a named range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(func(b backend) error {
				return b.DefineName(args[0], args[1])
			})
		},
	}
}

func (c *cli) serveCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workbook over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.dbPath == "" {
				c.dbPath = c.config.Server.Database
			}
			if listen == "" {
				listen = c.config.Server.Listen
			}

			gin.SetMode(gin.ReleaseMode)
			b, err := c.open()
			if err != nil {
				return err
			}
			defer b.Close()
			controller := server.NewApiController(b.(storeBackend).Store, c.logger)

			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}
			c.logger.Info("serving",
				"address", listener.Addr().String(),
				"database", c.dbPath,
				"sheets", b.Sheets())

			return server.Run(cmd.Context(), listener, server.SetupRouter(controller), c.logger)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides server.listen)")
	return cmd
}
