// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines one fwselect subcommand with unified help generation.
type Command struct {
	Flags *flag.FlagSet
	Usage string
	Short string
	Exec  func(o *IO, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

func (c *Command) printHelp(o *IO) {
	o.printf("Usage: fwselect %s\n\n%s\n", c.Usage, c.Short)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.printf("\nFlags:\n")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.printf("%s", buf.String())
	}
}

// Run parses flags and executes the command, returning an exit code.
func (c *Command) Run(o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard)

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.printHelp(o)
			return 0
		}

		o.errPrintln("error:", err)
		c.printHelp(o)

		return 1
	}

	if err := c.Exec(o, c.Flags.Args()); err != nil {
		o.errPrintln("error:", err)
		return 1
	}

	return 0
}

// Run is the fwselect entry point. Returns the process exit code.
func Run(out, errOut io.Writer, args []string) int {
	o := &IO{Out: out, ErrOut: errOut}

	commands := []*Command{
		writeCommand(),
		readCommand(),
	}

	if len(args) < 2 {
		printUsage(o, commands)
		return 1
	}

	name := args[1]

	if name == "-h" || name == "--help" {
		printUsage(o, commands)
		return 0
	}

	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd.Run(o, args[2:])
		}
	}

	o.errPrintln(fmt.Sprintf("error: unknown command %q", name))
	printUsage(o, commands)

	return 1
}

func printUsage(o *IO, commands []*Command) {
	o.printf("fwselect - A/B/C firmware image packager and verifier\n\n")
	o.printf("Usage: fwselect <command> [flags]\n\nCommands:\n")

	for _, cmd := range commands {
		o.printf("  %-60s %s\n", cmd.Usage, cmd.Short)
	}
}
