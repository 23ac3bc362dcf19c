package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"storefront-ledger/internal/adapters/cli"
	"storefront-ledger/internal/app"
)

const help = `Shell commands:
  /help               this text
  /new-order <store>  enter an order line by line
  /exit               leave the shell

Any other line is run as a ledgerctl command, for example:
  stock --store 2
  allocate --store 2 --item KIT-1=5`

var errExit = errors.New("exit")

// Run starts the interactive loop. Slash commands are handled by the shell;
// every other line is passed to the one-shot CLI. A stock sweep asks for
// confirmation first.
func Run(ctx context.Context, svc app.ApplicationService, in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "Storefront Ledger")
	fmt.Fprintln(out, "Type /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	dispatchSlash := func(input string) error {
		tokens := strings.Fields(strings.TrimPrefix(input, "/"))
		if len(tokens) == 0 {
			return nil
		}
		cmd := strings.ToLower(tokens[0])
		args := tokens[1:]

		switch cmd {
		case "help", "h":
			fmt.Fprintln(out, help)

		case "new-order":
			if len(args) < 1 {
				fmt.Fprintln(out, "Usage: /new-order <store-id>")
				return nil
			}
			return handleNewOrder(ctx, reader, out, svc, args[0])

		case "exit", "quit", "e", "q":
			return errExit

		default:
			fmt.Fprintf(out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
		}
		return nil
	}

	for {
		fmt.Fprint(out, "\n> ")
		input, readErr := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if readErr != nil {
				return
			}
			continue
		}

		if strings.HasPrefix(input, "/") {
			if err := dispatchSlash(input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return
				}
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		}

		args := strings.Fields(input)
		if isSweep(args) && !confirm(reader, out, "Return all stock of this store to the master store? (y/n): ") {
			fmt.Fprintln(out, "Reconciliation cancelled.")
			continue
		}
		if err := cli.Run(ctx, svc, args, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		if readErr != nil {
			return
		}
	}
}

// isSweep reports whether args is a reconcile that moves stock.
func isSweep(args []string) bool {
	if len(args) == 0 || args[0] != "reconcile" {
		return false
	}
	for _, a := range args[1:] {
		if a == "--return-stock" || a == "--return-stock=true" {
			return true
		}
	}
	return false
}

func confirm(reader *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(strings.ToLower(choice))
	return choice == "y" || choice == "yes"
}
