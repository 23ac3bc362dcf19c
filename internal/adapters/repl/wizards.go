package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront-ledger/internal/adapters/cli"
	"storefront-ledger/internal/app"
	"storefront-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// handleNewOrder runs an interactive order entry session for one store.
func handleNewOrder(ctx context.Context, reader *bufio.Reader, out io.Writer, svc app.ApplicationService, rawStoreID string) error {
	storeID, err := strconv.ParseInt(rawStoreID, 10, 64)
	if err != nil || storeID < 1 {
		return fmt.Errorf("invalid store id: %s", rawStoreID)
	}

	fmt.Fprintf(out, "New order for store %d\n", storeID)
	fmt.Fprintln(out, "Enter order lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Fprintln(out, "Format per line: SKU=QTY[/EXCLUDED,...]")
	fmt.Fprintln(out, "  Example: PEN-HB=3")
	fmt.Fprintln(out, "  Example: KIT-1=1/NB-A5   (bundle without its notebook)")

	var items []core.OrderItem
lines:
	for lineNum := 1; ; {
		fmt.Fprintf(out, "  Line %d: ", lineNum)
		raw, readErr := reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		switch strings.ToLower(raw) {
		case "cancel":
			fmt.Fprintln(out, "Order entry cancelled.")
			return nil
		case "done":
			break lines
		case "":
		default:
			parsed, err := cli.ParseOrderItems([]string{raw})
			if err != nil {
				fmt.Fprintf(out, "  %v\n", err)
			} else {
				items = append(items, parsed...)
				lineNum++
			}
		}
		if readErr != nil {
			break
		}
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "No lines entered. Order not created.")
		return nil
	}

	discount := decimal.Zero
	if raw := prompt(reader, out, "Discount (blank for none): "); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid discount: %s", raw)
		}
		discount = d
	}
	phone := prompt(reader, out, "Customer phone (blank to skip): ")
	name := ""
	if phone != "" {
		name = prompt(reader, out, "Customer name: ")
	}

	if !confirm(reader, out, fmt.Sprintf("Create order with %d line(s)? (y/n): ", len(items))) {
		fmt.Fprintln(out, "Order not created.")
		return nil
	}

	order, err := svc.CreateOrder(ctx, app.CreateOrderRequest{
		StoreID:       storeID,
		Items:         items,
		Discount:      discount,
		CustomerName:  name,
		CustomerPhone: phone,
		Actor:         core.SystemActor,
	})
	if err != nil {
		return err
	}
	printOrder(out, order)
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	raw, _ := reader.ReadString('\n')
	return strings.TrimSpace(raw)
}

func printOrder(out io.Writer, o *core.CustomerOrder) {
	fmt.Fprintf(out, "Order #%d created at store %d\n", o.ID, o.StoreID)
	for _, l := range o.Lines {
		marker := ""
		if l.IsExclusion {
			marker = "  (excluded)"
		}
		fmt.Fprintf(out, "  %-3d %-14s x%-4d %10s%s\n", l.LineNumber, l.SKU, l.Quantity, l.UnitPrice.StringFixed(2), marker)
	}
	fmt.Fprintf(out, "  Discount: %s\n", o.Discount.StringFixed(2))
	fmt.Fprintf(out, "  Total:    %s\n", o.TotalAmount.StringFixed(2))
}
