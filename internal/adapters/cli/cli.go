package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront-ledger/internal/app"
	"storefront-ledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

const usage = `Usage: ledgerctl <command> [flags]

Commands:
  bootstrap   create the master store            [--name]
  user-add    create an operator                 --username --password [--role]
  store-add   create a virtual store             --name [--owner]
  restock     add stock to the master store      --sku --qty
  allocate    move stock master -> store         --store --item SKU=QTY ...
  return      move stock store -> master         --store --item SKU=QTY ...
  order       record a sale                      --store --item SKU=QTY[/EXCL,...] ... [--discount --phone --name]
  reconcile   close out a store                  --store [--return-stock]
  stock       list stock                         [--store --q]
  transfers   list stock movements               [--store --limit]
  orders      search orders                      [--store --name --phone]
  audit       check conservation for a product   --sku
  shell       interactive session (ledgerctl only)`

// Run executes a one-shot command. args is os.Args[1:]: the first element is
// the command name. Results are written to out as JSON or tables.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, rest := args[0], args[1:]
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.SetOutput(out)
	actor := core.SystemActor

	switch cmd {
	case "bootstrap":
		name := fs.String("name", "", "master store name")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		st, err := svc.BootstrapMaster(ctx, *name)
		if err != nil {
			return err
		}
		return printJSON(out, st)

	case "user-add":
		username := fs.String("username", "", "login name")
		password := fs.String("password", "", "password")
		role := fs.String("role", core.RoleStoreAdmin, "STORE_ADMIN or SUPER_ADMIN")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		u, err := svc.CreateUser(ctx, app.CreateUserRequest{Username: *username, Password: *password, Role: *role})
		if err != nil {
			return err
		}
		return printJSON(out, u)

	case "store-add":
		name := fs.String("name", "", "store name")
		owner := fs.String("owner", "", "owning username")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		st, err := svc.CreateStore(ctx, app.CreateStoreRequest{Name: *name, OwnerUsername: *owner})
		if err != nil {
			return err
		}
		return printJSON(out, st)

	case "restock":
		sku := fs.String("sku", "", "product SKU")
		qty := fs.Int("qty", 0, "units to add")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		level, err := svc.Restock(ctx, app.RestockRequest{SKU: *sku, Quantity: *qty, Actor: actor})
		if err != nil {
			return err
		}
		return printJSON(out, level)

	case "allocate", "return":
		storeID := fs.Int64("store", 0, "virtual store id")
		rawItems := fs.StringArray("item", nil, "SKU=QTY, repeatable")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		items, err := ParseItems(*rawItems)
		if err != nil {
			return err
		}
		req := app.AllocationRequest{StoreID: *storeID, Items: items, Actor: actor}
		var res *core.AllocationResult
		if cmd == "allocate" {
			res, err = svc.Allocate(ctx, req)
		} else {
			res, err = svc.ReturnToMaster(ctx, req)
		}
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "order":
		storeID := fs.Int64("store", 0, "store id")
		rawItems := fs.StringArray("item", nil, "SKU=QTY[/EXCLUDED,...], repeatable")
		discount := fs.String("discount", "0", "flat discount")
		phone := fs.String("phone", "", "customer phone")
		name := fs.String("name", "", "customer name")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		items, err := ParseOrderItems(*rawItems)
		if err != nil {
			return err
		}
		d, err := decimal.NewFromString(*discount)
		if err != nil {
			return fmt.Errorf("invalid --discount %q: %w", *discount, err)
		}
		order, err := svc.CreateOrder(ctx, app.CreateOrderRequest{
			StoreID:       *storeID,
			Items:         items,
			Discount:      d,
			CustomerName:  *name,
			CustomerPhone: *phone,
			Actor:         actor,
		})
		if err != nil {
			return err
		}
		return printJSON(out, order)

	case "reconcile":
		storeID := fs.Int64("store", 0, "store id")
		returnStock := fs.Bool("return-stock", false, "sweep remaining stock to the master store")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		report, err := svc.Reconcile(ctx, app.ReconcileRequest{StoreID: *storeID, ReturnStock: *returnStock, Actor: actor})
		if err != nil {
			return err
		}
		return printJSON(out, report)

	case "stock":
		storeID := fs.Int64("store", 0, "store id; omit for the master inventory view")
		query := fs.String("q", "", "search name, SKU or attributes")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		var res *app.StockResult
		var err error
		if *storeID == 0 {
			res, err = svc.InventoryView(ctx)
		} else {
			res, err = svc.StoreInventory(ctx, *storeID, *query)
		}
		if err != nil {
			return err
		}
		printStock(out, res)
		return nil

	case "transfers":
		storeID := fs.Int64("store", 0, "store id")
		limit := fs.Int("limit", 50, "max rows")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		res, err := svc.ListTransfers(ctx, core.TransferFilter{StoreID: *storeID, Limit: *limit})
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "orders":
		storeID := fs.Int64("store", 0, "store id")
		name := fs.String("name", "", "customer name contains")
		phone := fs.String("phone", "", "customer phone contains")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		filter := core.OrderFilter{CustomerName: *name, CustomerPhone: *phone}
		if *storeID != 0 {
			filter.StoreIDs = []int64{*storeID}
		}
		res, err := svc.SearchOrders(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "audit":
		sku := fs.String("sku", "", "product SKU")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		audit, err := svc.AuditStock(ctx, *sku)
		if err != nil {
			return err
		}
		if err := printJSON(out, audit); err != nil {
			return err
		}
		if !audit.Balanced() {
			return fmt.Errorf("stock for %s is not conserved", audit.SKU)
		}
		return nil

	default:
		return fmt.Errorf("unknown command: %s\n\n%s", cmd, usage)
	}
}

// ParseItems parses SKU=QTY arguments.
func ParseItems(raw []string) ([]core.ItemRequest, error) {
	if len(raw) == 0 {
		return nil, errors.New("at least one --item is required")
	}
	items := make([]core.ItemRequest, 0, len(raw))
	for _, r := range raw {
		sku, qty, err := splitItem(r)
		if err != nil {
			return nil, err
		}
		items = append(items, core.ItemRequest{SKU: sku, Quantity: qty})
	}
	return items, nil
}

// ParseOrderItems parses SKU=QTY arguments with an optional /EXCL1,EXCL2
// suffix naming bundle components to leave in stock.
func ParseOrderItems(raw []string) ([]core.OrderItem, error) {
	if len(raw) == 0 {
		return nil, errors.New("at least one --item is required")
	}
	items := make([]core.OrderItem, 0, len(raw))
	for _, r := range raw {
		spec, excl, _ := strings.Cut(r, "/")
		sku, qty, err := splitItem(spec)
		if err != nil {
			return nil, err
		}
		item := core.OrderItem{SKU: sku, Quantity: qty}
		for _, e := range strings.Split(excl, ",") {
			if e = strings.TrimSpace(e); e != "" {
				item.ExcludedSKUs = append(item.ExcludedSKUs, e)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func splitItem(s string) (string, int, error) {
	sku, rawQty, ok := strings.Cut(s, "=")
	sku = strings.TrimSpace(sku)
	if !ok || sku == "" {
		return "", 0, fmt.Errorf("invalid item %q: want SKU=QTY", s)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(rawQty))
	if err != nil || qty < 1 {
		return "", 0, fmt.Errorf("invalid item %q: quantity must be a positive integer", s)
	}
	return sku, qty, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStock(out io.Writer, res *app.StockResult) {
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  STOCK: store %d\n", res.StoreID)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	if len(res.Levels) == 0 {
		fmt.Fprintln(out, "  No stock found.")
		fmt.Fprintln(out, strings.Repeat("=", 72))
		return
	}
	fmt.Fprintf(out, "  %-14s %-30s %-8s %8s %8s\n", "SKU", "NAME", "TYPE", "PRICE", "QTY")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, l := range res.Levels {
		fmt.Fprintf(out, "  %-14s %-30s %-8s %8s %8d\n", l.SKU, l.ProductName, l.ProductType, l.BasePrice.StringFixed(2), l.Quantity)
	}
	fmt.Fprintln(out, strings.Repeat("=", 72))
}
