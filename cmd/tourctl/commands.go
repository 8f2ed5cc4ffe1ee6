package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/angelmondragon/tourbook-backend/internal/availability"
	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/pkg/env"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/storefront"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var apiURL, token string
	global := pflag.NewFlagSet("tourctl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.StringVar(&apiURL, "api", env.Get("TOURBOOK_API_URL", "http://localhost:8080"), "API base URL")
	global.StringVar(&token, "token", env.Get("TOURBOOK_TOKEN", ""), "bearer token")
	global.Usage = func() { printUsage(stderr) }

	if err := global.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return usageError("%v", err)
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return usageError("command required")
	}

	client, err := storefront.NewClient(apiURL, storefront.WithToken(token))
	if err != nil {
		return usageError("%v", err)
	}
	cmd, cmdArgs := rest[0], rest[1:]

	switch cmd {
	case "cart":
		view, err := client.Cart(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, view)
	case "add", "qty", "remove", "coupon", "clear":
		action, err := parseCartAction(cmd, cmdArgs)
		if err != nil {
			return err
		}
		return dispatch(ctx, client, action, stdout)
	case "book":
		receipt, err := client.Book(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, receipt)
	case "bookings":
		var cursor string
		if len(cmdArgs) > 0 {
			cursor = cmdArgs[0]
		}
		page, err := client.Bookings(ctx, cursor)
		if err != nil {
			return err
		}
		return printJSON(stdout, page)
	case "availability":
		tourID, err := parseTourArgs(cmdArgs)
		if err != nil {
			return err
		}
		snap, err := client.Availability(ctx, tourID)
		if err != nil {
			return err
		}
		return printJSON(stdout, snap)
	case "watch":
		return watch(ctx, client, cmdArgs, stdout, stderr)
	}
	printUsage(stderr)
	return usageError("unknown command %q", cmd)
}

// dispatch runs a cart mutation through the optimistic store so malformed input is
// rejected before any request is sent.
func dispatch(ctx context.Context, client *storefront.Client, action cart.Action, stdout io.Writer) error {
	store := storefront.NewCartStore(client)
	if _, err := store.Load(ctx); err != nil {
		return err
	}
	state, err := store.Dispatch(ctx, action)
	if err != nil {
		return err
	}
	return printJSON(stdout, state)
}

func parseCartAction(cmd string, args []string) (cart.Action, error) {
	switch cmd {
	case "add":
		if len(args) != 3 {
			return cart.Action{}, usageError("usage: add <tour-id> <yyyy-mm-dd> <travelers>")
		}
		tourID, err := uuid.Parse(args[0])
		if err != nil {
			return cart.Action{}, usageError("invalid tour id %q", args[0])
		}
		date, err := types.ParseDate(args[1])
		if err != nil {
			return cart.Action{}, usageError("invalid date %q", args[1])
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return cart.Action{}, usageError("invalid travelers %q", args[2])
		}
		return cart.AddItemAction(tourID, date, n, types.Money{}), nil
	case "qty":
		if len(args) != 2 {
			return cart.Action{}, usageError("usage: qty <item-id> <travelers>")
		}
		itemID, err := uuid.Parse(args[0])
		if err != nil {
			return cart.Action{}, usageError("invalid item id %q", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return cart.Action{}, usageError("invalid travelers %q", args[1])
		}
		return cart.UpdateQuantityAction(itemID, n), nil
	case "remove":
		if len(args) != 1 {
			return cart.Action{}, usageError("usage: remove <item-id>")
		}
		itemID, err := uuid.Parse(args[0])
		if err != nil {
			return cart.Action{}, usageError("invalid item id %q", args[0])
		}
		return cart.RemoveItemAction(itemID), nil
	case "coupon":
		if len(args) != 1 {
			return cart.Action{}, usageError("usage: coupon <code>")
		}
		return cart.ApplyCouponAction(args[0]), nil
	}
	return cart.ClearAction(), nil
}

func parseTourArgs(args []string) (uuid.UUID, error) {
	if len(args) < 1 {
		return uuid.Nil, usageError("tour id required")
	}
	tourID, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, usageError("invalid tour id %q", args[0])
	}
	return tourID, nil
}

func watch(ctx context.Context, client *storefront.Client, args []string, stdout, stderr io.Writer) error {
	var date string
	var travelers int
	var interval time.Duration
	flags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&date, "date", "", "departure to keep selected (yyyy-mm-dd)")
	flags.IntVar(&travelers, "travelers", 1, "travelers for the selected departure")
	flags.DurationVar(&interval, "poll", 15*time.Second, "poll interval")
	if err := flags.Parse(args); err != nil {
		return usageError("%v", err)
	}
	tourID, err := parseTourArgs(flags.Args())
	if err != nil {
		return err
	}

	notices := make(chan availability.Notice, 16)
	watcher, err := availability.NewWatcher(availability.WatcherOptions{
		TourID:       tourID,
		Push:         client.PushSource(),
		Fetcher:      client.AvailabilityFetcher(),
		PollInterval: interval,
		Notify: func(n availability.Notice) {
			select {
			case notices <- n:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	if err := watcher.Open(ctx); err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	var selected types.Date
	if date != "" {
		selected, err = types.ParseDate(date)
		if err != nil {
			return usageError("invalid date %q", date)
		}
		watcher.Select(selected, travelers)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-notices:
			fmt.Fprintf(stdout, "%s %s\n", time.Now().Format(time.TimeOnly), n.Message)
			for _, dep := range n.Changed {
				fmt.Fprintf(stdout, "  %s  %d/%d seats\n", dep.Date, dep.AvailableSeats, dep.TotalSeats)
			}
			if n.SelectionInvalid {
				fmt.Fprintf(stdout, "  selection %s x%d is no longer available\n", selected, travelers)
			}
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(format string, args ...any) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(format, args...))
}
