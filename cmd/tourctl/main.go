package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates caller mistakes (2) from everything else (1).
func exitCode(err error) int {
	typed := pkgerrors.As(err)
	if typed == nil {
		return 1
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeInvalidQuantity:
		return 2
	}
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `tourctl drives the tourbook storefront API.

Usage:
  tourctl [global flags] <command> [args]

Commands:
  cart                                 show the cart and its quote
  add <tour-id> <yyyy-mm-dd> <n>       add n travelers for a departure
  qty <item-id> <n>                    set the travelers on a cart line
  remove <item-id>                     remove a cart line
  coupon <code>                        apply a coupon code
  clear                                empty the cart
  book                                 book the cart
  bookings [cursor]                    list bookings, one page at a time
  availability <tour-id>               print the seat snapshot
  watch <tour-id> [--date --travelers] follow availability until interrupted

Global flags:
  --api      API base URL (env TOURBOOK_API_URL, default http://localhost:8080)
  --token    bearer token (env TOURBOOK_TOKEN)
`)
}
