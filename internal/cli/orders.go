package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kirinyoku/ticksy/internal/checkout"
	"github.com/kirinyoku/ticksy/internal/orders"
	"github.com/kirinyoku/ticksy/internal/slice/ui"
)

const checkoutModal = "checkout"

func checkoutCmd(rt *Runtime) *Command {
	var (
		picks     []string
		attendees []string
		payNow    bool
		watch     bool
	)

	return &Command{
		Name:    "checkout",
		Summary: "Buy tickets for an event",
		Usage:   `ticksy checkout <event-id> --ticket <ticket-id>=2 --attendee "Name,email,phone" ... [--pay-now] [--watch]`,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("checkout", pflag.ContinueOnError)
			fs.StringArrayVar(&picks, "ticket", nil, "ticket-id=count, repeatable")
			fs.StringArrayVar(&attendees, "attendee", nil, "name,email,phone for each ticket in order, repeatable")
			fs.BoolVar(&payNow, "pay-now", false, "pay by mobile money right away")
			fs.BoolVar(&watch, "watch", false, "wait until the order is paid")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "<event-id>"); err != nil {
				return err
			}
			eventID := args[0]

			list, err := rt.Client.Tickets.FetchTickets(ctx, eventID)
			if err != nil {
				return rt.fail(err)
			}

			rt.Client.UI.OpenModal(checkoutModal)
			defer rt.Client.UI.CloseModal(checkoutModal)

			sel := checkout.NewSelection(list)
			for _, p := range picks {
				id, n, err := parsePick(p)
				if err != nil {
					return err
				}
				if err := sel.Set(id, n); err != nil {
					return rt.fail(err)
				}
			}

			slots := sel.Slots()
			if len(slots) == 0 {
				return rt.fail(checkout.ErrEmptySelection)
			}
			if len(attendees) != len(slots) {
				return fmt.Errorf("%w: %d tickets selected but %d attendees given", ErrUsage, len(slots), len(attendees))
			}
			for i, a := range attendees {
				parts := strings.SplitN(a, ",", 3)
				for len(parts) < 3 {
					parts = append(parts, "")
				}
				slots[i].Name = strings.TrimSpace(parts[0])
				slots[i].Email = strings.TrimSpace(parts[1])
				slots[i].Phone = strings.TrimSpace(parts[2])
			}

			rt.printf("%d ticket(s), total %s\n", sel.Quantity(), sel.Total().StringFixed(2))

			orderID, err := rt.Client.Checkout.Submit(ctx, eventID, slots, payNow)
			if err != nil {
				return rt.fail(err)
			}

			rt.Client.UI.ShowToast(ui.ToastSuccess, "order "+orderID+" placed")
			if !watch {
				return nil
			}
			return rt.watchOrder(ctx, orderID)
		},
	}
}

func parsePick(s string) (string, int, error) {
	id, count, ok := strings.Cut(s, "=")
	if !ok {
		return id, 1, nil
	}

	n, err := strconv.Atoi(count)
	if err != nil {
		return "", 0, fmt.Errorf("%w: --ticket %q: %v", ErrUsage, s, err)
	}
	return id, n, nil
}

func orderCmd(rt *Runtime) *Command {
	return &Command{
		Name:    "order",
		Summary: "Track orders",
		Subcommands: []*Command{
			{
				Name:    "watch",
				Summary: "Poll an order until it is paid",
				Usage:   "ticksy order watch <order-id>",
				Run: func(ctx context.Context, args []string) error {
					if err := requireArgs(args, 1, "<order-id>"); err != nil {
						return err
					}
					return rt.watchOrder(ctx, args[0])
				},
			},
		},
	}
}

func (rt *Runtime) watchOrder(ctx context.Context, orderID string) error {
	p := rt.Client.NewPoller(orderID)

	last := orders.Status("")
	unsubscribe := p.Container().Subscribe(func(st orders.State) {
		if st.Status == last {
			return
		}
		last = st.Status
		rt.printf("order %s: %s\n", orderID, st.Status)
	})
	defer unsubscribe()

	order, err := p.Run(ctx)
	if err != nil {
		return rt.fail(err)
	}

	rt.Client.UI.ShowToast(ui.ToastSuccess, fmt.Sprintf("payment confirmed, receipt %s", order.MpesaReceipt))
	return nil
}
