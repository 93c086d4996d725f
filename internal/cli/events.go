package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/slice/events"
	"github.com/kirinyoku/ticksy/internal/slice/tickets"
	"github.com/kirinyoku/ticksy/internal/slice/ui"
)

const dashboardFanOut = 4

func eventsCmd(rt *Runtime) *Command {
	return &Command{
		Name:    "events",
		Summary: "Browse and manage events",
		Subcommands: []*Command{
			eventsListCmd(rt),
			eventsShowCmd(rt),
			eventsCreateCmd(rt),
			eventsUpdateCmd(rt),
		},
	}
}

func eventsListCmd(rt *Runtime) *Command {
	var (
		category string
		query    string
		sortKey  string
	)

	return &Command{
		Name:    "list",
		Summary: "List approved events",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
			fs.StringVar(&category, "category", "", "only this category")
			fs.StringVar(&query, "query", "", "match title, location or tags")
			fs.StringVar(&sortKey, "sort", string(ui.SortDate), "date or title")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			list, err := rt.Client.Events.FetchEvents(ctx, "")
			if err != nil {
				return rt.fail(err)
			}

			rt.Client.UI.SetFilter(ui.Filter{Category: category, Query: query})
			rt.Client.UI.SetSort(ui.SortKey(sortKey))

			visible := rt.Client.UI.Container().Snapshot().Visible(list)
			if len(visible) == 0 {
				rt.printf("no events\n")
				return nil
			}
			rt.printEvents(visible)
			return nil
		},
	}
}

func (rt *Runtime) printEvents(list []domain.Event) {
	tw := tabwriter.NewWriter(rt.Out, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTITLE\tCATEGORY\tSTARTS\tLOCATION\n")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Title, e.Category, e.StartTime.Local().Format(time.DateTime), e.Location)
	}
	tw.Flush()
}

func eventsShowCmd(rt *Runtime) *Command {
	var tab string

	return &Command{
		Name:    "show",
		Summary: "Show an event and its ticket types",
		Usage:   "ticksy events show <event-id> [--tab details|tickets]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
			fs.StringVar(&tab, "tab", "", "only the details or tickets tab")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "<event-id>"); err != nil {
				return err
			}

			e, err := rt.Client.Events.FetchEvent(ctx, args[0])
			if err != nil {
				return rt.fail(err)
			}

			list, err := rt.Client.Tickets.FetchTickets(ctx, e.ID)
			if err != nil {
				return rt.fail(err)
			}

			if tab != "" {
				rt.Client.UI.SetActiveTab(e.ID, tab)
			}
			active := rt.Client.UI.Container().Snapshot().ActiveTab[e.ID]

			if active == "tickets" {
				rt.printTickets(list)
				return nil
			}

			rt.printf("%s [%s]\n%s\n%s, %s - %s\n", e.Title, e.Status, e.Description, e.Location,
				e.StartTime.Local().Format(time.DateTime), e.EndTime.Local().Format(time.DateTime))
			if len(e.Tags) > 0 {
				rt.printf("tags: %s\n", strings.Join(e.Tags, ", "))
			}
			if e.ImageURL != "" {
				rt.printf("image: %s%s\n", rt.Client.API.BaseURL(), e.ImageURL)
			}

			if active != "details" {
				rt.printTickets(list)
			}
			return nil
		},
	}
}

func (rt *Runtime) printTickets(list []domain.TicketType) {
	if len(list) == 0 {
		rt.printf("no tickets on sale\n")
		return
	}

	tw := tabwriter.NewWriter(rt.Out, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TICKET\tTYPE\tPRICE\tREMAINING\n")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.ID, t.Type, t.Price.StringFixed(2), t.Remaining())
	}
	tw.Flush()
}

// eventFlags binds the organizer's event form.
type eventFlags struct {
	title       string
	description string
	location    string
	start       string
	end         string
	category    string
	tags        []string
	image       string
}

func (f *eventFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "event title")
	fs.StringVar(&f.description, "description", "", "event description")
	fs.StringVar(&f.location, "location", "", "venue")
	fs.StringVar(&f.start, "start", "", "start time, RFC 3339")
	fs.StringVar(&f.end, "end", "", "end time, RFC 3339")
	fs.StringVar(&f.category, "category", "", "category")
	fs.StringSliceVar(&f.tags, "tags", nil, "comma separated tags")
	fs.StringVar(&f.image, "image", "", "path to a cover image")
}

// input parses the flags. The returned closer releases the image file.
func (f *eventFlags) input() (events.Input, func(), error) {
	noop := func() {}

	start, err := time.Parse(time.RFC3339, f.start)
	if err != nil {
		return events.Input{}, noop, fmt.Errorf("%w: --start: %v", ErrUsage, err)
	}

	end, err := time.Parse(time.RFC3339, f.end)
	if err != nil {
		return events.Input{}, noop, fmt.Errorf("%w: --end: %v", ErrUsage, err)
	}

	in := events.Input{
		Title:       f.title,
		Description: f.description,
		Location:    f.location,
		StartTime:   start,
		EndTime:     end,
		Category:    f.category,
		Tags:        f.tags,
	}

	if f.image == "" {
		return in, noop, nil
	}

	img, err := os.Open(f.image)
	if err != nil {
		return events.Input{}, noop, err
	}
	in.Image = &apiclient.FilePart{Field: "image", Filename: filepath.Base(f.image), Content: img}

	return in, func() { _ = img.Close() }, nil
}

func eventsCreateCmd(rt *Runtime) *Command {
	var f eventFlags

	return &Command{
		Name:    "create",
		Summary: "Submit a new event for review",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
			f.register(fs)
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			in, done, err := f.input()
			if err != nil {
				return err
			}
			defer done()

			e, err := rt.Client.Events.CreateEvent(ctx, in)
			if err != nil {
				return rt.fail(err)
			}

			rt.Client.UI.ShowToast(ui.ToastSuccess, fmt.Sprintf("event %s submitted for review", e.ID))
			return nil
		},
	}
}

func eventsUpdateCmd(rt *Runtime) *Command {
	var f eventFlags

	return &Command{
		Name:    "update",
		Summary: "Edit an event and resubmit it for review",
		Usage:   "ticksy events update <event-id> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
			f.register(fs)
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "<event-id>"); err != nil {
				return err
			}

			in, done, err := f.input()
			if err != nil {
				return err
			}
			defer done()

			e, err := rt.Client.Events.UpdateEvent(ctx, args[0], in)
			if err != nil {
				return rt.fail(err)
			}

			rt.Client.UI.ShowToast(ui.ToastSuccess, fmt.Sprintf("event %s resubmitted for review", e.ID))
			return nil
		},
	}
}

func dashboardCmd(rt *Runtime) *Command {
	var tab string

	return &Command{
		Name:    "dashboard",
		Summary: "Show the organizer's events by review state with sales",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("dashboard", pflag.ContinueOnError)
			fs.StringVar(&tab, "tab", "", "pending, rejected, approved or history")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			b, err := rt.Client.Events.FetchOrganizerEvents(ctx)
			if err != nil {
				return rt.fail(err)
			}

			selling := append(append([]domain.Event{}, b.Approved...), b.History...)

			g, gCtx := errgroup.WithContext(ctx)
			g.SetLimit(dashboardFanOut)
			for _, e := range selling {
				g.Go(func() error {
					_, err := rt.Client.Tickets.FetchTickets(gCtx, e.ID)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return rt.fail(err)
			}

			sales := rt.Client.Tickets.Container().Snapshot()

			sections := []struct {
				name string
				list []domain.Event
			}{
				{"pending", b.Pending},
				{"rejected", b.Rejected},
				{"approved", b.Approved},
				{"history", b.History},
			}
			for _, sec := range sections {
				if tab != "" && tab != sec.name {
					continue
				}
				rt.printBucket(sec.name, sec.list, sales)
			}
			return nil
		},
	}
}

func (rt *Runtime) printBucket(name string, list []domain.Event, sales tickets.State) {
	rt.printf("%s (%d)\n", strings.ToUpper(name), len(list))
	if len(list) == 0 {
		return
	}

	tw := tabwriter.NewWriter(rt.Out, 2, 0, 2, ' ', 0)
	for _, e := range list {
		s := sales.SalesFor(e.ID)
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d/%d sold\t%s\n", e.ID, e.Title,
			e.StartTime.Local().Format(time.DateTime), s.Sold, s.Capacity, s.Revenue.StringFixed(2))
	}
	tw.Flush()
}

func ticketsCmd(rt *Runtime) *Command {
	return &Command{
		Name:        "tickets",
		Summary:     "Manage ticket types",
		Subcommands: []*Command{ticketsCreateCmd(rt)},
	}
}

func ticketsCreateCmd(rt *Runtime) *Command {
	var (
		typ      string
		price    string
		quantity int
	)

	return &Command{
		Name:    "create",
		Summary: "Add a ticket type to an event",
		Usage:   "ticksy tickets create <event-id> --type VIP --price 1500 --quantity 100",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
			fs.StringVar(&typ, "type", "", "ticket type name")
			fs.StringVar(&price, "price", "0", "unit price")
			fs.IntVar(&quantity, "quantity", 0, "tickets available")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "<event-id>"); err != nil {
				return err
			}

			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("%w: --price: %v", ErrUsage, err)
			}

			t, err := rt.Client.Tickets.CreateTicket(ctx, args[0], tickets.Input{Type: typ, Price: p, QuantityTotal: quantity})
			if err != nil {
				return rt.fail(err)
			}

			rt.Client.UI.ShowToast(ui.ToastSuccess, fmt.Sprintf("ticket type %s added", t.ID))
			return nil
		},
	}
}
