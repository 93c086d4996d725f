package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/kirinyoku/ticksy/internal/slice/ui"
)

func attendeesCmd(rt *Runtime) *Command {
	return &Command{
		Name:    "attendees",
		Summary: "Attendee lists, check-in and export",
		Subcommands: []*Command{
			attendeesListCmd(rt),
			attendeesCheckInCmd(rt),
			attendeesExportCmd(rt),
		},
	}
}

func attendeesListCmd(rt *Runtime) *Command {
	return &Command{
		Name:    "list",
		Summary: "List paid attendees of an event",
		Usage:   "ticksy attendees list <event-id>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "<event-id>"); err != nil {
				return err
			}

			list, err := rt.Client.Attendees.FetchAttendees(ctx, args[0])
			if err != nil {
				return rt.fail(err)
			}

			st := rt.Client.Attendees.Container().Snapshot()

			tw := tabwriter.NewWriter(rt.Out, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tNAME\tEMAIL\tPHONE\tCHECKED IN\n")
			for _, a := range list {
				mark := "no"
				if st.CheckedIn[a.ID] {
					mark = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Email, a.Phone, mark)
			}
			tw.Flush()

			rt.printf("checked in: %d/%d\n", st.CheckedInCount(args[0]), len(list))
			return nil
		},
	}
}

func attendeesCheckInCmd(rt *Runtime) *Command {
	var undo bool

	return &Command{
		Name:    "checkin",
		Summary: "Check an attendee in, or undo it",
		Usage:   "ticksy attendees checkin <event-id> <attendee-id> [--undo]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("checkin", pflag.ContinueOnError)
			fs.BoolVar(&undo, "undo", false, "revert a check-in")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "<event-id> <attendee-id>"); err != nil {
				return err
			}

			var err error
			if undo {
				err = rt.Client.Attendees.UndoCheckIn(ctx, args[0], args[1])
			} else {
				err = rt.Client.Attendees.CheckIn(ctx, args[0], args[1])
			}
			if err != nil {
				return rt.fail(err)
			}

			msg := "checked in " + args[1]
			if undo {
				msg = "check-in undone for " + args[1]
			}
			rt.Client.UI.ShowToast(ui.ToastSuccess, msg)
			return nil
		},
	}
}

func attendeesExportCmd(rt *Runtime) *Command {
	var format string

	return &Command{
		Name:    "export",
		Summary: "Download the attendee list to the export directory",
		Usage:   "ticksy attendees export <event-id> [--format csv|json]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
			fs.StringVar(&format, "format", "csv", "csv or json")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "<event-id>"); err != nil {
				return err
			}

			// The export handler saves the payload and reports through
			// Runtime.ExportSaved.
			if _, err := rt.Client.Attendees.Export(ctx, args[0], format); err != nil {
				return rt.fail(err)
			}
			return nil
		},
	}
}
