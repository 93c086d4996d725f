package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/slice/ui"
)

func adminCmd(rt *Runtime) *Command {
	return &Command{
		Name:    "admin",
		Summary: "Moderate events and list users",
		Subcommands: []*Command{
			{
				Name:    "pending",
				Summary: "List events awaiting review",
				Run: func(ctx context.Context, args []string) error {
					list, err := rt.Client.Admin.FetchPending(ctx)
					if err != nil {
						return rt.fail(err)
					}
					if len(list) == 0 {
						rt.printf("nothing to review\n")
						return nil
					}
					rt.printEvents(list)
					return nil
				},
			},
			reviewCmd(rt, "approve", domain.EventApproved),
			reviewCmd(rt, "reject", domain.EventRejected),
			{
				Name:    "users",
				Summary: "List every account",
				Run: func(ctx context.Context, args []string) error {
					users, err := rt.Client.Admin.FetchUsers(ctx)
					if err != nil {
						return rt.fail(err)
					}

					tw := tabwriter.NewWriter(rt.Out, 2, 0, 2, ' ', 0)
					fmt.Fprintf(tw, "ID\tNAME\tEMAIL\tROLE\n")
					for _, u := range users {
						fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", u.ID, u.FirstName, u.LastName, u.Email, u.Role)
					}
					tw.Flush()
					return nil
				},
			},
		},
	}
}

func reviewCmd(rt *Runtime, name string, status domain.EventStatus) *Command {
	return &Command{
		Name:    name,
		Summary: "Mark a pending event " + string(status),
		Usage:   "ticksy admin " + name + " <event-id>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "<event-id>"); err != nil {
				return err
			}

			if err := rt.Client.Admin.SetEventStatus(ctx, args[0], status); err != nil {
				return rt.fail(err)
			}

			rt.Client.UI.ShowToast(ui.ToastSuccess, fmt.Sprintf("event %s %s", args[0], status))
			return nil
		},
	}
}

func profileCmd(rt *Runtime) *Command {
	return &Command{
		Name:    "profile",
		Summary: "Show your account and ticketed events",
		Run: func(ctx context.Context, args []string) error {
			me, err := rt.Client.Profile.FetchMe(ctx)
			if err != nil {
				return rt.fail(err)
			}

			upcoming, err := rt.Client.Profile.FetchUpcoming(ctx)
			if err != nil {
				return rt.fail(err)
			}

			past, err := rt.Client.Profile.FetchPast(ctx)
			if err != nil {
				return rt.fail(err)
			}

			rt.printf("%s %s <%s> %s\n", me.FirstName, me.LastName, me.Email, me.Phone)
			rt.printf("\nUPCOMING (%d)\n", len(upcoming))
			if len(upcoming) > 0 {
				rt.printEvents(upcoming)
			}
			rt.printf("\nPAST (%d)\n", len(past))
			if len(past) > 0 {
				rt.printEvents(past)
			}
			return nil
		},
	}
}
