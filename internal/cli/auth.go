package cli

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/guard"
	"github.com/kirinyoku/ticksy/internal/session"
	"github.com/kirinyoku/ticksy/internal/slice/ui"
)

func loginCmd(rt *Runtime) *Command {
	var creds session.Credentials

	return &Command{
		Name:    "login",
		Summary: "Sign in and remember the session",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
			fs.StringVar(&creds.Email, "email", "", "account email")
			fs.StringVar(&creds.Password, "password", "", "account password")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			sess, err := rt.Client.Session.Login(ctx, creds)
			if err != nil {
				return rt.fail(err)
			}

			rt.Client.UI.ShowToast(ui.ToastSuccess, "signed in as "+sess.Email)
			rt.printf("role: %s\nhome: %s\n", sess.Role, guard.Home(sess))
			return nil
		},
	}
}

func logoutCmd(rt *Runtime) *Command {
	return &Command{
		Name:    "logout",
		Summary: "Forget the stored session",
		Run: func(ctx context.Context, args []string) error {
			rt.Client.Session.Logout(ctx)
			rt.Client.UI.ShowToast(ui.ToastInfo, "signed out")
			return nil
		},
	}
}

func whoamiCmd(rt *Runtime) *Command {
	return &Command{
		Name:    "whoami",
		Summary: "Show the signed-in user",
		Run: func(ctx context.Context, args []string) error {
			sess := rt.Client.Session.Current()
			if sess == nil {
				rt.printf("not signed in\n")
				return nil
			}

			rt.printf("%s %s <%s>\nrole: %s\nid: %s\n", sess.FirstName, sess.LastName, sess.Email, sess.Role, sess.UserID)
			return nil
		},
	}
}

func registerCmd(rt *Runtime) *Command {
	var (
		reg  session.Registration
		role string
	)

	return &Command{
		Name:    "register",
		Summary: "Create an attendee or organizer account",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
			fs.StringVar(&reg.FirstName, "first-name", "", "first name")
			fs.StringVar(&reg.LastName, "last-name", "", "last name")
			fs.StringVar(&reg.Email, "email", "", "email")
			fs.StringVar(&reg.Phone, "phone", "", "phone number")
			fs.StringVar(&reg.Password, "password", "", "password")
			fs.StringVar(&role, "role", string(domain.RoleAttendee), "attendee or organizer")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			reg.Role = domain.Role(role)

			user, signedIn, err := rt.Client.Session.Register(ctx, reg)
			if err != nil {
				return rt.fail(err)
			}

			if signedIn {
				rt.Client.UI.ShowToast(ui.ToastSuccess, "welcome, "+user.FirstName)
				return nil
			}

			rt.Client.UI.ShowToast(ui.ToastSuccess, "account created, sign in with 'ticksy login'")
			return nil
		},
	}
}

func openCmd(rt *Runtime) *Command {
	return &Command{
		Name:    "open",
		Summary: "Check whether the current session may open a view path",
		Usage:   "ticksy open <path>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "<path>"); err != nil {
				return err
			}

			d := guard.Check(rt.Client.Session.Current(), args[0])
			if d.Allowed {
				rt.printf("allowed: %s\n", args[0])
				return nil
			}

			rt.printf("redirect: %s\n", d.Redirect)
			return nil
		},
	}
}
