// Package cli is the ticksy command tree. Each command drives the client
// state layer and prints what the views would render.
package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/app"
	"github.com/kirinyoku/ticksy/internal/export"
	"github.com/kirinyoku/ticksy/internal/slice/ui"
)

type Runtime struct {
	Client *app.Client
	Out    io.Writer

	mu        sync.Mutex
	lastToast ui.Toast
	detach    func()
}

func NewRuntime(out io.Writer) *Runtime {
	return &Runtime{Out: out}
}

// Attach binds the runtime to a client and starts echoing toasts.
func (rt *Runtime) Attach(c *app.Client) {
	rt.Client = c
	rt.detach = c.UI.Container().Subscribe(rt.onUI)
}

func (rt *Runtime) Close() {
	if rt.detach != nil {
		rt.detach()
		rt.detach = nil
	}
}

func (rt *Runtime) onUI(st ui.State) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !st.Toast.Show {
		rt.lastToast = ui.Toast{}
		return
	}
	if st.Toast == rt.lastToast {
		return
	}
	rt.lastToast = st.Toast
	fmt.Fprintf(rt.Out, "[%s] %s\n", st.Toast.Type, st.Toast.Message)
}

// ExportSaved reports where the export handler wrote a download.
func (rt *Runtime) ExportSaved(r export.Result) {
	if r.Err != nil {
		rt.Client.UI.ShowToast(ui.ToastError, "export failed: "+r.Err.Error())
		return
	}
	rt.Client.UI.ShowToast(ui.ToastSuccess, "export saved to "+r.Path)
}

func (rt *Runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.Out, format, args...)
}

// fail shows err as an error toast, listing server field errors if any.
func (rt *Runtime) fail(err error) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		for _, k := range slices.Sorted(maps.Keys(apiErr.Fields)) {
			rt.printf("  %s: %s\n", k, apiErr.Fields[k])
		}
	}
	rt.Client.UI.ShowToast(ui.ToastError, err.Error())
	return err
}

func Root(rt *Runtime) *Command {
	return &Command{
		Name:    "ticksy",
		Summary: "Ticksy event ticketing client",
		Subcommands: []*Command{
			loginCmd(rt),
			logoutCmd(rt),
			whoamiCmd(rt),
			registerCmd(rt),
			eventsCmd(rt),
			dashboardCmd(rt),
			ticketsCmd(rt),
			checkoutCmd(rt),
			orderCmd(rt),
			attendeesCmd(rt),
			adminCmd(rt),
			profileCmd(rt),
			openCmd(rt),
		},
	}
}
