package state

import (
	"context"

	"github.com/kirinyoku/ticksy/internal/apiclient"
)

// Request is the loading/error pair every async operation drives.
type Request struct {
	Loading bool
	Error   string
}

// Dispatch runs call under the three-phase contract:
//
//   - requested: Loading is set and the previous Error cleared;
//   - fulfilled: fulfill reduces the result and Loading is cleared;
//   - rejected: Error is set from err, Loading is cleared and the rest of
//     the state is left untouched.
//
// The outcome is also returned so callers can branch on it. Dispatch never
// retries.
func Dispatch[S, R any](
	ctx context.Context,
	c *Container[S],
	req func(s *S) *Request,
	call func(ctx context.Context) (R, error),
	fulfill func(s *S, r R),
) (R, error) {
	c.Update(func(s *S) {
		r := req(s)
		r.Loading = true
		r.Error = ""
	})

	res, err := call(ctx)
	if err != nil {
		c.Update(func(s *S) {
			r := req(s)
			r.Loading = false
			r.Error = apiclient.Message(err)
		})

		var zero R
		return zero, err
	}

	c.Update(func(s *S) {
		if fulfill != nil {
			fulfill(s, res)
		}
		req(s).Loading = false
	})

	return res, nil
}
