package httpgin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/checkout"
	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/export"
	"github.com/kirinyoku/ticksy/internal/guard"
	"github.com/kirinyoku/ticksy/internal/orders"
	"github.com/kirinyoku/ticksy/internal/repository/memory"
	"github.com/kirinyoku/ticksy/internal/service/backend"
	"github.com/kirinyoku/ticksy/internal/session"
	"github.com/kirinyoku/ticksy/internal/slice/admin"
	"github.com/kirinyoku/ticksy/internal/slice/attendees"
	"github.com/kirinyoku/ticksy/internal/slice/events"
	"github.com/kirinyoku/ticksy/internal/slice/tickets"
	"github.com/kirinyoku/ticksy/internal/storage"
)

const password = "secret1"

type env struct {
	srv       *httptest.Server
	svc       *backend.Service
	admin     domain.User
	organizer domain.User
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newEnv(t *testing.T, cfg backend.Config, opts ...backend.Option) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg.PasswordCost = bcrypt.MinCost
	svc := backend.New(cfg, discard(), opts...)

	adminUser, err := svc.SeedUser(domain.User{
		FirstName: "Ada", LastName: "Admin", Email: "admin@ticksy.test", Phone: "0700000000", Role: domain.RoleAdmin,
	}, password)
	require.NoError(t, err)

	organizer, err := svc.SeedUser(domain.User{
		FirstName: "Wanjiru", LastName: "Kamau", Email: "org@ticksy.test", Phone: "0700000001", Role: domain.RoleOrganizer,
	}, password)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(svc, memory.NewIdempotencyStore(time.Hour), discard()))
	t.Cleanup(srv.Close)

	return env{srv: srv, svc: svc, admin: adminUser, organizer: organizer}
}

type user struct {
	api  *apiclient.Client
	sess *session.Store
	mem  *storage.Memory
}

// client builds the client stack a CLI profile would use.
func (e env) client(t *testing.T) user {
	t.Helper()

	mem := storage.NewMemory()
	var sess *session.Store

	api, err := apiclient.New(apiclient.Config{BaseURL: e.srv.URL}, session.Tokens(mem), discard(),
		apiclient.WithUnauthorizedHook(func(ctx context.Context) { sess.Expire(ctx) }))
	require.NoError(t, err)

	sess = session.New(mem, api, discard())
	sess.Load(context.Background())

	return user{api: api, sess: sess, mem: mem}
}

func (e env) login(t *testing.T, email string) user {
	t.Helper()

	u := e.client(t)
	_, err := u.sess.Login(context.Background(), session.Credentials{Email: email, Password: password})
	require.NoError(t, err)

	return u
}

func eventInput(title string, start time.Time) events.Input {
	return events.Input{
		Title:     title,
		Location:  "KICC, Nairobi",
		StartTime: start,
		EndTime:   start.Add(4 * time.Hour),
		Category:  "Music",
		Tags:      []string{"live", "afro"},
	}
}

func TestE2E_OrganizerDashboard(t *testing.T) {
	e := newEnv(t, backend.Config{})
	ctx := context.Background()

	org := e.login(t, "org@ticksy.test")
	sess := org.sess.Current()
	require.NotNil(t, sess)
	assert.Equal(t, domain.RoleOrganizer, sess.Role)

	assert.True(t, guard.Check(sess, "/organizer/"+e.organizer.ID+"/dashboard").Allowed)
	assert.Equal(t, guard.Decision{Redirect: "/unauthorized"}, guard.Check(sess, "/admin/pending"))

	evs := events.New(org.api, discard())
	past, err := evs.CreateEvent(ctx, eventInput("Last Year's Gala", time.Now().Add(-30*24*time.Hour)))
	require.NoError(t, err)
	soon, err := evs.CreateEvent(ctx, eventInput("Jazz Night", time.Now().Add(7*24*time.Hour)))
	require.NoError(t, err)
	_, err = evs.CreateEvent(ctx, eventInput("Still Waiting", time.Now().Add(14*24*time.Hour)))
	require.NoError(t, err)

	ad := e.login(t, "admin@ticksy.test")
	moderation := admin.New(ad.api, discard())
	pending, err := moderation.FetchPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	require.NoError(t, moderation.SetEventStatus(ctx, past.ID, domain.EventApproved))
	require.NoError(t, moderation.SetEventStatus(ctx, soon.ID, domain.EventApproved))
	assert.Len(t, moderation.Container().Snapshot().Pending, 1)

	buckets, err := evs.FetchOrganizerEvents(ctx)
	require.NoError(t, err)

	require.Len(t, buckets.History, 1)
	assert.Equal(t, past.ID, buckets.History[0].ID)
	require.Len(t, buckets.Approved, 1)
	assert.Equal(t, soon.ID, buckets.Approved[0].ID)
	assert.Len(t, buckets.Pending, 1)
	assert.Empty(t, buckets.Rejected)

	// Editing an approved event sends it back to moderation.
	_, err = evs.UpdateEvent(ctx, soon.ID, eventInput("Jazz Night (late show)", time.Now().Add(7*24*time.Hour)))
	require.NoError(t, err)
	assert.Len(t, evs.Container().Snapshot().Organizer.Pending, 2)
}

func TestE2E_CheckoutUntilPaid(t *testing.T) {
	e := newEnv(t, backend.Config{PayAfterPolls: 2})
	ctx := context.Background()

	org := e.login(t, "org@ticksy.test")
	ev, err := events.New(org.api, discard()).CreateEvent(ctx, eventInput("Koroga Festival", time.Now().Add(72*time.Hour)))
	require.NoError(t, err)

	orgTickets := tickets.New(org.api, discard())
	_, err = orgTickets.CreateTicket(ctx, ev.ID, tickets.Input{Type: "Regular", Price: decimal.NewFromInt(3000), QuantityTotal: 100})
	require.NoError(t, err)
	_, err = orgTickets.CreateTicket(ctx, ev.ID, tickets.Input{Type: "VIP", Price: decimal.NewFromInt(60000), QuantityTotal: 10})
	require.NoError(t, err)

	ad := e.login(t, "admin@ticksy.test")
	require.NoError(t, admin.New(ad.api, discard()).SetEventStatus(ctx, ev.ID, domain.EventApproved))

	buyer := e.client(t)
	_, authed, err := buyer.sess.Register(ctx, session.Registration{
		FirstName: "Amina", LastName: "Otieno", Email: "amina@example.com", Phone: "0711000000", Password: password,
	})
	require.NoError(t, err)
	require.True(t, authed)

	list, err := tickets.New(buyer.api, discard()).FetchTickets(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	sel := checkout.NewSelection(list)
	require.NoError(t, sel.Increment(list[0].ID))
	require.NoError(t, sel.Increment(list[0].ID))
	require.NoError(t, sel.Increment(list[1].ID))
	assert.True(t, decimal.NewFromInt(66000).Equal(sel.Total()))

	slots := sel.Slots()
	for i := range slots {
		slots[i].Name = "Guest"
		slots[i].Email = "guest@example.com"
		slots[i].Phone = "0722000000"
	}

	orderID, err := checkout.New(buyer.api, discard()).Submit(ctx, ev.ID, slots, true)
	require.NoError(t, err)

	poller := orders.NewPoller(buyer.api, orderID, discard(), orders.WithInterval(5*time.Millisecond))
	paid, err := poller.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, paid.Status)
	assert.NotEmpty(t, paid.MpesaReceipt)
	assert.True(t, decimal.NewFromInt(66000).Equal(paid.TotalAmount))
	assert.Equal(t, 3, poller.Container().Snapshot().Fetches)

	// The organizer now sees the attendees and can check them in.
	att := attendees.New(org.api, discard())
	people, err := att.FetchAttendees(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, people, 3)

	require.NoError(t, att.CheckIn(ctx, ev.ID, people[0].ID))
	assert.Equal(t, 1, att.Container().Snapshot().CheckedInCount(ev.ID))

	dir := t.TempDir()
	var (
		mu    sync.Mutex
		saved []export.Result
	)
	detach := export.New(dir, discard(), export.WithNotify(func(r export.Result) {
		mu.Lock()
		saved = append(saved, r)
		mu.Unlock()
	})).Attach(att)
	defer detach()

	_, err = att.Export(ctx, ev.ID, "csv")
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, saved, 1)
	mu.Unlock()

	b, err := os.ReadFile(filepath.Join(dir, "attendees.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[1], "true")
}

func TestE2E_ExpiredTokenEndsSession(t *testing.T) {
	var (
		mu    sync.Mutex
		clock = time.Now()
	)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}

	e := newEnv(t, backend.Config{TokenTTL: time.Hour, Now: now})
	org := e.login(t, "org@ticksy.test")

	mu.Lock()
	clock = clock.Add(2 * time.Hour)
	mu.Unlock()

	_, err := events.New(org.api, discard()).FetchOrganizerEvents(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)

	assert.Nil(t, org.sess.Current())
	_, err = org.mem.Get(context.Background(), storage.KeyAccessToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestE2E_LoginFailureKeepsFieldErrors(t *testing.T) {
	e := newEnv(t, backend.Config{})
	u := e.client(t)

	_, _, err := u.sess.Register(context.Background(), session.Registration{Email: "bad"})
	require.Error(t, err)

	snap := u.sess.Container().Snapshot()
	assert.Equal(t, session.StatusUnauthenticated, snap.Status)
	assert.Equal(t, "validation failed", snap.Error)
	assert.Equal(t, "is invalid", snap.FieldErrors["email"])
}

func TestRouter_EventListETag(t *testing.T) {
	e := newEnv(t, backend.Config{})

	res, err := http.Get(e.srv.URL + "/events")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	tag := res.Header.Get("ETag")
	require.NotEmpty(t, tag)

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/events", nil)
	req.Header.Set("If-None-Match", tag)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotModified, res.StatusCode)
}

func TestRouter_CheckoutIdempotencyKey(t *testing.T) {
	e := newEnv(t, backend.Config{})
	ctx := context.Background()

	org := e.login(t, "org@ticksy.test")
	ev, err := events.New(org.api, discard()).CreateEvent(ctx, eventInput("Blankets & Wine", time.Now().Add(24*time.Hour)))
	require.NoError(t, err)
	tt, err := tickets.New(org.api, discard()).CreateTicket(ctx, ev.ID, tickets.Input{Type: "Regular", Price: decimal.NewFromInt(2500), QuantityTotal: 5})
	require.NoError(t, err)

	ad := e.login(t, "admin@ticksy.test")
	require.NoError(t, admin.New(ad.api, discard()).SetEventStatus(ctx, ev.ID, domain.EventApproved))

	body := CheckoutRequest{
		EventID:   ev.ID,
		Attendees: []domain.OrderAttendee{{Name: "Ann", Email: "ann@example.com", Phone: "0700", TicketID: tt.ID}},
		PayNow:    true,
	}

	keyed := apiclient.WithIdempotencyKey(ctx, "same-key")
	var first, second domain.Order
	require.NoError(t, org.api.Post(keyed, "/events/"+ev.ID+"/checkout", body, &first))
	require.NoError(t, org.api.Post(keyed, "/events/"+ev.ID+"/checkout", body, &second))
	assert.Equal(t, first.ID, second.ID)

	list, err := tickets.New(org.api, discard()).FetchTickets(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, list[0].QuantitySold)
}

func TestRouter_LoginRateLimited(t *testing.T) {
	e := newEnv(t, backend.Config{}, backend.WithLimiter(memory.NewSlidingWindowLimiter(1, time.Minute)))
	u := e.client(t)
	ctx := context.Background()

	_, err := u.sess.Login(ctx, session.Credentials{Email: "org@ticksy.test", Password: "wrong"})
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = u.sess.Login(ctx, session.Credentials{Email: "org@ticksy.test", Password: password})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestRouter_AuthRequired(t *testing.T) {
	e := newEnv(t, backend.Config{})
	u := e.client(t)

	err := u.api.Get(context.Background(), "/organizer/events", nil)
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/profile/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	e := newEnv(t, backend.Config{})

	res, err := http.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(b), "ticksy_stub_requests_total")
}
