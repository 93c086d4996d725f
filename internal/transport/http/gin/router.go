package httpgin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/ticksy/internal/domain"
	redisx "github.com/kirinyoku/ticksy/internal/redis"
	"github.com/kirinyoku/ticksy/internal/service/backend"
)

// IdempotencyStore remembers checkout responses by Idempotency-Key.
type IdempotencyStore interface {
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, jsonPayload string) error
	GetResult(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key string) error
}

func NewRouter(
	svc *backend.Service,
	idem IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS(), MetricsMiddleware())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("", AuthMiddleware(svc))

	api.POST("/login", handleLogin(svc))
	api.POST("/signup", handleSignup(svc))

	api.GET("/events", handleListEvents(svc))
	api.GET("/events/:id", handleGetEvent(svc))
	api.GET("/events/:id/tickets", handleListTickets(svc))

	authed := api.Group("", RequireAuth())
	{
		authed.POST("/events", handleCreateEvent(svc))
		authed.PUT("/events/:id", handleUpdateEvent(svc))
		authed.POST("/events/:id/tickets", handleCreateTicket(svc))
		authed.POST("/events/:id/checkout", handleCheckout(svc, idem))

		authed.GET("/events/:id/attendees", handleListAttendees(svc))
		authed.GET("/events/:id/attendees/export", handleExportAttendees(svc))
		authed.POST("/events/:id/attendees/:aid/check-in", handleSetCheckedIn(svc, true))
		authed.POST("/events/:id/attendees/:aid/undo-check-in", handleSetCheckedIn(svc, false))

		authed.GET("/orders/:id", handleGetOrder(svc))
		authed.GET("/organizer/events", handleOrganizerEvents(svc))

		authed.GET("/profile/me", handleMe(svc))
		authed.GET("/profile/my-upcoming-events", handleMyEvents(svc, true))
		authed.GET("/profile/my-past-events", handleMyEvents(svc, false))

		authed.GET("/admin/pending", handlePendingEvents(svc))
		authed.GET("/admin/users", handleUsers(svc))
		authed.PATCH("/admin/:id", handleSetEventStatus(svc))
	}

	return r
}

// @Summary  Log in
// @Param    req body  LoginRequest true "credentials"
// @Success  200 {object} AuthResponse
// @Failure  401 {object} ErrorResponse
// @Failure  429 {object} ErrorResponse
// @Router   /login [post]
func handleLogin(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		u, token, err := svc.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, AuthResponse{User: u, AccessToken: token})
	}
}

// @Summary  Register
// @Param    req body  backend.SignupInput true "profile"
// @Success  201 {object} AuthResponse
// @Failure  409 {object} ErrorResponse
// @Failure  422 {object} ErrorResponse
// @Router   /signup [post]
func handleSignup(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req backend.SignupInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		u, token, err := svc.Signup(c.Request.Context(), req)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, AuthResponse{User: u, AccessToken: token})
	}
}

// @Summary  List approved events
// @Param    category query string false "category filter"
// @Success  200 {array} domain.Event
// @Router   /events [get]
func handleListEvents(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListEvents(c.Request.Context(), c.Query("category"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, list, "public, max-age=15")
	}
}

// @Summary  Get event
// @Param    id  path  string  true  "Event ID"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := svc.GetEvent(c.Request.Context(), principal(c), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}

		cache := "private, no-cache"
		if e.Status == domain.EventApproved {
			cache = "public, max-age=60"
		}
		writeJSONWithCache(c, http.StatusOK, e, cache)
	}
}

// @Summary  Create event (multipart, optional image)
// @Success  201 {object} domain.Event
// @Failure  422 {object} ErrorResponse
// @Router   /events [post]
func handleCreateEvent(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, ok := bindEventForm(c)
		if !ok {
			return
		}

		e, err := svc.CreateEvent(c.Request.Context(), principal(c), in)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, e)
	}
}

// @Summary  Update event (multipart); sends it back to moderation
// @Param    id  path  string  true  "Event ID"
// @Success  200 {object} domain.Event
// @Router   /events/{id} [put]
func handleUpdateEvent(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, ok := bindEventForm(c)
		if !ok {
			return
		}

		e, err := svc.UpdateEvent(c.Request.Context(), principal(c), c.Param("id"), in)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, e)
	}
}

// @Summary  List ticket types
// @Param    id  path  string  true  "Event ID"
// @Success  200 {array} domain.TicketType
// @Router   /events/{id}/tickets [get]
func handleListTickets(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListTickets(c.Request.Context(), principal(c), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Create ticket type
// @Param    id  path  string  true  "Event ID"
// @Param    req body  backend.TicketInput true "ticket type"
// @Success  201 {object} domain.TicketType
// @Router   /events/{id}/tickets [post]
func handleCreateTicket(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req backend.TicketInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		t, err := svc.CreateTicket(c.Request.Context(), principal(c), c.Param("id"), req)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, t)
	}
}

// @Summary  Check out (idempotent)
// @Param    id  path  string  true  "Event ID"
// @Param    req body  CheckoutRequest true "attendees"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.Order
// @Failure  409 {object} ErrorResponse "sold out / key in progress"
// @Failure  422 {object} ErrorResponse
// @Router   /events/{id}/checkout [post]
func handleCheckout(svc *backend.Service, idem IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID := c.Param("id")
		p := principal(c)

		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if req.EventID != "" && req.EventID != eventID {
			badRequest(c, "event_id does not match the path")
			return
		}

		ctx := c.Request.Context()
		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))

		var storageKey string
		if idem != nil && idemKey != "" {
			storageKey = redisx.KeyIdemCheckout(eventID, p.UserID, idemKey)

			if payload, ok, _ := idem.GetResult(ctx, storageKey); ok {
				replay(c, idemKey, payload)
				return
			}

			locked, err := idem.AcquireLock(ctx, storageKey, time.Minute)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(ctx, storageKey); ok {
					replay(c, idemKey, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Message: "idempotency key in progress"})
				return
			}
		}

		order, err := svc.Checkout(ctx, p, eventID, backend.CheckoutInput{
			Attendees: req.Attendees,
			PayNow:    req.PayNow,
		})
		if err != nil {
			if storageKey != "" {
				_ = idem.Release(ctx, storageKey)
			}
			respondErr(c, err)
			return
		}

		if storageKey != "" {
			b, _ := json.Marshal(order)
			_ = idem.SaveResult(ctx, storageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, order)
	}
}

func replay(c *gin.Context, idemKey, payload string) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
}

// @Summary  Get order
// @Param    id  path  string  true  "Order ID"
// @Success  200 {object} domain.Order
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{id} [get]
func handleGetOrder(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.GetOrder(c.Request.Context(), principal(c), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  List attendees of paid orders
// @Param    id  path  string  true  "Event ID"
// @Success  200 {array} domain.Attendee
// @Router   /events/{id}/attendees [get]
func handleListAttendees(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListAttendees(c.Request.Context(), principal(c), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Set attendee check-in
// @Param    id   path  string  true  "Event ID"
// @Param    aid  path  string  true  "Attendee ID"
// @Success  200 {object} domain.Attendee
// @Router   /events/{id}/attendees/{aid}/check-in [post]
// @Router   /events/{id}/attendees/{aid}/undo-check-in [post]
func handleSetCheckedIn(svc *backend.Service, checkedIn bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := svc.SetCheckedIn(c.Request.Context(), principal(c), c.Param("id"), c.Param("aid"), checkedIn)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// @Summary  Export attendees
// @Param    id      path   string  true   "Event ID"
// @Param    format  query  string  false  "csv (default) or json"
// @Router   /events/{id}/attendees/export [get]
func handleExportAttendees(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		format := c.DefaultQuery("format", "csv")

		data, contentType, err := svc.ExportAttendees(c.Request.Context(), principal(c), c.Param("id"), format)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Content-Disposition", `attachment; filename="attendees.`+format+`"`)
		c.Data(http.StatusOK, contentType, data)
	}
}

// @Summary  List the caller's events (organizer)
// @Success  200 {array} domain.Event
// @Router   /organizer/events [get]
func handleOrganizerEvents(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.OrganizerEvents(c.Request.Context(), principal(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Current user profile
// @Success  200 {object} domain.User
// @Router   /profile/me [get]
func handleMe(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.Me(c.Request.Context(), principal(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// @Summary  Events the caller holds tickets for
// @Success  200 {array} domain.Event
// @Router   /profile/my-upcoming-events [get]
// @Router   /profile/my-past-events [get]
func handleMyEvents(svc *backend.Service, upcoming bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.MyEvents(c.Request.Context(), principal(c), upcoming)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Moderation queue
// @Success  200 {array} domain.Event
// @Router   /admin/pending [get]
func handlePendingEvents(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.PendingEvents(c.Request.Context(), principal(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  List users
// @Success  200 {array} domain.User
// @Router   /admin/users [get]
func handleUsers(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Users(c.Request.Context(), principal(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Approve or reject an event
// @Param    id  path  string  true  "Event ID"
// @Param    req body  EventStatusRequest true "status"
// @Success  200 {object} domain.Event
// @Router   /admin/{id} [patch]
func handleSetEventStatus(svc *backend.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EventStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		e, err := svc.SetEventStatus(c.Request.Context(), principal(c), c.Param("id"), req.Status)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

// --- Helpers ---

func bindEventForm(c *gin.Context) (backend.EventInput, bool) {
	fields := map[string]string{}

	parseTime := func(name string) time.Time {
		s := c.PostForm(name)
		if s == "" {
			return time.Time{}
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fields[name] = "must be an RFC3339 timestamp"
		}
		return t
	}

	in := backend.EventInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Location:    c.PostForm("location"),
		StartTime:   parseTime("start_time"),
		EndTime:     parseTime("end_time"),
		Category:    c.PostForm("category"),
	}

	for _, tag := range strings.Split(c.PostForm("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			in.Tags = append(in.Tags, tag)
		}
	}

	if fh, err := c.FormFile("image"); err == nil {
		in.ImageName = fh.Filename
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		badRequest(c, err.Error())
		return in, false
	}

	if len(fields) > 0 {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: "validation failed", Errors: fields})
		return in, false
	}

	return in, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var verr *backend.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: "validation failed", Errors: verr.Fields})
		return
	}

	var rl *backend.RateLimitError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: "too many attempts, try again later"})
		return
	}

	switch {
	case errors.Is(err, backend.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
	case errors.Is(err, backend.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid email or password"})
	case errors.Is(err, backend.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "forbidden"})
	case errors.Is(err, backend.ErrEmailTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "email already registered"})
	case errors.Is(err, backend.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid role"})
	case errors.Is(err, backend.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "status must be approved or rejected"})
	case errors.Is(err, backend.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "unsupported export format"})
	case errors.Is(err, backend.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "event not found"})
	case errors.Is(err, backend.ErrAttendeeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "attendee not found"})
	case errors.Is(err, backend.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "order not found"})
	case errors.Is(err, backend.ErrEventNotOnSale):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "event is not on sale"})
	case errors.Is(err, backend.ErrSoldOut):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "not enough tickets left"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}
}
