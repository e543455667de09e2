package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/dharmasatrya/flightsearch-web/internal/form"
	"github.com/dharmasatrya/flightsearch-web/internal/models"
	"github.com/dharmasatrya/flightsearch-web/internal/ratelimit"
	"github.com/dharmasatrya/flightsearch-web/internal/session"
	"github.com/dharmasatrya/flightsearch-web/internal/store"
	"github.com/dharmasatrya/flightsearch-web/internal/view"
)

const (
	sessionKey = "session_id"

	noticeInFlight    = "A search is already in progress."
	noticeRateLimited = "Too many searches. Please wait a moment and try again."
)

type SearchHandler struct {
	sessions *session.Manager
	limiter  *ratelimit.ClientLimiter
	options  view.Options
	logger   *zap.Logger
	now      func() time.Time
}

type pageData struct {
	Form     form.SearchForm
	Errors   form.FieldErrors
	MinStart string
	MinEnd   string
	Notice   string
	Results  view.Page
}

// submission is what a form post resolved to, before it is rendered as HTML
// or JSON.
type submission struct {
	status int
	code   string
	notice string
	errs   form.FieldErrors
	state  store.State
}

func NewSearchHandler(sessions *session.Manager, limiter *ratelimit.ClientLimiter, opts view.Options, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		sessions: sessions,
		limiter:  limiter,
		options:  opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *SearchHandler) Register(e *echo.Echo) error {
	renderer, err := NewRenderer()
	if err != nil {
		return err
	}
	e.Renderer = renderer
	// Throttling keys on the client address; forwarded headers are only
	// honoured when the server is configured to trust a proxy.
	if e.IPExtractor == nil {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.GET("/", h.Page, h.session(true))
	e.POST("/search", h.Submit, h.session(true))
	e.GET("/health", HealthHandler)

	api := e.Group("/api/v1", middleware.CORS(), h.session(false))
	api.POST("/flights/search", h.SearchJSON)
	api.GET("/flights/state", h.State)
	return nil
}

// session attaches the visitor's session id. With issue set, a visitor
// without a valid cookie gets a new one; otherwise the id stays empty.
func (h *SearchHandler) session(issue bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if cookie, err := c.Cookie(session.CookieName); err == nil && session.ValidID(cookie.Value) {
				id = cookie.Value
			}
			if id == "" && issue {
				id = session.NewID()
				c.SetCookie(&http.Cookie{
					Name:     session.CookieName,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(sessionKey, id)
			return next(c)
		}
	}
}

func (h *SearchHandler) Page(c echo.Context) error {
	state := h.current(sessionID(c))
	return h.render(c, http.StatusOK, formFromQuery(state.Query), nil, "", state)
}

func (h *SearchHandler) Submit(c echo.Context) error {
	var f form.SearchForm
	if err := c.Bind(&f); err != nil {
		state := h.current(sessionID(c))
		return h.render(c, http.StatusBadRequest, f, nil, "Failed to read the search form.", state)
	}

	sub := h.submit(c, f)
	return h.render(c, sub.status, f, sub.errs, sub.notice, sub.state)
}

func (h *SearchHandler) SearchJSON(c echo.Context) error {
	var f form.SearchForm
	if err := c.Bind(&f); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
			Code:    http.StatusBadRequest,
		})
	}

	sub := h.submit(c, f)
	if sub.status != http.StatusOK {
		msg := sub.notice
		if sub.errs != nil {
			msg = sub.errs.Error()
		}
		return c.JSON(sub.status, models.ErrorResponse{
			Error:   sub.code,
			Message: msg,
			Code:    sub.status,
			Fields:  fieldStrings(sub.errs),
		})
	}
	return c.JSON(http.StatusOK, view.Build(sub.state, h.options))
}

func (h *SearchHandler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, view.Build(h.current(sessionID(c)), h.options))
}

func (h *SearchHandler) submit(c echo.Context, f form.SearchForm) submission {
	id := sessionID(c)
	client := c.RealIP()
	logger := h.logger.With(zap.String("session", id), zap.String("client", client))

	q, err := f.Submit(h.now())
	if err != nil {
		var errs form.FieldErrors
		if !errors.As(err, &errs) {
			errs = form.FieldErrors{"form": models.ValidationError(err.Error())}
		}
		logger.Debug("search form rejected", zap.Error(err))
		return submission{status: http.StatusBadRequest, code: "validation_error", errs: errs, state: h.current(id)}
	}

	// Checked before the limiter so a rejected duplicate does not spend a token.
	st, ok := h.sessions.Lookup(id)
	if ok && st.Snapshot().Loading() {
		return submission{status: http.StatusConflict, code: "search_in_progress", notice: noticeInFlight, state: st.Snapshot()}
	}
	if !h.limiter.Allow(client) {
		logger.Warn("search rate limited")
		return submission{status: http.StatusTooManyRequests, code: "rate_limited", notice: noticeRateLimited, state: h.current(id)}
	}

	switch {
	case ok:
	case id != "":
		st = h.sessions.Get(id)
	default:
		st = h.sessions.Detached()
	}

	state, err := st.Search(c.Request().Context(), q)
	if errors.Is(err, store.ErrSearchInFlight) {
		return submission{status: http.StatusConflict, code: "search_in_progress", notice: noticeInFlight, state: state}
	}

	logger.Info("search resolved",
		zap.String("from", q.Origin),
		zap.String("to", q.Destination),
		zap.Bool("round_trip", q.IsRoundTrip),
		zap.Stringer("status", state.Status),
		zap.Int("results", len(state.Flights)))

	return submission{status: http.StatusOK, state: state}
}

func (h *SearchHandler) render(c echo.Context, status int, f form.SearchForm, errs form.FieldErrors, notice string, state store.State) error {
	now := h.now()
	return c.Render(status, "page.html", pageData{
		Form:     f.Normalize(),
		Errors:   errs,
		MinStart: form.MinDepartureDate(now),
		MinEnd:   f.MinReturnDate(now),
		Notice:   notice,
		Results:  view.Build(state, h.options),
	})
}

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// current is the state of an existing session, or the idle state when the
// visitor has none.
func (h *SearchHandler) current(id string) store.State {
	if st, ok := h.sessions.Lookup(id); ok {
		return st.Snapshot()
	}
	return store.State{}
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionKey).(string)
	return id
}

func formFromQuery(q *models.Query) form.SearchForm {
	if q == nil {
		return form.SearchForm{}
	}
	f := form.SearchForm{
		From:        q.Origin,
		To:          q.Destination,
		Start:       q.DepartureDate.Format(models.DateLayout),
		IsRoundTrip: q.IsRoundTrip,
	}
	if q.ReturnDate != nil {
		f.End = q.ReturnDate.Format(models.DateLayout)
	}
	return f
}

func fieldStrings(errs form.FieldErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for k, v := range errs {
		out[k] = string(v)
	}
	return out
}
