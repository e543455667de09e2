package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dharmasatrya/flightsearch-web/internal/models"
	"github.com/dharmasatrya/flightsearch-web/internal/ratelimit"
	"github.com/dharmasatrya/flightsearch-web/internal/searchclient"
	"github.com/dharmasatrya/flightsearch-web/internal/session"
	"github.com/dharmasatrya/flightsearch-web/internal/store"
	"github.com/dharmasatrya/flightsearch-web/internal/view"
)

const testSession = "7b0c9f5e-2d1a-4a51-9a36-3f4c2f6a8e10"

var fixedNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q models.Query) ([]models.FlightOffer, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FlightOffer), args.Error(1)
}

func newTestServer(t *testing.T, searcher *MockSearcher, limit ratelimit.RateLimitConfig) (*echo.Echo, *session.Manager) {
	t.Helper()
	e := echo.New()
	sessions := session.NewManager(searcher, nil)
	h := NewSearchHandler(sessions, ratelimit.NewClientLimiter(limit), view.Options{}, nil)
	h.now = func() time.Time { return fixedNow }
	require.NoError(t, h.Register(e))
	return e, sessions
}

func generous() ratelimit.RateLimitConfig {
	return ratelimit.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 100}
}

func postForm(e *echo.Echo, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: testSession})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func oneWayForm() url.Values {
	return url.Values{
		"from":  {"dub"},
		"to":    {"syd"},
		"start": {"2026-11-01"},
		"end":   {"2026-10-01"},
	}
}

func oneWayQuery() models.Query {
	return models.Query{
		Origin:        "DUB",
		Destination:   "SYD",
		DepartureDate: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
	}
}

func parse(t *testing.T, rec *httptest.ResponseRecorder) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	return doc
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byClass(doc *html.Node, class string) []*html.Node {
	return findAll(doc, func(n *html.Node) bool { return hasClass(n, class) })
}

func byID(doc *html.Node, id string) *html.Node {
	nodes := findAll(doc, func(n *html.Node) bool {
		v, ok := attr(n, "id")
		return ok && v == id
	})
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func TestPage_FirstVisitIssuesSession(t *testing.T) {
	e, sessions := newTestServer(t, &MockSearcher{}, generous())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.True(t, session.ValidID(cookies[0].Value))
	assert.Equal(t, 0, sessions.Len(), "viewing the page registers nothing")

	doc := parse(t, rec)
	assert.Empty(t, byClass(doc, "no-results"), "nothing searched yet")
	assert.Empty(t, byClass(doc, "offer"))

	start := byID(doc, "start")
	require.NotNil(t, start)
	minDate, _ := attr(start, "min")
	assert.Equal(t, "2026-10-17", minDate)
}

func TestSubmit_RendersOffers(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, oneWayQuery()).Return([]models.FlightOffer{
		{
			ID: "a1", FlyFrom: "DUB", FlyTo: "SYD", CityFrom: "Dublin", CityTo: "Sydney",
			Price: 812, LocalDeparture: "2026-11-01T06:05:00.000Z", LocalArrival: "2026-11-02T21:30:00.000Z",
			Duration: models.Duration{DepartureMinutes: 125, TotalMinutes: 125}, Airlines: []string{"EK", "QF"},
		},
	}, nil).Once()
	e, _ := newTestServer(t, searcher, generous())

	rec := postForm(e, oneWayForm())

	assert.Equal(t, http.StatusOK, rec.Code)
	doc := parse(t, rec)
	offers := byClass(doc, "offer")
	require.Len(t, offers, 1)
	assert.Equal(t, "Dublin DUB", text(byClass(offers[0], "from")[0]))
	assert.Equal(t, "Sydney SYD", text(byClass(offers[0], "to")[0]))
	assert.Equal(t, "2h 5m", text(byClass(offers[0], "duration")[0]))
	assert.Equal(t, "$812", text(byClass(offers[0], "price")[0]))
	assert.Equal(t, "Operated by: EK, QF", text(byClass(offers[0], "airlines")[0]))
	assert.Equal(t, "Departure: Nov 1, 2026 6:05 AM", text(byClass(offers[0], "departure")[0]))

	from, _ := attr(byID(doc, "from"), "value")
	assert.Equal(t, "DUB", from)
	_, disabled := attr(byID(doc, "submit"), "disabled")
	assert.False(t, disabled)

	searcher.AssertExpectations(t)
}

func TestSubmit_EmptyResults(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, oneWayQuery()).Return([]models.FlightOffer{}, nil).Once()
	e, _ := newTestServer(t, searcher, generous())

	doc := parse(t, postForm(e, oneWayForm()))

	nodes := byClass(doc, "no-results")
	require.Len(t, nodes, 1)
	assert.Equal(t, view.NoResultsMessage, text(nodes[0]))
}

func TestSubmit_ServiceError(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, oneWayQuery()).
		Return(nil, &searchclient.ServiceError{StatusCode: http.StatusBadGateway}).Once()
	e, sessions := newTestServer(t, searcher, generous())

	rec := postForm(e, oneWayForm())

	assert.Equal(t, http.StatusOK, rec.Code)
	doc := parse(t, rec)
	errs := byClass(doc, "error")
	require.Len(t, errs, 1)
	assert.Equal(t, searchclient.GenericMessage, text(errs[0]))
	assert.Empty(t, byClass(doc, "offer"))
	assert.False(t, sessions.Get(testSession).Snapshot().Loading())
}

func TestSubmit_ValidationNeverSearches(t *testing.T) {
	searcher := &MockSearcher{}
	e, _ := newTestServer(t, searcher, generous())

	rec := postForm(e, url.Values{"from": {"DUB"}, "start": {"2026-11-01"}, "isRoundTrip": {"true"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	doc := parse(t, rec)
	fieldErrs := byClass(doc, "field-error")
	require.Len(t, fieldErrs, 2)
	assert.Equal(t, "destination is required", text(fieldErrs[0]))
	assert.Equal(t, "return date is required for a round trip", text(fieldErrs[1]))
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestSubmit_InFlightIsRejected(t *testing.T) {
	searcher := &MockSearcher{}
	e, sessions := newTestServer(t, searcher, generous())

	_, err := sessions.Get(testSession).Begin(oneWayQuery())
	require.NoError(t, err)

	rec := postForm(e, oneWayForm())

	assert.Equal(t, http.StatusConflict, rec.Code)
	doc := parse(t, rec)
	assert.Len(t, byClass(doc, "loading"), 1)
	_, disabled := attr(byID(doc, "submit"), "disabled")
	assert.True(t, disabled)
	assert.Equal(t, noticeInFlight, text(byClass(doc, "notice")[0]))
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestSubmit_InFlightSpendsNoToken(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, oneWayQuery()).Return([]models.FlightOffer{}, nil).Once()
	e, sessions := newTestServer(t, searcher, ratelimit.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	st := sessions.Get(testSession)
	seq, err := st.Begin(oneWayQuery())
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, postForm(e, oneWayForm()).Code)
	assert.Equal(t, http.StatusConflict, postForm(e, oneWayForm()).Code)

	st.Dispatch(store.SearchSucceeded{Seq: seq})
	assert.Equal(t, http.StatusOK, postForm(e, oneWayForm()).Code)
	searcher.AssertNumberOfCalls(t, "Search", 1)
}

func TestSubmit_RateLimited(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, oneWayQuery()).Return([]models.FlightOffer{}, nil).Once()
	e, _ := newTestServer(t, searcher, ratelimit.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	assert.Equal(t, http.StatusOK, postForm(e, oneWayForm()).Code)
	rec := postForm(e, oneWayForm())

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, noticeRateLimited, text(byClass(parse(t, rec), "notice")[0]))
	searcher.AssertNumberOfCalls(t, "Search", 1)
}

func TestSubmit_RateLimitIgnoresForwardedFor(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, oneWayQuery()).Return([]models.FlightOffer{}, nil).Once()
	e, _ := newTestServer(t, searcher, ratelimit.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(oneWayForm().Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "request %d", i)
	}
	searcher.AssertNumberOfCalls(t, "Search", 1)
}

func TestPage_RestoresLastQuery(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).Return([]models.FlightOffer{}, nil).Once()
	e, _ := newTestServer(t, searcher, generous())

	postForm(e, url.Values{"from": {"dub"}, "to": {"syd"}, "start": {"2026-11-01"}, "end": {"2026-11-08"}, "isRoundTrip": {"true"}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: testSession})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	doc := parse(t, rec)
	end, _ := attr(byID(doc, "end"), "value")
	assert.Equal(t, "2026-11-08", end)
	minDate, _ := attr(byID(doc, "end"), "min")
	assert.Equal(t, "2026-11-01", minDate)
	assert.Len(t, byClass(doc, "no-results"), 1)
}

func TestSearchJSON(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, oneWayQuery()).Return([]models.FlightOffer{
		{ID: "a1", FlyFrom: "DUB", FlyTo: "SYD", Price: 99.5, Airlines: []string{"FR"}},
	}, nil).Once()
	e, _ := newTestServer(t, searcher, generous())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/flights/search",
		strings.NewReader(`{"from":"dub","to":"syd","start":"2026-11-01","end":"2026-12-01","isRoundTrip":false}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var page view.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Offers, 1)
	assert.Equal(t, "$99.50", page.Offers[0].Price)
	assert.Equal(t, "FR", page.Offers[0].Airlines)
}

func TestSearchJSON_CookielessClientsAreThrottled(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, oneWayQuery()).Return([]models.FlightOffer{}, nil).Once()
	e, sessions := newTestServer(t, searcher, ratelimit.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	codes := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/flights/search",
			strings.NewReader(`{"from":"DUB","to":"SYD","start":"2026-11-01"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		codes = append(codes, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
		if i > 0 {
			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "rate_limited", body.Error)
		}
	}

	assert.Equal(t, http.StatusOK, codes[0])
	for _, code := range codes[1:] {
		assert.Equal(t, http.StatusTooManyRequests, code)
	}
	searcher.AssertNumberOfCalls(t, "Search", 1)
	assert.Equal(t, 0, sessions.Len())
}

func TestSearchJSON_Validation(t *testing.T) {
	e, _ := newTestServer(t, &MockSearcher{}, generous())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/flights/search", strings.NewReader(`{"from":"DUBX","to":"SYD","start":"2026-11-01"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Error)
	assert.Equal(t, "origin must be a 3-letter airport code", body.Fields["from"])
}

func TestState(t *testing.T) {
	e, sessions := newTestServer(t, &MockSearcher{}, generous())
	_, err := sessions.Get(testSession).Begin(oneWayQuery())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/flights/state", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: testSession})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"loading","loading":true,"no_results":false,"offers":[]}`, rec.Body.String())
}

func TestState_WithoutCookie(t *testing.T) {
	e, sessions := newTestServer(t, &MockSearcher{}, generous())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/flights/state", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"idle","loading":false,"no_results":false,"offers":[]}`, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 0, sessions.Len())
}

func TestHealthHandler(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, HealthHandler(c))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
