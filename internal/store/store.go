package store

import (
	"context"
	"errors"
	"sync"

	"github.com/dharmasatrya/flightsearch-web/internal/models"
	"github.com/dharmasatrya/flightsearch-web/internal/searchclient"
)

var ErrSearchInFlight = errors.New("a search is already in progress")

type Searcher interface {
	Search(ctx context.Context, q models.Query) ([]models.FlightOffer, error)
}

type Store struct {
	mu       sync.Mutex
	state    State
	searcher Searcher
	onChange func(State)
}

type Option func(*Store)

// WithObserver registers fn to receive every state the store moves into.
func WithObserver(fn func(State)) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

func New(searcher Searcher, opts ...Option) *Store {
	s := &Store{searcher: searcher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a to the current state and returns the result.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	next := Reduce(s.state, a)
	s.state = next
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(next)
	}
	return next
}

// Begin moves the store into loading for q and returns the sequence tag the
// outcome must carry. It fails while another search is pending.
func (s *Store) Begin(q models.Query) (uint64, error) {
	s.mu.Lock()
	if s.state.Loading() {
		s.mu.Unlock()
		return 0, ErrSearchInFlight
	}
	seq := s.state.Seq + 1
	s.state = Reduce(s.state, SearchStarted{Seq: seq, Query: q})
	next := s.state
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(next)
	}
	return seq, nil
}

// Search runs one search for q. The outbound call ignores cancellation of
// ctx so that loading always resolves; the client's own timeout bounds it.
func (s *Store) Search(ctx context.Context, q models.Query) (state State, err error) {
	seq, err := s.Begin(q)
	if err != nil {
		return s.Snapshot(), err
	}

	var outcome Action = SearchFailed{Seq: seq, Message: searchclient.GenericMessage}
	defer func() {
		state = s.Dispatch(outcome)
	}()

	flights, serr := s.searcher.Search(context.WithoutCancel(ctx), q)
	if serr != nil {
		outcome = SearchFailed{Seq: seq, Message: searchclient.Message(serr)}
		return
	}
	outcome = SearchSucceeded{Seq: seq, Flights: flights}
	return
}
