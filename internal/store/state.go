// Package store holds the search page state and the only transitions it allows.
package store

import (
	"fmt"

	"github.com/dharmasatrya/flightsearch-web/internal/models"
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for _, st := range []Status{StatusIdle, StatusLoading, StatusSuccess, StatusError} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

type State struct {
	Status  Status
	Flights []models.FlightOffer
	Error   string
	Query   *models.Query
	// Seq tags the latest search. Outcomes carrying another Seq are stale.
	Seq uint64
}

func (s State) Loading() bool {
	return s.Status == StatusLoading
}

type Action interface {
	action()
}

type SearchStarted struct {
	Seq   uint64
	Query models.Query
}

type SearchSucceeded struct {
	Seq     uint64
	Flights []models.FlightOffer
}

type SearchFailed struct {
	Seq     uint64
	Message string
}

func (SearchStarted) action()   {}
func (SearchSucceeded) action() {}
func (SearchFailed) action()    {}

// Reduce returns the state after a. It never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SearchStarted:
		q := a.Query
		return State{
			Status: StatusLoading,
			Query:  &q,
			Seq:    a.Seq,
		}

	case SearchSucceeded:
		if !s.Loading() || a.Seq != s.Seq {
			return s
		}
		flights := make([]models.FlightOffer, len(a.Flights))
		copy(flights, a.Flights)
		return State{
			Status:  StatusSuccess,
			Flights: flights,
			Query:   s.Query,
			Seq:     s.Seq,
		}

	case SearchFailed:
		if !s.Loading() || a.Seq != s.Seq {
			return s
		}
		return State{
			Status:  StatusError,
			Flights: []models.FlightOffer{},
			Error:   a.Message,
			Query:   s.Query,
			Seq:     s.Seq,
		}
	}
	return s
}
