package models

import "time"

const DateLayout = "2006-01-02"

type Query struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	IsRoundTrip   bool
}

// SearchRequest is the body posted to the flight search service.
type SearchRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
	IsRoundTrip bool   `json:"isRoundTrip"`
}

func (q Query) Validate() error {
	if q.Origin == "" {
		return ErrMissingOrigin
	}
	if q.Destination == "" {
		return ErrMissingDestination
	}
	if q.DepartureDate.IsZero() {
		return ErrMissingDepartureDate
	}
	if q.IsRoundTrip {
		if q.ReturnDate == nil {
			return ErrMissingReturnDate
		}
		if q.ReturnDate.Before(q.DepartureDate) {
			return ErrReturnBeforeDeparture
		}
	}
	return nil
}

// Request builds the wire body. The return date is only sent for round trips.
func (q Query) Request() SearchRequest {
	req := SearchRequest{
		From:        q.Origin,
		To:          q.Destination,
		Start:       q.DepartureDate.Format(DateLayout),
		IsRoundTrip: q.IsRoundTrip,
	}
	if q.IsRoundTrip && q.ReturnDate != nil {
		req.End = q.ReturnDate.Format(DateLayout)
	}
	return req
}

type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrMissingOrigin         ValidationError = "origin is required"
	ErrMissingDestination    ValidationError = "destination is required"
	ErrMissingDepartureDate  ValidationError = "departure date is required"
	ErrMissingReturnDate     ValidationError = "return date is required for a round trip"
	ErrReturnBeforeDeparture ValidationError = "return date must not be before departure date"
	ErrDepartureInPast       ValidationError = "departure date must not be in the past"
)
