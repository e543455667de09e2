// Package view derives what the results area shows from the store state.
package view

import (
	"fmt"
	"strings"

	"github.com/dharmasatrya/flightsearch-web/internal/models"
	"github.com/dharmasatrya/flightsearch-web/internal/store"
	"github.com/dharmasatrya/flightsearch-web/internal/timefmt"
	"github.com/dharmasatrya/flightsearch-web/pkg/currency"
)

const (
	NoResultsMessage = "No flights found. Try different search criteria."
	AirlineSeparator = ", "
)

type Options struct {
	// Currency selects an amount from an offer's conversion mapping. Offers
	// without it fall back to the base price in currency.Default.
	Currency string
}

type OfferCard struct {
	ID        string `json:"id"`
	FromCode  string `json:"from_code"`
	FromCity  string `json:"from_city"`
	ToCode    string `json:"to_code"`
	ToCity    string `json:"to_city"`
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
	Duration  string `json:"duration"`
	Price     string `json:"price"`
	Airlines  string `json:"airlines"`
	SeatsLeft string `json:"seats_left,omitempty"`
}

type Page struct {
	Status    store.Status `json:"status"`
	Loading   bool         `json:"loading"`
	Error     string       `json:"error,omitempty"`
	NoResults bool         `json:"no_results"`
	Message   string       `json:"message,omitempty"`
	Offers    []OfferCard  `json:"offers"`
}

// Build is a pure function of the state: loading wins over error, error over
// an empty list.
func Build(s store.State, opts Options) Page {
	page := Page{Status: s.Status, Offers: []OfferCard{}}

	switch {
	case s.Loading():
		page.Loading = true
	case s.Status == store.StatusError:
		page.Error = s.Error
	case s.Status == store.StatusIdle:
		// nothing searched yet
	case len(s.Flights) == 0:
		page.NoResults = true
		page.Message = NoResultsMessage
	default:
		for _, f := range s.Flights {
			page.Offers = append(page.Offers, Card(f, opts))
		}
	}

	return page
}

func Card(f models.FlightOffer, opts Options) OfferCard {
	card := OfferCard{
		ID:        f.ID,
		FromCode:  f.FlyFrom,
		FromCity:  f.CityFrom,
		ToCode:    f.FlyTo,
		ToCity:    f.CityTo,
		Departure: timefmt.Format(f.LocalDeparture),
		Arrival:   timefmt.Format(f.LocalArrival),
		Duration:  FormatDuration(f.Duration.DisplayMinutes()),
		Price:     FormatPrice(f, opts.Currency),
		Airlines:  strings.Join(f.Airlines, AirlineSeparator),
	}
	if seats, ok := f.AvailableSeats(); ok {
		card.SeatsLeft = fmt.Sprintf("%d seats left", seats)
		if seats == 1 {
			card.SeatsLeft = "1 seat left"
		}
	}
	return card
}

// FormatDuration renders a minute count as "2h 5m".
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// FormatPrice uses the converted amount for code when the offer carries one.
func FormatPrice(f models.FlightOffer, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code != "" {
		if amount, ok := f.Conversion[code]; ok {
			return currency.Format(amount, code)
		}
	}
	return currency.Format(f.Price, currency.Default)
}
