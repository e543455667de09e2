package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Availability struct {
	Seats *int `json:"seats"`
}

// Duration holds minute counts. The service reports either a flat minute
// count or an object of per-leg seconds; both decode to minutes.
type Duration struct {
	DepartureMinutes int
	ReturnMinutes    int
	TotalMinutes     int
}

type durationSeconds struct {
	Departure int `json:"departure"`
	Return    int `json:"return"`
	Total     int `json:"total"`
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = Duration{}
		return nil
	}

	if b[0] == '{' {
		var s durationSeconds
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = Duration{
			DepartureMinutes: s.Departure / 60,
			ReturnMinutes:    s.Return / 60,
			TotalMinutes:     s.Total / 60,
		}
		return nil
	}

	var minutes float64
	if err := json.Unmarshal(b, &minutes); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	m := int(minutes)
	*d = Duration{DepartureMinutes: m, TotalMinutes: m}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(durationSeconds{
		Departure: d.DepartureMinutes * 60,
		Return:    d.ReturnMinutes * 60,
		Total:     d.TotalMinutes * 60,
	})
}

// DisplayMinutes is the outbound leg when known, the total otherwise.
func (d Duration) DisplayMinutes() int {
	if d.DepartureMinutes > 0 {
		return d.DepartureMinutes
	}
	return d.TotalMinutes
}

type FlightOffer struct {
	ID             string             `json:"id"`
	FlyFrom        string             `json:"flyFrom"`
	FlyTo          string             `json:"flyTo"`
	CityFrom       string             `json:"cityFrom"`
	CityTo         string             `json:"cityTo"`
	Price          float64            `json:"price"`
	Conversion     map[string]float64 `json:"conversion,omitempty"`
	LocalDeparture string             `json:"local_departure"`
	LocalArrival   string             `json:"local_arrival"`
	Duration       Duration           `json:"duration"`
	Availability   *Availability      `json:"availability,omitempty"`
	Airlines       []string           `json:"airlines"`
}

func (f FlightOffer) AvailableSeats() (int, bool) {
	if f.Availability == nil || f.Availability.Seats == nil {
		return 0, false
	}
	return *f.Availability.Seats, true
}
