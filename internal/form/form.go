// Package form turns raw search form input into a normalized query.
package form

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dharmasatrya/flightsearch-web/internal/models"
)

// SearchForm mirrors the fields of the search page. It is bound from both
// urlencoded form posts and JSON bodies.
type SearchForm struct {
	From        string `form:"from" json:"from" validate:"required,len=3,alpha"`
	To          string `form:"to" json:"to" validate:"required,len=3,alpha"`
	Start       string `form:"start" json:"start" validate:"required,datetime=2006-01-02"`
	End         string `form:"end" json:"end"`
	IsRoundTrip bool   `form:"isRoundTrip" json:"isRoundTrip"`
}

// FieldErrors maps a form field name to what is wrong with it.
type FieldErrors map[string]models.ValidationError

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, string(e[f]))
	}
	return strings.Join(msgs, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims whitespace and uppercases the airport codes.
func (f SearchForm) Normalize() SearchForm {
	f.From = strings.ToUpper(strings.TrimSpace(f.From))
	f.To = strings.ToUpper(strings.TrimSpace(f.To))
	f.Start = strings.TrimSpace(f.Start)
	f.End = strings.TrimSpace(f.End)
	return f
}

// Submit validates the form and builds the query to send. The return date is
// only read when the round-trip toggle is set.
func (f SearchForm) Submit(now time.Time) (models.Query, error) {
	n := f.Normalize()
	errs := FieldErrors{}

	if err := validate.Struct(n); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs[fe.Field()] = fieldMessage(fe)
			}
		} else {
			return models.Query{}, err
		}
	}

	today := Today(now)

	var departure time.Time
	if _, bad := errs["start"]; !bad {
		departure, _ = time.Parse(models.DateLayout, n.Start)
		if departure.Before(today) {
			errs["start"] = models.ErrDepartureInPast
		}
	}

	var returnDate *time.Time
	if n.IsRoundTrip {
		switch ret, err := time.Parse(models.DateLayout, n.End); {
		case n.End == "":
			errs["end"] = models.ErrMissingReturnDate
		case err != nil:
			errs["end"] = "return date must be a date (YYYY-MM-DD)"
		case !departure.IsZero() && ret.Before(departure):
			errs["end"] = models.ErrReturnBeforeDeparture
		default:
			returnDate = &ret
		}
	}

	if len(errs) > 0 {
		return models.Query{}, errs
	}

	q := models.Query{
		Origin:        n.From,
		Destination:   n.To,
		DepartureDate: departure,
		ReturnDate:    returnDate,
		IsRoundTrip:   n.IsRoundTrip,
	}
	return q, q.Validate()
}

// MinDepartureDate is the earliest date the departure input accepts.
func MinDepartureDate(now time.Time) string {
	return Today(now).Format(models.DateLayout)
}

// MinReturnDate is the earliest date the return input accepts: the chosen
// departure date, or today while none is chosen.
func (f SearchForm) MinReturnDate(now time.Time) string {
	today := Today(now)
	if dep, err := time.Parse(models.DateLayout, strings.TrimSpace(f.Start)); err == nil && !dep.Before(today) {
		return dep.Format(models.DateLayout)
	}
	return today.Format(models.DateLayout)
}

// Today is the calendar date of now, as a UTC midnight.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fieldMessage(fe validator.FieldError) models.ValidationError {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		switch fe.Field() {
		case "from":
			return models.ErrMissingOrigin
		case "to":
			return models.ErrMissingDestination
		case "start":
			return models.ErrMissingDepartureDate
		}
		return models.ValidationError(label + " is required")
	case "len", "alpha":
		return models.ValidationError(label + " must be a 3-letter airport code")
	case "datetime":
		return models.ValidationError(label + " must be a date (YYYY-MM-DD)")
	}
	return models.ValidationError(label + " is invalid")
}

var fieldLabels = map[string]string{
	"from":  "origin",
	"to":    "destination",
	"start": "departure date",
	"end":   "return date",
}
