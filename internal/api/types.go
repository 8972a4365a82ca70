package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/tenant-booking-engine/internal/appointment"
	"github.com/hackgods/tenant-booking-engine/internal/availability"
)

type CreateBookingRequest struct {
	ServiceID      string    `json:"service_id" validate:"required,uuid"`
	ProfessionalID string    `json:"professional_id" validate:"required,uuid"`
	ClientID       string    `json:"client_id" validate:"omitempty,uuid"`
	Start          time.Time `json:"start" validate:"required"`
	// PaymentReference identifies the payment made for a paid service.
	PaymentReference string `json:"payment_reference" validate:"omitempty,max=255"`
}

type BlockRequest struct {
	ID             string     `json:"id" validate:"omitempty,uuid"`
	Target         string     `json:"target" validate:"required,oneof=company professional"`
	ProfessionalID string     `json:"professional_id" validate:"omitempty,uuid"`
	Start          time.Time  `json:"start" validate:"required"`
	End            time.Time  `json:"end" validate:"required"`
	Reason         string     `json:"reason" validate:"max=500"`
	RepeatsWeekly  bool       `json:"repeats_weekly"`
	RepeatUntil    *time.Time `json:"repeat_until"`
}

type DayScheduleRequest struct {
	Active    bool                        `json:"active"`
	Intervals []availability.TimeInterval `json:"intervals"`
}

type TemplateRequest struct {
	Name        string                        `json:"name" validate:"required,max=120"`
	Description string                        `json:"description" validate:"max=500"`
	Days        map[string]DayScheduleRequest `json:"days" validate:"required,dive,keys,oneof=sunday monday tuesday wednesday thursday friday saturday,endkeys"`
}

type StatusChangeRequest struct {
	Status string `json:"status" validate:"required,oneof=completed no_show cancelled_by_client cancelled_by_professional"`
	Reason string `json:"reason" validate:"max=500"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ConflictsResponse struct {
	ErrorResponse
	*appointment.BlockResult
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (t TemplateRequest) days() map[time.Weekday]availability.DaySchedule {
	out := make(map[time.Weekday]availability.DaySchedule, len(t.Days))
	for name, d := range t.Days {
		out[weekdays[name]] = availability.DaySchedule{Active: d.Active, Intervals: d.Intervals}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

var errInvalidBody = errors.New("invalid request body")

// decodeJSON reads one JSON object into dst and validates it.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", errInvalidBody, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
