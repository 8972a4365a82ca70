package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/tenant-booking-engine/internal/appointment"
	"github.com/hackgods/tenant-booking-engine/internal/availability"
)

func listSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		serviceID, err := uuid.Parse(q.Get("service_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		var proID *uuid.UUID
		if raw := q.Get("professional_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
				return
			}
			proID = &id
		}

		date, err := time.Parse("2006-01-02", q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
			return
		}

		list, err := svc.ListSlots(r.Context(), appointment.SlotQuery{
			ServiceID:      serviceID,
			ProfessionalID: proID,
			Date:           date,
			CompanyID:      GetIdentity(r.Context()).CompanyID,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func createBookingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		id := GetIdentity(r.Context())
		clientID := id.ActorID
		if id.Role == RoleOperator {
			// operators book on behalf of a client
			parsed, err := uuid.Parse(req.ClientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id is required when booking on behalf of a client")
				return
			}
			clientID = parsed
		}

		appt, err := svc.CreateBooking(r.Context(), appointment.BookingRequest{
			ServiceID:        uuid.MustParse(req.ServiceID),
			ProfessionalID:   uuid.MustParse(req.ProfessionalID),
			ClientID:         clientID,
			Start:            req.Start,
			PaymentReference: req.PaymentReference,
			CompanyID:        id.CompanyID,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadOwnAppointment(w, r, svc)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadOwnAppointment(w, r, svc)
		if !ok {
			return
		}
		confirmed, err := svc.ConfirmAppointment(r.Context(), appt.ID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, confirmed)
	}
}

// statusAllowedFor lists the status changes each role may request.
var statusAllowedFor = map[Role][]appointment.AppointmentStatus{
	RoleClient: {appointment.StatusCancelledByClient},
	RoleProfessional: {
		appointment.StatusCancelledByProfessional,
		appointment.StatusCompleted,
		appointment.StatusNoShow,
	},
	RoleOperator: {
		appointment.StatusCancelledByClient,
		appointment.StatusCancelledByProfessional,
		appointment.StatusCompleted,
		appointment.StatusNoShow,
	},
}

func changeStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StatusChangeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}
		to := appointment.AppointmentStatus(req.Status)

		role := GetIdentity(r.Context()).Role
		allowed := false
		for _, s := range statusAllowedFor[role] {
			if s == to {
				allowed = true
				break
			}
		}
		if !allowed {
			writeError(w, http.StatusForbidden, "forbidden", "role "+string(role)+" cannot set status "+req.Status)
			return
		}

		appt, ok := loadOwnAppointment(w, r, svc)
		if !ok {
			return
		}
		updated, err := svc.TransitionStatus(r.Context(), appt.ID, to, req.Reason)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// loadOwnAppointment fetches the {id} appointment and checks that the caller
// may see it: same company, and for clients and professionals their own.
func loadOwnAppointment(w http.ResponseWriter, r *http.Request, svc *appointment.Service) (*appointment.Appointment, bool) {
	apptID, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return nil, false
	}

	appt, err := svc.GetAppointment(r.Context(), apptID)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}

	id := GetIdentity(r.Context())
	owned := appt.CompanyID == id.CompanyID
	switch id.Role {
	case RoleClient:
		owned = owned && appt.ClientID == id.ActorID
	case RoleProfessional:
		owned = owned && appt.ProfessionalID == id.ActorID
	}
	if !owned {
		// same answer as a missing appointment
		writeError(w, http.StatusNotFound, "appointment_not_found", "")
		return nil, false
	}
	return appt, true
}

func createBlockHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		id := GetIdentity(r.Context())
		block := availability.Block{
			CompanyID:     id.CompanyID,
			Target:        availability.BlockTarget(req.Target),
			Start:         req.Start,
			End:           req.End,
			Reason:        req.Reason,
			RepeatsWeekly: req.RepeatsWeekly,
			RepeatUntil:   req.RepeatUntil,
		}
		if req.ID != "" {
			block.ID = uuid.MustParse(req.ID)
		}
		if req.ProfessionalID != "" {
			proID := uuid.MustParse(req.ProfessionalID)
			block.ProfessionalID = &proID
		}
		if id.Role == RoleProfessional && (block.ProfessionalID == nil || *block.ProfessionalID != id.ActorID || req.ID != "") {
			writeError(w, http.StatusForbidden, "forbidden", "professionals may only add blocks to their own agenda")
			return
		}

		result, err := svc.CreateOrUpdateBlock(r.Context(), block)
		if err != nil {
			if errors.Is(err, appointment.ErrConflictsPending) && result != nil {
				writeJSON(w, http.StatusConflict, ConflictsResponse{
					ErrorResponse: ErrorResponse{Error: "conflicts_pending", Details: err.Error()},
					BlockResult:   result,
				})
				return
			}
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func confirmBlockDraftHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draftID, ok := pathUUID(w, r, "id", "invalid_draft_id")
		if !ok {
			return
		}
		result, err := svc.ConfirmBlockWithCancellations(r.Context(), GetIdentity(r.Context()).CompanyID, draftID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func abortBlockDraftHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draftID, ok := pathUUID(w, r, "id", "invalid_draft_id")
		if !ok {
			return
		}
		result, err := svc.AbortBlock(r.Context(), GetIdentity(r.Context()).CompanyID, draftID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func deactivateBlockHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blockID, ok := pathUUID(w, r, "id", "invalid_block_id")
		if !ok {
			return
		}
		block, err := svc.DeactivateBlock(r.Context(), GetIdentity(r.Context()).CompanyID, blockID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, block)
	}
}

func saveTemplateHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tplID, ok := pathUUID(w, r, "id", "invalid_template_id")
		if !ok {
			return
		}
		var req TemplateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		saved, err := svc.SaveTemplate(r.Context(), availability.Template{
			ID:          tplID,
			CompanyID:   GetIdentity(r.Context()).CompanyID,
			Name:        req.Name,
			Description: req.Description,
			Days:        req.days(),
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// handleServiceError maps engine errors onto HTTP responses. Anything
// unrecognised is logged and reported as a 500 without details.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrCompanyNotFound):
		writeError(w, http.StatusNotFound, "company_not_found", "")
	case errors.Is(err, appointment.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", "")
	case errors.Is(err, appointment.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", "")
	case errors.Is(err, appointment.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template_not_found", "")
	case errors.Is(err, appointment.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "block_not_found", "")
	case errors.Is(err, appointment.ErrBlockDraftNotFound):
		writeError(w, http.StatusNotFound, "block_draft_not_found", "")
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "")

	case errors.Is(err, appointment.ErrCompanyMismatch):
		writeError(w, http.StatusForbidden, "company_mismatch", err.Error())

	case errors.Is(err, appointment.ErrSlotNoLongerAvailable):
		writeError(w, http.StatusConflict, "slot_no_longer_available", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrInvalidDraftState):
		writeError(w, http.StatusConflict, "invalid_draft_state", err.Error())
	case errors.Is(err, appointment.ErrConflictsPending):
		writeError(w, http.StatusConflict, "conflicts_pending", err.Error())

	case errors.Is(err, appointment.ErrCapacityExceeded):
		writeError(w, http.StatusUnprocessableEntity, "capacity_exceeded", err.Error())
	case errors.Is(err, appointment.ErrCooldownActive):
		writeError(w, http.StatusUnprocessableEntity, "cooldown_active", err.Error())
	case errors.Is(err, appointment.ErrProfessionalNotQualified):
		writeError(w, http.StatusUnprocessableEntity, "professional_not_qualified", err.Error())
	case errors.Is(err, availability.ErrInvalidSchedule):
		writeError(w, http.StatusUnprocessableEntity, "invalid_schedule", err.Error())
	case errors.Is(err, availability.ErrInvalidBlock):
		writeError(w, http.StatusUnprocessableEntity, "invalid_block", err.Error())
	case errors.Is(err, availability.ErrInvalidPolicy):
		writeError(w, http.StatusUnprocessableEntity, "invalid_policy", err.Error())

	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
