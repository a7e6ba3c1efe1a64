package handler

import (
	"net/http"
	"time"

	"cuworking/internal/reservations/service"
	"cuworking/pkg/auth"
	apperrors "cuworking/pkg/errors"
	httputil "cuworking/pkg/http"
	"cuworking/pkg/logger"
	"cuworking/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	guard   *auth.Guard
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, guard *auth.Guard, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, ok := h.principal(w, r, "Create")
	if !ok {
		return
	}

	var req model.CreateReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err, "Create")
		return
	}

	start, end, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, err, "Create")
		return
	}

	reservation, err := h.service.Create(r.Context(), user.ID, &model.ReservationWindow{
		PlaceID:   req.PlaceID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		h.writeError(w, err, "Create")
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, ok := h.principal(w, r, "List")
	if !ok {
		return
	}

	reservations, err := h.service.List(r.Context(), user.ID, r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, err, "List")
		return
	}
	if reservations == nil {
		reservations = []*model.Reservation{}
	}

	if err := httputil.WriteSuccess(w, reservations); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := h.principal(w, r, "Cancel")
	if !ok {
		return
	}

	reservation, err := h.service.Cancel(r.Context(), ps.ByName("id"), user.ID)
	if err != nil {
		h.writeError(w, err, "Cancel")
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Move(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := h.principal(w, r, "Move")
	if !ok {
		return
	}

	var req model.MoveReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err, "Move")
		return
	}

	start, end, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, err, "Move")
		return
	}

	reservation, err := h.service.Move(r.Context(), ps.ByName("id"), user.ID, start, end)
	if err != nil {
		h.writeError(w, err, "Move")
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Move", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.guard.RequireUser(h.Create))
	router.GET("/api/v1/reservations", h.guard.RequireUser(h.List))
	router.POST("/api/v1/reservations/:id/cancel", h.guard.RequireUser(h.Cancel))
	router.POST("/api/v1/reservations/:id/move", h.guard.RequireUser(h.Move))
}

func (h *ReservationHandler) principal(w http.ResponseWriter, r *http.Request, handler string) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, apperrors.Unauthorized("Authentication required"), handler)
		return nil, false
	}
	return user, true
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func parseWindow(startValue, endValue string) (start, end time.Time, err error) {
	if start, err = httputil.ParseTimestamp("start_time", startValue); err != nil {
		return
	}
	end, err = httputil.ParseTimestamp("end_time", endValue)
	return
}
