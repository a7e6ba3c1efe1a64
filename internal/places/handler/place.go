package handler

import (
	"net/http"

	"cuworking/internal/places/service"
	"cuworking/pkg/auth"
	httputil "cuworking/pkg/http"
	"cuworking/pkg/logger"
	"cuworking/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type PlaceHandler struct {
	service service.PlaceService
	guard   *auth.Guard
	log     *logger.Logger
}

func NewPlaceHandler(service service.PlaceService, guard *auth.Guard, log *logger.Logger) *PlaceHandler {
	return &PlaceHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *PlaceHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreatePlaceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	place, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, place); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *PlaceHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	places, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if places == nil {
		places = []*model.Place{}
	}

	if err := httputil.WritePaginated(w, places, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *PlaceHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *PlaceHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/places", h.GetAll)
	router.POST("/api/v1/places", h.guard.RequireUser(h.Create))
	router.DELETE("/api/v1/admin/places/:id", h.guard.RequireAdmin(h.Delete))
}
