package handler

import (
	"net/http"

	"cuworking/internal/users/service"
	"cuworking/pkg/auth"
	apperrors "cuworking/pkg/errors"
	httputil "cuworking/pkg/http"
	"cuworking/pkg/logger"
	"cuworking/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type UserHandler struct {
	service service.UserService
	guard   *auth.Guard
	log     *logger.Logger
}

func NewUserHandler(service service.UserService, guard *auth.Guard, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err, "Register")
		return
	}

	user, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.writeError(w, err, "Register")
		return
	}

	if err := httputil.WriteCreated(w, user); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, apperrors.Unauthorized("Authentication required"), "Me")
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "Me", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err, "GetAll")
		return
	}

	users, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err, "GetAll")
		return
	}
	if users == nil {
		users = []*model.User{}
	}

	if err := httputil.WritePaginated(w, users, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, apperrors.Unauthorized("Authentication required"), "Delete")
		return
	}

	if err := h.service.Delete(r.Context(), actor.ID, ps.ByName("id")); err != nil {
		h.writeError(w, err, "Delete")
		return
	}

	httputil.WriteNoContent(w)
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/register", h.Register)
	router.GET("/api/v1/users/me", h.guard.RequireUser(h.Me))
	router.GET("/api/v1/admin/users", h.guard.RequireAdmin(h.GetAll))
	router.DELETE("/api/v1/admin/users/:id", h.guard.RequireAdmin(h.Delete))
}

func (h *UserHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
