package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/http/middleware"
	"github.com/ticketdesk/auth-service/internal/http/response"
	"github.com/ticketdesk/auth-service/internal/repository"
	"github.com/ticketdesk/auth-service/internal/service"
)

type SessionHandler struct {
	auth *service.AuthService
}

func NewSessionHandler(auth *service.AuthService) *SessionHandler {
	return &SessionHandler{auth: auth}
}

// currentUser resolves the authenticated account from the verified claims the
// auth middleware stored.
func currentUser(auth *service.AuthService, w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	claims, found := middleware.ClaimsFromContext(r.Context())
	if !found {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
		return nil, false
	}
	u, err := auth.User(claims)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return u, true
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(h.auth, w, r)
	if !ok {
		return
	}
	sessions, err := h.auth.ListSessions(user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(h.auth, w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "session_id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "not found", nil)
		return
	}
	if err := h.auth.TerminateSession(uint(id), user, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "terminated"})
}

// OwnAuditTrail lists the caller's own audit events, newest first.
func (h *SessionHandler) OwnAuditTrail(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(h.auth, w, r)
	if !ok {
		return
	}
	h.writeAuditTrail(w, r, user, user.ID)
}

// UserAuditTrail lists another user's audit events; the router gates it on
// the manager role.
func (h *SessionHandler) UserAuditTrail(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(h.auth, w, r)
	if !ok {
		return
	}
	target, err := strconv.ParseUint(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "not found", nil)
		return
	}
	h.writeAuditTrail(w, r, user, uint(target))
}

func (h *SessionHandler) writeAuditTrail(w http.ResponseWriter, r *http.Request, actor *domain.User, targetID uint) {
	page := repository.PageRequest{}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil {
		page.PageSize = v
	}
	trail, err := h.auth.AuditTrail(actor, targetID, page)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, trail)
}
