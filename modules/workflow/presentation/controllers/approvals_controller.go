package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/northbeam/capitalgate/modules/workflow/services"
	"github.com/northbeam/capitalgate/pkg/httpapi"
	"github.com/northbeam/capitalgate/pkg/middleware"
)

type ApprovalsController struct {
	approvals *services.ApprovalService
	basePath  string
}

func NewApprovalsController(approvals *services.ApprovalService) *ApprovalsController {
	return &ApprovalsController{
		approvals: approvals,
		basePath:  "/api/approvals",
	}
}

func (c *ApprovalsController) Key() string {
	return c.basePath
}

func (c *ApprovalsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/pending", c.Pending).Methods(http.MethodGet)
	router.HandleFunc("/initiated", c.Initiated).Methods(http.MethodGet)
}

// Pending lists the open requests assigned to the calling principal.
func (c *ApprovalsController) Pending(w http.ResponseWriter, r *http.Request) {
	p := middleware.UsePrincipal(r.Context())
	if p.IsZero() {
		_ = httpapi.WriteError(w, http.StatusUnauthorized, "NO_IDENTITY", "no caller identity", nil)
		return
	}
	rows, err := c.approvals.ListPendingForPrincipal(r.Context(), p)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, rows)
}

// Initiated lists every request the caller raised, newest first.
func (c *ApprovalsController) Initiated(w http.ResponseWriter, r *http.Request) {
	p := middleware.UsePrincipal(r.Context())
	if p.UserID == "" {
		_ = httpapi.WriteError(w, http.StatusUnauthorized, "NO_IDENTITY", "no caller identity", nil)
		return
	}
	rows, err := c.approvals.ListInitiatedBy(r.Context(), p.UserID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, rows)
}
