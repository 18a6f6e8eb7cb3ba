// Package controllers exposes change control over JSON HTTP.
package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/northbeam/capitalgate/modules/changemgmt/domain/changerequest"
	"github.com/northbeam/capitalgate/modules/changemgmt/services"
	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	wfservices "github.com/northbeam/capitalgate/modules/workflow/services"
	"github.com/northbeam/capitalgate/pkg/httpapi"
	"github.com/northbeam/capitalgate/pkg/middleware"
)

type ChangesController struct {
	changes  *services.ChangeRequestService
	basePath string
}

func NewChangesController(changes *services.ChangeRequestService) *ChangesController {
	return &ChangesController{
		changes:  changes,
		basePath: "/api/change-requests",
	}
}

func (c *ChangesController) Key() string {
	return c.basePath
}

func (c *ChangesController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/{id}/submit", c.Submit).Methods(http.MethodPost)
	router.HandleFunc("/{id}/decisions", c.Decide).Methods(http.MethodPost)
	router.HandleFunc("/{id}/implement", c.Implement).Methods(http.MethodPost)
	router.HandleFunc("/{id}/close", c.Close).Methods(http.MethodPost)
	router.HandleFunc("/{id}/comments", c.AddComment).Methods(http.MethodPost)
	router.HandleFunc("/{id}/attachments", c.AddAttachment).Methods(http.MethodPost)

	r.HandleFunc("/api/submissions/{projectId}/change-requests", c.ListByProject).Methods(http.MethodGet)
}

type createChangeRequest struct {
	ProjectID     uuid.UUID  `json:"projectId"`
	Title         string     `json:"title"`
	Reason        string     `json:"reason"`
	NewTitle      *string    `json:"newTitle"`
	Description   *string    `json:"description"`
	Budget        *float64   `json:"budget"`
	StartDate     *time.Time `json:"startDate"`
	EndDate       *time.Time `json:"endDate"`
	BenefitsValue *float64   `json:"benefitsValue"`
	RiskLevel     *string    `json:"riskLevel"`
	Priority      *string    `json:"priority"`
}

func (c *ChangesController) Create(w http.ResponseWriter, r *http.Request) {
	var body createChangeRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	cr, err := c.changes.CreateDraft(r.Context(), services.CreateChangeInput{
		ProjectID: body.ProjectID,
		Title:     body.Title,
		Reason:    body.Reason,
		Proposed: changerequest.ProposedChanges{
			Title:         body.NewTitle,
			Description:   body.Description,
			Budget:        body.Budget,
			StartDate:     body.StartDate,
			EndDate:       body.EndDate,
			BenefitsValue: body.BenefitsValue,
			RiskLevel:     body.RiskLevel,
			Priority:      body.Priority,
		},
		CreatedBy: middleware.UsePrincipal(r.Context()).UserID,
	})
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, cr)
}

func (c *ChangesController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	cr, err := c.changes.Get(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cr)
}

func (c *ChangesController) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	cr, err := c.changes.Submit(r.Context(), id, middleware.UsePrincipal(r.Context()).UserID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cr)
}

type changeDecisionRequest struct {
	Decision  approval.Decision `json:"decision"`
	RequestID *uuid.UUID        `json:"requestId"`
	Comment   string            `json:"comment"`
}

func (c *ChangesController) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body changeDecisionRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	cr, err := c.changes.Decide(r.Context(), id, wfservices.DecideParams{
		Principal: middleware.UsePrincipal(r.Context()),
		Decision:  body.Decision,
		RequestID: body.RequestID,
		Comment:   body.Comment,
	})
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cr)
}

type implementRequest struct {
	CloseAfter bool `json:"closeAfter"`
}

func (c *ChangesController) Implement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body implementRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	cr, err := c.changes.Implement(r.Context(), id,
		middleware.UsePrincipal(r.Context()).UserID, body.CloseAfter)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cr)
}

func (c *ChangesController) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	cr, err := c.changes.Close(r.Context(), id, middleware.UsePrincipal(r.Context()).UserID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cr)
}

type commentRequest struct {
	Body string `json:"body"`
}

func (c *ChangesController) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body commentRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	cr, err := c.changes.AddComment(r.Context(), id,
		middleware.UsePrincipal(r.Context()).UserID, body.Body)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cr)
}

type attachmentRequest struct {
	FileName string `json:"fileName"`
	URL      string `json:"url"`
}

func (c *ChangesController) AddAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body attachmentRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	cr, err := c.changes.AddAttachment(r.Context(), id,
		middleware.UsePrincipal(r.Context()).UserID, body.FileName, body.URL)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cr)
}

func (c *ChangesController) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectId")
	if !ok {
		return
	}
	out, err := c.changes.ListByProject(r.Context(), projectID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_ID", "malformed id in path", nil)
		return uuid.Nil, false
	}
	return id, true
}
