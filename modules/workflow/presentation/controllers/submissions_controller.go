// Package controllers exposes the workflow module over JSON HTTP.
package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	"github.com/northbeam/capitalgate/modules/workflow/services"
	"github.com/northbeam/capitalgate/pkg/httpapi"
	"github.com/northbeam/capitalgate/pkg/middleware"
)

type SubmissionsController struct {
	workflow *services.WorkflowService
	basePath string
}

func NewSubmissionsController(workflow *services.WorkflowService) *SubmissionsController {
	return &SubmissionsController{
		workflow: workflow,
		basePath: "/api/submissions",
	}
}

func (c *SubmissionsController) Key() string {
	return c.basePath
}

func (c *SubmissionsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.Update).Methods(http.MethodPatch)
	router.HandleFunc("/{id}/sponsors", c.UpdateSponsors).Methods(http.MethodPut)
	router.HandleFunc("/{id}/project-manager", c.AssignPM).Methods(http.MethodPut)
	router.HandleFunc("/{id}/actions", c.ApplyAction).Methods(http.MethodPost)
	router.HandleFunc("/{id}/governance-decisions", c.GovernanceDecision).Methods(http.MethodPost)
	router.HandleFunc("/{id}/approval-decisions", c.ApprovalDecision).Methods(http.MethodPost)
}

// submissionResponse wraps the aggregate with its derived canonical
// position so clients never re-implement the resolution rules.
type submissionResponse struct {
	*submission.Submission
	Canonical submission.CanonicalState `json:"canonical"`
}

func toResponse(sub *submission.Submission) submissionResponse {
	return submissionResponse{Submission: sub, Canonical: sub.Canonical()}
}

type createSubmissionRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Budget      float64    `json:"budget"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	RiskLevel   string     `json:"riskLevel"`
	Priority    string     `json:"priority"`
}

func (c *SubmissionsController) Create(w http.ResponseWriter, r *http.Request) {
	var body createSubmissionRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	sub, err := c.workflow.Create(r.Context(), services.CreateSubmissionInput{
		Title:       body.Title,
		Description: body.Description,
		Budget:      body.Budget,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
		RiskLevel:   body.RiskLevel,
		Priority:    body.Priority,
		CreatedBy:   middleware.UsePrincipal(r.Context()).UserID,
	})
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, toResponse(sub))
}

func (c *SubmissionsController) List(w http.ResponseWriter, r *http.Request) {
	subs, err := c.workflow.List(r.Context())
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	out := make([]submissionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toResponse(sub))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}

func (c *SubmissionsController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sub, err := c.workflow.Get(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toResponse(sub))
}

type updateSubmissionRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Budget        *float64   `json:"budget"`
	StartDate     *time.Time `json:"startDate"`
	EndDate       *time.Time `json:"endDate"`
	BenefitsValue *float64   `json:"benefitsValue"`
	RiskLevel     *string    `json:"riskLevel"`
	Priority      *string    `json:"priority"`
}

func (c *SubmissionsController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body updateSubmissionRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	sub, err := c.workflow.Update(r.Context(), id, services.UpdateSubmissionInput{
		Title:         body.Title,
		Description:   body.Description,
		Budget:        body.Budget,
		StartDate:     body.StartDate,
		EndDate:       body.EndDate,
		BenefitsValue: body.BenefitsValue,
		RiskLevel:     body.RiskLevel,
		Priority:      body.Priority,
		Actor:         middleware.UsePrincipal(r.Context()).UserID,
	})
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toResponse(sub))
}

type updateSponsorsRequest struct {
	Sponsors map[submission.RoleContext]*submission.ContactRef `json:"sponsors"`
}

func (c *SubmissionsController) UpdateSponsors(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body updateSponsorsRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil || len(body.Sponsors) == 0 {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	sub, err := c.workflow.UpdateSponsorContacts(r.Context(), id, body.Sponsors,
		middleware.UsePrincipal(r.Context()).UserID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toResponse(sub))
}

type assignPMRequest struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	ObjectID    string `json:"objectId"`
	DisplayName string `json:"displayName"`
}

func (c *SubmissionsController) AssignPM(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body assignPMRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	sub, err := c.workflow.AssignProjectManager(r.Context(), id, submission.Assignment{
		UserID:      body.UserID,
		Email:       body.Email,
		ObjectID:    body.ObjectID,
		DisplayName: body.DisplayName,
	}, middleware.UsePrincipal(r.Context()).UserID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toResponse(sub))
}

type actionRequest struct {
	Action services.Action `json:"action"`
}

func (c *SubmissionsController) ApplyAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body actionRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	sub, err := c.workflow.ApplyAction(r.Context(), id, body.Action,
		middleware.UsePrincipal(r.Context()).UserID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toResponse(sub))
}

type governanceDecisionRequest struct {
	Gate     services.GovernanceGate `json:"gate"`
	Decision approval.Decision       `json:"decision"`
	Comment  string                  `json:"comment"`
}

func (c *SubmissionsController) GovernanceDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body governanceDecisionRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	sub, err := c.workflow.RecordGovernanceDecision(r.Context(), id, body.Gate, body.Decision,
		middleware.UsePrincipal(r.Context()).UserID, body.Comment)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toResponse(sub))
}

type approvalDecisionRequest struct {
	Decision  approval.Decision        `json:"decision"`
	Stage     *submission.StageContext `json:"stage"`
	RequestID *uuid.UUID               `json:"requestId"`
	Comment   string                   `json:"comment"`
}

type approvalDecisionResponse struct {
	Request    *approval.Request  `json:"request"`
	Submission submissionResponse `json:"submission"`
}

func (c *SubmissionsController) ApprovalDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body approvalDecisionRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	row, sub, err := c.workflow.DecideApproval(r.Context(), id, services.DecideParams{
		Principal: middleware.UsePrincipal(r.Context()),
		Decision:  body.Decision,
		Stage:     body.Stage,
		RequestID: body.RequestID,
		Comment:   body.Comment,
	})
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, approvalDecisionResponse{
		Request:    row,
		Submission: toResponse(sub),
	})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_ID", "malformed id in path", nil)
		return uuid.Nil, false
	}
	return id, true
}
