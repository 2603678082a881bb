package cases

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careportal/careportal/internal/platform/auth"
	"github.com/careportal/careportal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := auth.RequireRole("doctor", "nurse", "specialist", "coordinator")
	anyActor := auth.RequireRole("doctor", "nurse", "specialist", "coordinator", "patient")

	read := api.Group("", anyActor)
	read.GET("/cases", h.ListCases)
	read.GET("/cases/:id", h.GetCase)

	write := api.Group("", staff)
	write.POST("/cases", h.CreateCase)
	write.POST("/cases/triage-complete", h.MarkTriageComplete)
	write.POST("/cases/:id/close", h.CloseCase)
	write.POST("/cases/:id/assignment-requests", h.RequestAssignment)
	write.POST("/cases/:id/assignment-requests/:requestId/cancel", h.CancelAssignmentRequest)
	write.POST("/cases/:id/assignment-requests/:requestId/respond", h.RespondToAssignmentRequest)
	write.POST("/cases/:id/escalations", h.CreateEscalation)
	write.POST("/cases/:id/escalations/:escalationId/acknowledge", h.AcknowledgeEscalation)
	write.POST("/cases/:id/escalations/:escalationId/resolve", h.ResolveEscalation)
}

// workflowResponse is the uniform shape for workflow mutations. Invalid
// attempts still come back 200 with applied=false; the surface never
// errors on them.
type workflowResponse struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
	Case    *Case  `json:"case,omitempty"`
}

func respond(c echo.Context, cs *Case, out Outcome) error {
	return c.JSON(http.StatusOK, workflowResponse{Applied: out.Applied, Reason: out.Reason, Case: cs})
}

type createCaseRequest struct {
	PatientID uuid.UUID `json:"patientId"`
}

func (h *Handler) CreateCase(c echo.Context) error {
	var req createCaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs, err := h.svc.CreateCase(c.Request().Context(), req.PatientID, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cs)
}

func (h *Handler) GetCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cs, err := h.svc.GetCase(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) ListCases(c echo.Context) error {
	pg := pagination.FromContext(c)
	var filter CaseFilter
	if v := c.QueryParam("patient_id"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		filter.PatientID = &pid
	}
	filter.Status = c.QueryParam("status")
	filter.ProviderID = c.QueryParam("provider_id")

	items, total, err := h.svc.ListCases(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type triageCompleteRequest struct {
	PatientID           uuid.UUID `json:"patientId"`
	PatientName         string    `json:"patientName,omitempty"`
	SpecialistRequested bool      `json:"specialistRequested"`
	SpecialistRole      string    `json:"specialistRole,omitempty"`
}

func (h *Handler) MarkTriageComplete(c echo.Context) error {
	var req triageCompleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs, out, err := h.svc.MarkTriageComplete(c.Request().Context(), TriageInput{
		PatientID:           req.PatientID,
		PatientName:         req.PatientName,
		SpecialistRequested: req.SpecialistRequested,
		SpecialistRole:      req.SpecialistRole,
		ActorID:             auth.UserIDFromContext(c.Request().Context()),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, cs, out)
}

func (h *Handler) CloseCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cs, out, err := h.svc.CloseCase(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, cs, out)
}

type assignmentRequestBody struct {
	RequestedRole       string  `json:"requestedRole"`
	RequestedProviderID *string `json:"requestedProviderId,omitempty"`
	Priority            string  `json:"priority,omitempty"`
	Reason              string  `json:"reason"`
}

func (h *Handler) RequestAssignment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body assignmentRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs, out, err := h.svc.RequestAssignment(c.Request().Context(), AssignmentRequestInput{
		CaseID:              id,
		RequestedRole:       body.RequestedRole,
		RequestedProviderID: body.RequestedProviderID,
		Priority:            body.Priority,
		Reason:              body.Reason,
		ActorID:             auth.UserIDFromContext(c.Request().Context()),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, cs, out)
}

func (h *Handler) CancelAssignmentRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	cs, out, err := h.svc.CancelAssignmentRequest(c.Request().Context(), id, requestID, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, cs, out)
}

type respondRequestBody struct {
	Action string `json:"action"`
}

func (h *Handler) RespondToAssignmentRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	var body respondRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs, out, err := h.svc.RespondToAssignmentRequest(c.Request().Context(), id, requestID,
		auth.UserIDFromContext(c.Request().Context()), auth.RoleFromContext(c.Request().Context()), body.Action)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, cs, out)
}

type escalationBody struct {
	ToRole       string  `json:"toRole"`
	ToProviderID *string `json:"toProviderId,omitempty"`
	Urgency      string  `json:"urgency,omitempty"`
	Message      string  `json:"message"`
}

func (h *Handler) CreateEscalation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body escalationBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs, out, err := h.svc.CreateEscalation(c.Request().Context(), EscalationInput{
		CaseID:       id,
		ToRole:       body.ToRole,
		ToProviderID: body.ToProviderID,
		Urgency:      body.Urgency,
		Message:      body.Message,
		ActorID:      auth.UserIDFromContext(c.Request().Context()),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, cs, out)
}

func (h *Handler) AcknowledgeEscalation(c echo.Context) error {
	return h.escalationAction(c, h.svc.AcknowledgeEscalation)
}

func (h *Handler) ResolveEscalation(c echo.Context) error {
	return h.escalationAction(c, h.svc.ResolveEscalation)
}

func (h *Handler) escalationAction(c echo.Context, fn func(ctx context.Context, caseID, escalationID uuid.UUID, actorID, actorRole string) (*Case, Outcome, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	escalationID, err := uuid.Parse(c.Param("escalationId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid escalation id")
	}
	cs, out, err := fn(c.Request().Context(), id, escalationID,
		auth.UserIDFromContext(c.Request().Context()), auth.RoleFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, cs, out)
}
