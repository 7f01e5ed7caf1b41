package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/incidentd/internal/audit"
	"github.com/fyrsmithlabs/incidentd/internal/auth"
	"github.com/fyrsmithlabs/incidentd/internal/incident"
)

// httpError maps service errors onto status codes. Not-found stays
// not-found whether the record is missing or lives in another tenant.
func httpError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, incident.ErrNotFound), errors.Is(err, auth.ErrKeyNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, incident.ErrValidation), errors.Is(err, auth.ErrInvalidRole):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleCreateIncident(c echo.Context) error {
	var req incident.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	inc, err := s.incidents.Create(c.Request().Context(), tenantContext(c), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inc)
}

func (s *Server) handleListIncidents(c echo.Context) error {
	f := incident.ListFilter{
		Severity:       c.QueryParam("severity"),
		IncludeDeleted: c.QueryParam("include_deleted") == "true",
	}

	incs, err := s.incidents.List(c.Request().Context(), tenantContext(c), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"incidents": incs})
}

func (s *Server) handleGetIncident(c echo.Context) error {
	inc, err := s.incidents.Get(c.Request().Context(), tenantContext(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inc)
}

// RawIncidentResponse carries the unredacted message alongside the
// incident fields.
type RawIncidentResponse struct {
	*incident.Incident
	MessageRaw string `json:"message_raw"`
}

func (s *Server) handleGetIncidentRaw(c echo.Context) error {
	inc, err := s.incidents.GetRaw(c.Request().Context(), tenantContext(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, RawIncidentResponse{Incident: inc, MessageRaw: inc.MessageRaw})
}

func (s *Server) handleUpdateIncident(c echo.Context) error {
	var req incident.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	inc, err := s.incidents.Update(c.Request().Context(), tenantContext(c), c.Param("id"), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inc)
}

func (s *Server) handleDeleteIncident(c echo.Context) error {
	if err := s.incidents.SoftDelete(c.Request().Context(), tenantContext(c), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReembedIncident(c echo.Context) error {
	inc, err := s.incidents.Reembed(c.Request().Context(), tenantContext(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inc)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req incident.SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	matches, err := s.incidents.Search(c.Request().Context(), tenantContext(c), &req)
	if err != nil {
		return httpError(err)
	}
	if matches == nil {
		matches = []incident.SearchMatch{}
	}
	return c.JSON(http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleListAudit(c echo.Context) error {
	f := audit.ListFilter{
		Action:     c.QueryParam("action"),
		ResourceID: c.QueryParam("resource_id"),
	}

	entries, err := s.incidents.ListAudit(c.Request().Context(), tenantContext(c), f)
	if err != nil {
		return httpError(err)
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": entries})
}

// VerifyResponse reports the outcome of an audit chain verification.
type VerifyResponse struct {
	Intact     bool              `json:"intact"`
	Violations []audit.Violation `json:"violations"`
}

func (s *Server) handleVerifyAudit(c echo.Context) error {
	violations, err := s.incidents.VerifyChain(c.Request().Context(), tenantContext(c))
	if err != nil {
		return httpError(err)
	}
	if violations == nil {
		violations = []audit.Violation{}
	}
	return c.JSON(http.StatusOK, VerifyResponse{Intact: len(violations) == 0, Violations: violations})
}

// CreateKeyRequest provisions an API key for an actor in the caller's
// tenant.
type CreateKeyRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
}

// CreateKeyResponse returns the plaintext key exactly once.
type CreateKeyResponse struct {
	Key *auth.APIKeyRecord `json:"key"`
	// Plaintext is shown only in this response and never stored.
	Plaintext string `json:"plaintext"`
}

func (s *Server) handleCreateKey(c echo.Context) error {
	var req CreateKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, plaintext, err := s.keys.CreateKey(c.Request().Context(), tenantContext(c), req.ActorID, auth.Role(req.Role))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, CreateKeyResponse{Key: rec, Plaintext: plaintext})
}

func (s *Server) handleListKeys(c echo.Context) error {
	recs, err := s.keys.ListKeys(c.Request().Context(), tenantContext(c))
	if err != nil {
		return httpError(err)
	}
	if recs == nil {
		recs = []*auth.APIKeyRecord{}
	}
	return c.JSON(http.StatusOK, map[string]any{"keys": recs})
}

func (s *Server) handleDeactivateKey(c echo.Context) error {
	rec, err := s.keys.DeactivateKey(c.Request().Context(), tenantContext(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}
