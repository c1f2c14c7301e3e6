package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openincube/platform/internal/middleware"
	"github.com/openincube/platform/internal/model"
	"github.com/openincube/platform/internal/repository"
)

// CohortHandler serves the tenant-scoped cohort resource. Every data access
// goes through the identity's Scope, so one tenant's cohorts are invisible
// to another's callers.
type CohortHandler struct {
	Cohorts *repository.CohortRepo
}

func NewCohortHandler(r *repository.CohortRepo) *CohortHandler { return &CohortHandler{Cohorts: r} }

type cohortReq struct {
	Name     string    `json:"name"`
	TenantID string    `json:"tenant_id,omitempty"` // honored only for SUPER_ADMIN callers
	StartsOn time.Time `json:"starts_on"`
	EndsOn   time.Time `json:"ends_on"`
}

type cohortResp struct {
	ID       uint64    `json:"id"`
	TenantID string    `json:"tenant_id"`
	Name     string    `json:"name"`
	StartsOn time.Time `json:"starts_on"`
	EndsOn   time.Time `json:"ends_on"`
}

func toCohortResp(c model.Cohort) cohortResp {
	return cohortResp{ID: c.ID, TenantID: c.TenantID, Name: c.Name, StartsOn: c.StartsOn, EndsOn: c.EndsOn}
}

// List returns the cohorts visible to the caller.
func (h *CohortHandler) List(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	cohorts, err := h.Cohorts.List(ctx, id.Scope())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]cohortResp, 0, len(cohorts))
	for _, ch := range cohorts {
		out = append(out, toCohortResp(ch))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one cohort. A cohort outside the caller's tenant is a plain
// 404; its existence is not disclosed.
func (h *CohortHandler) Get(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	cohortID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	cohort, err := h.Cohorts.Get(ctx, cohortID, id.Scope())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toCohortResp(cohort))
}

// Create adds a cohort to the caller's tenant. Route-level policy restricts
// it to TENANT_ADMIN and SUPER_ADMIN.
func (h *CohortHandler) Create(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	var req cohortReq
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	newID, err := h.Cohorts.Create(ctx, model.Cohort{
		TenantID: req.TenantID,
		Name:     req.Name,
		StartsOn: req.StartsOn,
		EndsOn:   req.EndsOn,
	}, id.Scope())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id required"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	cohort, err := h.Cohorts.Get(ctx, newID, id.Scope())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, toCohortResp(cohort))
}
