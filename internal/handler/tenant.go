package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openincube/platform/internal/repository"
)

// TenantHandler manages incubator tenants. All routes live under /v1/admin
// and the policy table restricts that prefix to SUPER_ADMIN.
type TenantHandler struct {
	Tenants *repository.TenantRepo
}

func NewTenantHandler(r *repository.TenantRepo) *TenantHandler { return &TenantHandler{Tenants: r} }

type tenantReq struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Create registers a new tenant.
func (h *TenantHandler) Create(c echo.Context) error {
	var req tenantReq
	if err := c.Bind(&req); err != nil || req.Name == "" || req.Slug == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and slug required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tenants.Create(ctx, req.Name, req.Slug)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "slug already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": t.ID, "name": t.Name, "slug": t.Slug})
}

// Get fetches a tenant by id.
func (h *TenantHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tenants.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": t.ID, "name": t.Name, "slug": t.Slug, "is_active": t.IsActive})
}
