// Package api holds the REST handlers for the companion catalog and calls.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"companion-call-demo/backend/internal/directory"
	"companion-call-demo/backend/internal/models"
	apperrors "companion-call-demo/backend/pkg/errors"
)

// Companions is the catalog the handlers read from
type Companions interface {
	List(ctx context.Context) ([]models.CompanionProfile, error)
	Get(ctx context.Context, id string) (models.CompanionProfile, error)
}

type CompanionHandler struct {
	companions Companions
}

func NewCompanionHandler(companions Companions) *CompanionHandler {
	return &CompanionHandler{companions: companions}
}

// RegisterRoutes mounts the catalog routes under rg
func (h *CompanionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/companions", h.ListCompanions)
	rg.GET("/companions/:id", h.GetCompanion)
}

func (h *CompanionHandler) ListCompanions(c *gin.Context) {
	profiles, err := h.companions.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

func (h *CompanionHandler) GetCompanion(c *gin.Context) {
	profile, err := lookupCompanion(c.Request.Context(), h.companions, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func lookupCompanion(ctx context.Context, companions Companions, id string) (models.CompanionProfile, error) {
	profile, err := companions.Get(ctx, id)
	if errors.Is(err, directory.ErrNotFound) {
		return models.CompanionProfile{}, apperrors.NewNotFoundError(apperrors.CodeCompanionNotFound, "Companion not found").
			WithDetails(gin.H{"id": id}).
			WithCause(err)
	}
	return profile, err
}
