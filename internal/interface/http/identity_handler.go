package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/oksasatya/campus-identity/internal/application"
	"github.com/oksasatya/campus-identity/internal/interface/middleware"
	"github.com/oksasatya/campus-identity/pkg/response"
	"github.com/oksasatya/campus-identity/pkg/validation"
)

type IdentityHandler struct {
	Svc    *app.Service
	Logger *logrus.Logger
}

func NewIdentityHandler(svc *app.Service, logger *logrus.Logger) *IdentityHandler {
	return &IdentityHandler{Svc: svc, Logger: logger}
}

// verified is deliberately absent: it cannot be changed after signup.
type updateProfileRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=120"`
	Institution  *string `json:"institution" binding:"omitempty,max=200"`
	FieldOfStudy *string `json:"field_of_study" binding:"omitempty,max=200"`
	Year         *int    `json:"year" binding:"omitempty,studyyear"`
	Bio          *string `json:"bio" binding:"omitempty,max=2000"`
	Anonymous    *bool   `json:"anonymous"`
}

func (h *IdentityHandler) GetProfile(c *gin.Context) {
	u, err := h.Svc.GetProfile(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		response.Error(c, http.StatusNotFound, "identity not found", nil)
		return
	}
	response.Success(c, http.StatusOK, u, "profile", nil)
}

func (h *IdentityHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), c.GetString(middleware.CtxUserID), app.UpdateProfileInput{
		Name:         req.Name,
		Institution:  req.Institution,
		FieldOfStudy: req.FieldOfStudy,
		Year:         req.Year,
		Bio:          req.Bio,
		Anonymous:    req.Anonymous,
	})
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to update profile", err.Error())
		return
	}
	response.Success(c, http.StatusOK, u, "profile updated", nil)
}

// Search GET /api/identities/search?q=&size=
func (h *IdentityHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error(c, http.StatusBadRequest, "missing query", map[string]string{"q": "is required"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	res, err := h.Svc.SearchIdentities(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Warn("identity search failed")
		response.Error(c, http.StatusBadGateway, "search unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, res, "search results", map[string]any{"count": len(res)})
}
