package handlers

import (
	"net/http"

	"tomobs/internal/forms"
	"tomobs/internal/service"

	"github.com/gin-gonic/gin"
)

type TargetHandler struct {
	service service.TargetService
}

func NewTargetHandler(service service.TargetService) *TargetHandler {
	return &TargetHandler{service: service}
}

// GetTarget returns the target with its observation records and data
// products. Submissions redirect here.
func (h *TargetHandler) GetTarget(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": detail, "messages": popFlash(c)})
}

func (h *TargetHandler) CreateTarget(c *gin.Context) {
	var form forms.TargetForm
	if err := c.ShouldBind(&form); err != nil {
		writeError(c, forms.FromBindError(err))
		return
	}
	target, err := h.service.Create(c.Request.Context(), &form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, target)
}
