package handlers

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"tomobs/internal/export"
	"tomobs/internal/forms"
	"tomobs/internal/middleware"
	"tomobs/internal/repository"
	"tomobs/internal/service"

	"github.com/gin-gonic/gin"
)

type ObservationHandler struct {
	service       service.ObservationService
	statusService service.StatusService
	baseURL       string
}

// NewObservationHandler builds the observation endpoints. baseURL prefixes
// the Location of redirects, e.g. "/api/v1".
func NewObservationHandler(service service.ObservationService, statusService service.StatusService, baseURL string) *ObservationHandler {
	return &ObservationHandler{service: service, statusService: statusService, baseURL: baseURL}
}

// ListObservations godoc
// @Summary List observation records
// @Description Newest first, 100 per page. Passing update_status refreshes
// @Description open observations first and redirects to the unfiltered list.
// @Tags Observations
// @Produce json
// @Router /observations [get]
func (h *ObservationHandler) ListObservations(c *gin.Context) {
	if _, refresh := c.GetQuery("update_status"); refresh {
		h.updateStatuses(c)
		return
	}

	filter, err := observationFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	result, err := h.service.List(c.Request.Context(), filter, page)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":        result.Count,
		"page":         result.Number,
		"page_size":    result.Size,
		"num_pages":    result.NumPages,
		"observations": result.Observations,
		"messages":     popFlash(c),
	})
}

// updateStatuses runs the status refresh, keeps its summary as a flash
// message and redirects to the list without any filters.
func (h *ObservationHandler) updateStatuses(c *gin.Context) {
	var out bytes.Buffer
	if _, err := h.statusService.UpdateStatuses(c.Request.Context(), &out); err != nil {
		log.Printf("[%s] Status refresh failed: %v", middleware.RequestID(c), err)
		addFlash(c, "Failed to update observation statuses: "+err.Error())
	} else {
		addFlash(c, statusMessage(out.String(), maxStatusMessage))
	}
	c.Redirect(http.StatusFound, c.Request.URL.Path)
}

// maxStatusMessage keeps the flash cookie well below the 4KB cookie limit
// once the message is JSON encoded and escaped.
const maxStatusMessage = 1500

// statusMessage returns the refresh output as one message. When it is longer
// than limit the per-observation lines are cut and counted, and the final
// summary line is always kept.
func statusMessage(output string, limit int) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(output) <= limit || len(lines) < 2 {
		return strings.Join(lines, "\n")
	}

	summary := lines[len(lines)-1]
	details := lines[:len(lines)-1]

	var kept []string
	size := len(summary)
	for _, line := range details {
		if size+len(line)+1 > limit {
			break
		}
		kept = append(kept, line)
		size += len(line) + 1
	}
	if omitted := len(details) - len(kept); omitted > 0 {
		kept = append(kept, fmt.Sprintf("... %d more", omitted))
	}
	return strings.Join(append(kept, summary), "\n")
}

// ExportObservations godoc
// @Summary Export observation records as xlsx or csv
// @Tags Observations
// @Router /observations/export [get]
func (h *ObservationHandler) ExportObservations(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid export format",
			"message": err.Error(),
		})
		return
	}
	filter, err := observationFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(c.Request.Context(), filter, format, &buf); err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *ObservationHandler) GetObservation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// NewSubmission godoc
// @Summary Form schema for submitting to a facility
// @Tags Observations
// @Param facility path string true "Facility name"
// @Param target_id query int true "Target id"
// @Router /observations/create/{facility} [get]
func (h *ObservationHandler) NewSubmission(c *gin.Context) {
	sub, err := h.service.NewSubmission(c.Request.Context(), c.Param("facility"), c.Query("target_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Submit godoc
// @Summary Submit an observation request to a facility
// @Tags Observations
// @Accept x-www-form-urlencoded
// @Param facility path string true "Facility name"
// @Success 302
// @Router /observations/create/{facility} [post]
func (h *ObservationHandler) Submit(c *gin.Context) {
	targetID, err := service.ParseTargetID(formValue(c, "target_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	form, err := h.service.NewForm(c.Param("facility"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := c.ShouldBind(form); err != nil {
		writeError(c, forms.FromBindError(err))
		return
	}

	items, err := h.service.Submit(c.Request.Context(), c.Param("facility"), targetID, form)
	if err != nil {
		writeError(c, err)
		return
	}

	addFlash(c, fmt.Sprintf("Submitted %d observation(s) to %s", len(items), c.Param("facility")))
	c.Redirect(http.StatusFound, h.targetURL(targetID))
}

func (h *ObservationHandler) NewManualSubmission(c *gin.Context) {
	sub, err := h.service.NewManualSubmission(c.Request.Context(), c.Query("target_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// CreateManual godoc
// @Summary Record an observation made outside this system
// @Tags Observations
// @Accept x-www-form-urlencoded
// @Success 302
// @Router /observations/manual [post]
func (h *ObservationHandler) CreateManual(c *gin.Context) {
	if _, err := service.ParseTargetID(formValue(c, "target_id")); err != nil {
		writeError(c, err)
		return
	}

	var form forms.ManualObservationForm
	if err := c.ShouldBind(&form); err != nil {
		writeError(c, forms.FromBindError(err))
		return
	}

	item, err := h.service.CreateManual(c.Request.Context(), &form)
	if err != nil {
		writeError(c, err)
		return
	}

	addFlash(c, fmt.Sprintf("Recorded observation %s at %s", item.ObservationID, item.Facility))
	c.Redirect(http.StatusFound, h.targetURL(item.TargetID))
}

func (h *ObservationHandler) ListFacilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"facilities": h.service.Facilities()})
}

func (h *ObservationHandler) targetURL(id uint) string {
	return fmt.Sprintf("%s/targets/%d", h.baseURL, id)
}

func observationFilter(c *gin.Context) (repository.ObservationFilter, error) {
	filter := repository.ObservationFilter{
		ObservationID: c.Query("observation_id"),
		Facility:      c.Query("facility"),
		Status:        c.Query("status"),
	}
	if raw := c.Query("target_id"); raw != "" {
		id, err := service.ParseTargetID(raw)
		if err != nil {
			return filter, err
		}
		filter.TargetID = &id
	}
	return filter, nil
}

// formValue reads a posted field, falling back to the query string.
func formValue(c *gin.Context, key string) string {
	if v, ok := c.GetPostForm(key); ok {
		return v
	}
	return c.Query(key)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Message: "invalid id " + strconv.Quote(c.Param("id"))})
		return 0, false
	}
	return uint(id), true
}
