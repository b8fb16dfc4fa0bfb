package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"tomobs/internal/forms"
	"tomobs/internal/repository"
	"tomobs/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

type DataProductHandler struct {
	service service.DataProductService
}

func NewDataProductHandler(service service.DataProductService) *DataProductHandler {
	return &DataProductHandler{service: service}
}

// ListDataProducts godoc
// @Summary List data products
// @Description Newest first, 25 per page.
// @Tags DataProducts
// @Param target query string false "Target identifier"
// @Param facility query string false "Facility of the observation record"
// @Router /dataproducts [get]
func (h *DataProductHandler) ListDataProducts(c *gin.Context) {
	filter := repository.DataProductFilter{
		TargetIdentifier: c.Query("target"),
		Facility:         c.Query("facility"),
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	result, err := h.service.List(c.Request.Context(), filter, page)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":         result.Count,
		"page":          result.Number,
		"page_size":     result.Size,
		"num_pages":     result.NumPages,
		"data_products": result.DataProducts,
		"messages":      popFlash(c),
	})
}

// UploadDataProduct godoc
// @Summary Upload a data product file
// @Tags DataProducts
// @Accept multipart/form-data
// @Param file formData file true "Product file"
// @Param target_id formData int true "Target id"
// @Param observation_record formData int false "Observation record id"
// @Router /dataproducts [post]
func (h *DataProductHandler) UploadDataProduct(c *gin.Context) {
	targetID, err := service.ParseTargetID(formValue(c, "target_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	ve := forms.NewValidationError()
	in := service.UploadInput{
		TargetID:  targetID,
		ProductID: c.PostForm("product_id"),
		Tag:       c.PostForm("tag"),
	}

	if raw := c.PostForm("observation_record"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 0)
		if err != nil || id == 0 {
			ve.Add("observation_record", "Enter a whole number.")
		} else {
			recordID := uint(id)
			in.ObservationRecordID = &recordID
		}
	}
	if raw := c.PostForm("extra_data"); raw != "" {
		if !json.Valid([]byte(raw)) {
			ve.Add("extra_data", "Enter valid JSON.")
		} else {
			in.ExtraData = datatypes.JSON(raw)
		}
	}

	header, err := c.FormFile("file")
	if err != nil {
		ve.Add("file", "This field is required.")
	}
	if err := ve.Err(); err != nil {
		writeError(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		writeError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}
	defer file.Close()

	in.Filename = header.Filename
	in.Size = header.Size
	in.Content = file

	product, err := h.service.Upload(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *DataProductHandler) GetDataProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	product, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *DataProductHandler) DeleteDataProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Data product %d deleted", id)})
}

// GetThumbnail godoc
// @Summary Grayscale PNG of a FITS data product, base64 encoded
// @Tags DataProducts
// @Success 200 {object} ThumbnailResponse
// @Failure 422 {object} ErrorResponse
// @Router /dataproducts/{id}/thumbnail [get]
func (h *DataProductHandler) GetThumbnail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	encoded, err := h.service.Thumbnail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ThumbnailResponse{ID: id, PNGBase64: encoded})
}

type ThumbnailResponse struct {
	ID        uint   `json:"id"`
	PNGBase64 string `json:"png_base64"`
}

func (h *DataProductHandler) ListGroups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "messages": popFlash(c)})
}

func (h *DataProductHandler) CreateGroup(c *gin.Context) {
	var form forms.GroupForm
	if err := c.ShouldBind(&form); err != nil {
		writeError(c, forms.FromBindError(err))
		return
	}
	group, err := h.service.CreateGroup(c.Request.Context(), &form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *DataProductHandler) GetGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	group, err := h.service.GetGroup(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *DataProductHandler) DeleteGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteGroup(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Group %d deleted", id)})
}

// AddProductsToGroup godoc
// @Summary Add data products to a group
// @Tags DataProducts
// @Param products formData []int true "Data product ids"
// @Param group formData int true "Group id"
// @Router /dataproducts/groups/add [post]
func (h *DataProductHandler) AddProductsToGroup(c *gin.Context) {
	var form forms.AddProductToGroupForm
	if err := c.ShouldBind(&form); err != nil {
		writeError(c, forms.FromBindError(err))
		return
	}

	group, err := h.service.AddProductsToGroup(c.Request.Context(), &form)
	if err != nil {
		writeError(c, err)
		return
	}

	message := fmt.Sprintf("Added %d data product(s) to group %s", len(form.Products), group.Name)
	addFlash(c, message)
	c.JSON(http.StatusOK, gin.H{"message": message, "group": group})
}
