package handlers

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every endpoint mounted under the API prefix.
type Handlers struct {
	Observations *ObservationHandler
	DataProducts *DataProductHandler
	Targets      *TargetHandler
	System       *SystemHandler
	// Submit guards the routes that contact a facility. May be nil.
	Submit gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, h Handlers) {
	submit := []gin.HandlerFunc{}
	if h.Submit != nil {
		submit = append(submit, h.Submit)
	}

	api.GET("/health", h.System.HealthCheck)
	api.GET("/system/stats", h.System.SystemStats)
	api.GET("/facilities", h.Observations.ListFacilities)

	obs := api.Group("/observations")
	obs.GET("", h.Observations.ListObservations)
	obs.GET("/export", h.Observations.ExportObservations)
	obs.GET("/manual", h.Observations.NewManualSubmission)
	obs.POST("/manual", h.Observations.CreateManual)
	obs.GET("/create/:facility", h.Observations.NewSubmission)
	obs.POST("/create/:facility", append(submit, h.Observations.Submit)...)
	obs.GET("/:id", h.Observations.GetObservation)

	targets := api.Group("/targets")
	targets.POST("", h.Targets.CreateTarget)
	targets.GET("/:id", h.Targets.GetTarget)

	products := api.Group("/dataproducts")
	products.GET("", h.DataProducts.ListDataProducts)
	products.POST("", h.DataProducts.UploadDataProduct)
	products.GET("/groups", h.DataProducts.ListGroups)
	products.POST("/groups", h.DataProducts.CreateGroup)
	products.POST("/groups/add", h.DataProducts.AddProductsToGroup)
	products.GET("/groups/:id", h.DataProducts.GetGroup)
	products.DELETE("/groups/:id", h.DataProducts.DeleteGroup)
	products.GET("/:id", h.DataProducts.GetDataProduct)
	products.DELETE("/:id", h.DataProducts.DeleteDataProduct)
	products.GET("/:id/thumbnail", h.DataProducts.GetThumbnail)
}
