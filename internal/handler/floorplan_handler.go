package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

// FloorPlanHandler handles floor plans and their seats
type FloorPlanHandler struct {
	floorPlanService service.FloorPlanService
}

// NewFloorPlanHandler creates a new FloorPlanHandler
func NewFloorPlanHandler(floorPlanService service.FloorPlanService) *FloorPlanHandler {
	return &FloorPlanHandler{floorPlanService: floorPlanService}
}

// Create handles POST /floor-plans
func (h *FloorPlanHandler) Create(c *gin.Context) {
	var req dto.CreateFloorPlanRequest
	if !bindJSON(c, &req) {
		return
	}

	fp, err := h.floorPlanService.Create(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(fp))
}

// List handles GET /floor-plans?event_id=
func (h *FloorPlanHandler) List(c *gin.Context) {
	eventID := c.Query("event_id")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("event_id is required"))
		return
	}

	plans, err := h.floorPlanService.ListByEvent(c.Request.Context(), tenantID(c), eventID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(plans))
}

// GetByID handles GET /floor-plans/:id
func (h *FloorPlanHandler) GetByID(c *gin.Context) {
	fp, err := h.floorPlanService.GetByID(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(fp))
}

// Update handles PUT /floor-plans/:id
func (h *FloorPlanHandler) Update(c *gin.Context) {
	var req dto.UpdateFloorPlanRequest
	if !bindJSON(c, &req) {
		return
	}

	fp, err := h.floorPlanService.Update(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(fp))
}

// Publish handles POST /floor-plans/:id/publish
func (h *FloorPlanHandler) Publish(c *gin.Context) {
	fp, err := h.floorPlanService.Publish(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(fp))
}

// Seats handles GET /floor-plans/:id/seats
func (h *FloorPlanHandler) Seats(c *gin.Context) {
	seats, err := h.floorPlanService.Seats(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(seats))
}

// GenerateSeats handles POST /floor-plans/:id/seats/generate
func (h *FloorPlanHandler) GenerateSeats(c *gin.Context) {
	var req dto.GenerateSeatsRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.floorPlanService.GenerateSeats(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(gin.H{"created": n}))
}

// BlockSeats handles POST /floor-plans/:id/seats/block
func (h *FloorPlanHandler) BlockSeats(c *gin.Context) {
	var req dto.SeatBlockRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.floorPlanService.BlockSeats(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{"updated": n}))
}

// HoldSeats handles POST /floor-plans/:id/seats/hold
func (h *FloorPlanHandler) HoldSeats(c *gin.Context) {
	var req dto.SeatHoldRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.floorPlanService.HoldSeats(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// ReleaseSeats handles POST /floor-plans/:id/seats/release
func (h *FloorPlanHandler) ReleaseSeats(c *gin.Context) {
	var req dto.SeatHoldRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.floorPlanService.ReleaseSeats(c.Request.Context(), tenantID(c), c.Param("id"), &req); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{"released": len(req.SeatIDs)}))
}
