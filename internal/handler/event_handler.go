package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

// EventHandler handles event-related HTTP requests
type EventHandler struct {
	eventService service.EventService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(eventService service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// List handles GET /events
func (h *EventHandler) List(c *gin.Context) {
	var filter dto.EventListFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.TenantID = tenantID(c)

	events, total, err := h.eventService.List(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, events, filter.Pagination, total)
}

// GetByID handles GET /events/:id
func (h *EventHandler) GetByID(c *gin.Context) {
	event, err := h.eventService.GetByID(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(event))
}

// Create handles POST /events
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.eventService.Create(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(event))
}

// Update handles PUT /events/:id
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpdateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.eventService.Update(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(event))
}

// Publish handles POST /events/:id/publish
func (h *EventHandler) Publish(c *gin.Context) {
	event, err := h.eventService.Publish(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(event))
}

// Cancel handles POST /events/:id/cancel
func (h *EventHandler) Cancel(c *gin.Context) {
	event, err := h.eventService.Cancel(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(event))
}

// Delete handles DELETE /events/:id
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.eventService.Delete(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{"message": "Event deleted successfully"}))
}
