package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medhq/hospital-api/internal/handler"
	"github.com/medhq/hospital-api/internal/middleware"
	"github.com/medhq/hospital-api/internal/model"
	"github.com/medhq/hospital-api/internal/service/billing"
	"github.com/medhq/hospital-api/pkg/metrics"
	"github.com/medhq/hospital-api/pkg/validator"
)

type Handler struct {
	service  *billing.Service
	validate validator.Validator
	metrics  *metrics.Metrics
}

func NewHandler(service *billing.Service, validate validator.Validator, m *metrics.Metrics) *Handler {
	return &Handler{service: service, validate: validate, metrics: m}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bills := r.Group("/bills")
	// Bill writes are desk operations; patients get read access only.
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleNurse, model.RoleDoctor)
	{
		bills.POST("", staff, h.CreateBill)
		bills.GET("", h.ListBills)
		bills.GET("/:id", h.GetBill)
		bills.PATCH("/:id/items", staff, h.UpdateBillItems)
		bills.PATCH("/:id/status", staff, h.SetBillStatus)
		bills.POST("/:id/pay", staff, h.PayBill)
	}
}

func (h *Handler) CreateBill(c *gin.Context) {
	var req model.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	bill, err := h.service.Create(c.Request.Context(), middleware.ActorFrom(c), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.BillsCreated.Inc()
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(bill))
}

func (h *Handler) GetBill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid bill ID"))
		return
	}

	bill, err := h.service.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bill))
}

func (h *Handler) ListBills(c *gin.Context) {
	var patientID uuid.UUID
	if id := c.Query("patient_id"); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
			return
		}
		patientID = parsed
	}

	bills, err := h.service.List(c.Request.Context(), middleware.ActorFrom(c), patientID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bills))
}

func (h *Handler) UpdateBillItems(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid bill ID"))
		return
	}

	var req model.UpdateBillItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	bill, err := h.service.UpdateItems(c.Request.Context(), middleware.ActorFrom(c), id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bill))
}

func (h *Handler) SetBillStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid bill ID"))
		return
	}

	var req struct {
		Status model.BillStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	bill, err := h.service.SetStatus(c.Request.Context(), middleware.ActorFrom(c), id, req.Status)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bill))
}

func (h *Handler) PayBill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid bill ID"))
		return
	}

	var req model.PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	bill, err := h.service.Pay(c.Request.Context(), middleware.ActorFrom(c), id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.PaymentsTaken.WithLabelValues(req.Method).Inc()
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bill))
}
