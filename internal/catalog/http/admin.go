package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"product-catalog/internal/catalog"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// ProductReader is the read side of the service used by the admin back-office.
type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	ListProductsPage(ctx context.Context, limit, offset int) ([]catalog.Product, int64, error)
}

// AdminHandler serves a read-only projection of the catalog for operators.
type AdminHandler struct {
	service ProductReader
}

func NewAdminHandler(svc ProductReader) *AdminHandler {
	return &AdminHandler{service: svc}
}

type adminProduct struct {
	ID          int64     `json:"id" example:"1"`
	Name        string    `json:"name" example:"Widget"`
	Price       int       `json:"price" example:"50"`
	Description string    `json:"description" example:"A sturdy widget"`
	CreatedAt   time.Time `json:"created_at" example:"2026-02-24T12:00:00Z"`
}

func project(p catalog.Product) adminProduct {
	return adminProduct{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

type adminListResponse struct {
	Items      []adminProduct `json:"items"`
	Pagination paginationMeta `json:"pagination"`
}

type paginationMeta struct {
	Page  int   `json:"page" example:"1"`
	Limit int   `json:"limit" example:"10"`
	Total int64 `json:"total" example:"42"`
}

// Dashboard redirects to the product listing, the only admin section.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	c.Redirect(http.StatusFound, "/admin/products")
}

// ListProducts godoc
// @Summary      Admin: paginated product listing
// @Tags         admin
// @Produce      json
// @Param        page   query     int  false  "Page number"    default(1)
// @Param        limit  query     int  false  "Items per page" default(10)
// @Success      200    {object}  adminListResponse
// @Failure      500    {object}  errorResponse
// @Router       /admin/products [get]
func (h *AdminHandler) ListProducts(c *gin.Context) {
	page := parseQueryInt(c.Query("page"), defaultPage)
	limit := parseQueryInt(c.Query("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset := (page - 1) * limit
	list, total, err := h.service.ListProductsPage(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to get products"})
		return
	}

	items := make([]adminProduct, 0, len(list))
	for _, p := range list {
		items = append(items, project(p))
	}

	c.JSON(http.StatusOK, adminListResponse{
		Items: items,
		Pagination: paginationMeta{
			Page:  page,
			Limit: limit,
			Total: total,
		},
	})
}

// ShowProduct godoc
// @Summary      Admin: product detail
// @Tags         admin
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  adminProduct
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /admin/products/{id} [get]
func (h *AdminHandler) ShowProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.service.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to get product")
		return
	}

	c.JSON(http.StatusOK, project(product))
}

func parseQueryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
