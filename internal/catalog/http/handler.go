package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"product-catalog/internal/catalog"

	"github.com/gin-gonic/gin"
)

const deleteTokenHeader = "X-Delete-Token"

type ProductService interface {
	CreateProduct(ctx context.Context, in catalog.Input) (catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	UpdateProduct(ctx context.Context, id int64, in catalog.Input) (catalog.Product, error)
	DeleteProduct(ctx context.Context, id int64, token string) error
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	DeleteToken(id int64) (string, error)
}

type Handler struct {
	service ProductService
}

func NewHandler(svc ProductService) *Handler {
	return &Handler{service: svc}
}

type productRequest struct {
	Name        *string `json:"name" form:"name" example:"Widget"`
	Price       *int    `json:"price" form:"price" example:"50"`
	Description *string `json:"description" form:"description" example:"A sturdy widget"`
}

func (r productRequest) input() catalog.Input {
	return catalog.Input{Name: r.Name, Price: r.Price, Description: r.Description}
}

type deleteRequest struct {
	Token string `json:"_token" form:"_token"`
}

type productResponse struct {
	catalog.Product
	DeleteToken string `json:"delete_token" example:"MTc0MDM5ODQwMHxKd3dBTkEuLi58"`
}

type listProductsResponse struct {
	Items []catalog.Product `json:"items"`
}

type errorResponse struct {
	Error string `json:"error" example:"product not found"`
}

type validationErrorResponse struct {
	Error      string              `json:"error" example:"validation failed"`
	Violations []catalog.Violation `json:"violations"`
}

// ListProducts godoc
// @Summary      List all products in insertion order
// @Tags         products
// @Produce      json
// @Success      200  {object}  listProductsResponse
// @Failure      500  {object}  errorResponse
// @Router       /products [get]
func (h *Handler) ListProducts(c *gin.Context) {
	items, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to get products"})
		return
	}

	c.JSON(http.StatusOK, listProductsResponse{Items: items})
}

// CreateProduct godoc
// @Summary      Create a new product
// @Tags         products
// @Accept       json
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        body  body      productRequest  true  "Product data"
// @Success      201   {object}  catalog.Product
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  validationErrorResponse
// @Failure      500   {object}  errorResponse
// @Router       /products [post]
func (h *Handler) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, err, "failed to create product")
		return
	}

	c.JSON(http.StatusCreated, product)
}

// GetProduct godoc
// @Summary      Show a product with its delete token
// @Tags         products
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  productResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /products/{id} [get]
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.service.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to get product")
		return
	}

	token, err := h.service.DeleteToken(product.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to get product"})
		return
	}

	c.JSON(http.StatusOK, productResponse{Product: product, DeleteToken: token})
}

// UpdateProduct godoc
// @Summary      Update a product; omitted fields keep their value
// @Tags         products
// @Accept       json
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        id    path      int             true  "Product ID"
// @Param        body  body      productRequest  true  "Fields to change"
// @Success      200   {object}  catalog.Product
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  validationErrorResponse
// @Failure      500   {object}  errorResponse
// @Router       /products/{id} [put]
// @Router       /products/{id} [patch]
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	product, err := h.service.UpdateProduct(c.Request.Context(), id, req.input())
	if err != nil {
		writeError(c, err, "failed to update product")
		return
	}

	c.JSON(http.StatusOK, product)
}

// DeleteProduct godoc
// @Summary      Delete a product by ID
// @Description  Requires the delete token from GET /products/{id}, sent as X-Delete-Token or _token.
// @Tags         products
// @Produce      json
// @Param        id              path      int     true   "Product ID"
// @Param        X-Delete-Token  header    string  false  "Delete token"
// @Param        body            body      deleteRequest  false  "Delete token as _token"
// @Success      204
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /products/{id} [delete]
func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	token := c.GetHeader(deleteTokenHeader)
	if token == "" && c.Request.ContentLength != 0 {
		var req deleteRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		token = req.Token
	}

	if err := h.service.DeleteProduct(c.Request.Context(), id, token); err != nil {
		writeError(c, err, "failed to delete product")
		return
	}

	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error, fallback string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, validationErrorResponse{
			Error:      "validation failed",
			Violations: verr.Violations,
		})
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, catalog.ErrDeleteUnauthorized):
		c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fallback})
	}
}
