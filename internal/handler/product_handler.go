package handler

import (
	"errors"
	"net/http"
	"strconv"

	"catalog/internal/middleware"
	"catalog/internal/usecase"
	"catalog/internal/validator"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error      string   `json:"error"`
	Categories []string `json:"categories,omitempty"`
	Peers      []string `json:"peers,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// POST /products のレスポンス
type CreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type LoadResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// 作成・更新の入力
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Category    string          `json:"category" validate:"required,max=100"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"`
	Stock       int64           `json:"stock" validate:"gte=0"`
}

func (r ProductRequest) toInput() usecase.ProductInput {
	return usecase.ProductInput{
		Name:        r.Name,
		Category:    r.Category,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
	}
}

func writeError(c echo.Context, logger *zap.Logger, err error) error {
	if err == nil {
		return nil
	}

	var verr *validator.Error
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Error()})
	}

	if ue, ok := usecase.AsError(err); ok {
		if ue.Kind == usecase.KindInternal {
			logger.Error("request failed",
				zap.String("path", c.Request().URL.Path),
				zap.String("request_id", middleware.RequestIDFromContext(c.Request().Context())),
				zap.Error(err),
			)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
		return c.JSON(ue.Kind.Status(), ErrorResponse{
			Error:      ue.Message,
			Categories: ue.Categories,
			Peers:      ue.Peers,
		})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// /products と /categories
type ProductHandler struct {
	uc     *usecase.ProductUsecase
	logger *zap.Logger
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{uc: uc, logger: logger}
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.list)
	e.GET("/products/id/:id", h.detail)
	e.GET("/products/name/:name", h.byName)
	e.POST("/products", h.create)
	e.POST("/products/JSON_load", h.loadJSON)
	e.PUT("/products/updateStock/:id", h.updateStock)
	e.PUT("/products/:id", h.update)
	e.DELETE("/products/:id", h.delete)

	e.GET("/categories", h.categories)
}

func (h *ProductHandler) list(c echo.Context) error {
	items, err := h.uc.GetAllProducts(c.Request().Context())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	p, err := h.uc.GetProductByID(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) byName(c echo.Context) error {
	items, err := h.uc.GetProductsByName(c.Request().Context(), c.Param("name"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ProductHandler) create(c echo.Context) error {
	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.logger, err)
	}

	id, err := h.uc.SaveProduct(c.Request().Context(), req.toInput())
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, CreatedResponse{
		ID:      id,
		Message: "DDBB updated",
		Status:  http.StatusCreated,
	})
}

func (h *ProductHandler) update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.logger, err)
	}

	if err := h.uc.UpdateProduct(c.Request().Context(), id, req.toInput()); err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

// body は販売数（JSONの整数）だけ
func (h *ProductHandler) updateStock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	//空bodyは0件扱いにしない
	if c.Request().ContentLength == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	var unitsSold int64
	if err := (&echo.DefaultBinder{}).BindBody(c, &unitsSold); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.uc.AdjustStock(c.Request().Context(), id, unitsSold); err != nil {
		return writeError(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandler) delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	if err := h.uc.DeleteProduct(c.Request().Context(), id); err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func (h *ProductHandler) loadJSON(c echo.Context) error {
	n, err := h.uc.LoadProductsFromJSON(c.Request().Context(), c.QueryParam("path"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, LoadResponse{Message: "DDBB updated", Count: n})
}

func (h *ProductHandler) categories(c echo.Context) error {
	return c.JSON(http.StatusOK, h.uc.Categories())
}

func parseID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
