package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
	md "github.com/Maruda-Patryk/api-library/pkg/middleware"
	"github.com/Maruda-Patryk/api-library/pkg/validate"
)

type Handler struct {
	catalogSvc CatalogService
	log        *zap.Logger
}

func New(catalogSvc CatalogService, log *zap.Logger) *Handler {
	return &Handler{
		catalogSvc: catalogSvc,
		log:        log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAccept, "X-Card-Number"},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
		md.AuthContext(h.catalogSvc.LookupStaff),
	)

	api.GET("/books", h.ListBooks)
	api.GET("/books/:serialNumber", h.GetBook)
	api.POST("/books", h.CreateBook, md.StaffOnly)
	api.DELETE("/books/:serialNumber", h.DeleteBook, md.StaffOnly)
	api.PATCH("/books/:serialNumber", h.PatchBook)

	api.GET("/members/:cardNumber", h.GetMember)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) ListBooks(c echo.Context) error {
	books, err := h.catalogSvc.ListBooks(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) GetBook(c echo.Context) error {
	book, err := h.catalogSvc.GetBook(c.Request().Context(), c.Param("serialNumber"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errs.NewErrorResponse(errors.Wrap(errs.ErrInvalidField, "malformed body")))
	}
	book, err := h.catalogSvc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	if err := h.catalogSvc.DeleteBook(c.Request().Context(), c.Param("serialNumber")); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PatchBook applies a borrow or return. The body is a partial object; fields other
// than is_borrowed, borrowed_by and borrowed_at are refused.
func (h *Handler) PatchBook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errs.NewErrorResponse(errors.Wrap(errs.ErrInvalidField, err.Error())))
	}
	req, err := model.ParseTransitionRequest(body)
	if err != nil {
		return h.httpError(err)
	}
	book, err := h.catalogSvc.ApplyTransition(c.Request().Context(), c.Param("serialNumber"), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) GetMember(c echo.Context) error {
	member, err := h.catalogSvc.GetMember(c.Request().Context(), c.Param("cardNumber"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, member)
}

func (h *Handler) httpError(err error) *echo.HTTPError {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrAlreadyBorrowed), errors.Is(err, errs.ErrDuplicateSerial):
		code = http.StatusConflict
	case errs.IsRejection(err),
		errors.Is(err, errs.ErrInvalidSerial),
		errors.Is(err, errs.ErrInvalidCard),
		errors.Is(err, errs.ErrInvalidField):
		code = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrStorageUnavailable):
		code = http.StatusServiceUnavailable
	default:
		h.log.Error("unexpected error", zap.Error(err))
	}
	return echo.NewHTTPError(code, errs.NewErrorResponse(err))
}
