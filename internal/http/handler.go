package http

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/freight-quotes/internal/http/middleware"
	"github.com/nurpe/freight-quotes/internal/model"
	"github.com/nurpe/freight-quotes/internal/service"
)

type Handler struct {
	quotes    *service.QuoteService
	staticDir string
	log       zerolog.Logger
}

func NewHandler(quotes *service.QuoteService, staticDir string, log zerolog.Logger) *Handler {
	return &Handler{quotes: quotes, staticDir: staticDir, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/health", h.health)
	router.HEAD("/health", h.health)

	protected := router.Group("/api")
	protected.Use(authMiddleware)
	protected.GET("/cotacoes", h.listQuotes)
	protected.GET("/cotacoes/export", h.exportQuotes)
	protected.GET("/cotacoes/:id", h.getQuote)
	protected.POST("/cotacoes", h.createQuote)
	protected.PUT("/cotacoes/:id", h.updateQuote)
	protected.DELETE("/cotacoes/:id", h.deleteQuote)

	router.NoRoute(authMiddleware, h.serveStatic)
}

func (h *Handler) health(c *gin.Context) {
	health := h.quotes.Health(c.Request.Context())
	status := http.StatusOK
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
	}
	if c.Request.Method == http.MethodHead {
		c.Status(status)
		return
	}
	c.JSON(status, health)
}

func (h *Handler) listQuotes(c *gin.Context) {
	quotes, err := h.quotes.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err, "Erro ao buscar cotações")
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (h *Handler) getQuote(c *gin.Context) {
	quote, err := h.quotes.Get(c.Request.Context(), model.ParseQuoteID(c.Param("id")))
	if err != nil {
		h.handleError(c, err, "Erro ao buscar cotação")
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) createQuote(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var draft model.QuoteDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.quotes.Create(c.Request.Context(), draft, principal)
	if err != nil {
		h.handleError(c, err, "Erro ao criar cotação")
		return
	}
	h.log.Info().Str("id", quote.ID.String()).Str("user", principal.DisplayName()).Msg("quote created")
	c.JSON(http.StatusCreated, quote)
}

func (h *Handler) updateQuote(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var draft model.QuoteDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.quotes.Update(c.Request.Context(), model.ParseQuoteID(c.Param("id")), draft, principal)
	if err != nil {
		h.handleError(c, err, "Erro ao atualizar cotação")
		return
	}
	h.log.Info().Str("id", quote.ID.String()).Str("user", principal.DisplayName()).Msg("quote updated")
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) deleteQuote(c *gin.Context) {
	id := model.ParseQuoteID(c.Param("id"))
	if err := h.quotes.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err, "Erro ao excluir cotação")
		return
	}
	h.log.Info().Str("id", id.String()).Msg("quote deleted")
	c.Status(http.StatusNoContent)
}

func (h *Handler) exportQuotes(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.quotes.Export(c.Request.Context(), service.ExportInput{
		Format:    model.ExportFormat(strings.ToLower(strings.TrimSpace(c.Query("format")))),
		Filter:    filter,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err, "Erro ao exportar cotações")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// serveStatic serves the browser form from the static directory. Anything
// that is not a file there is answered with the JSON 404.
func (h *Handler) serveStatic(c *gin.Context) {
	method := c.Request.Method
	if method == http.MethodGet || method == http.MethodHead {
		if file, ok := h.staticFile(c.Request.URL.Path); ok {
			c.File(file)
			return
		}
	}
	h.notFound(c)
}

func (h *Handler) staticFile(urlPath string) (string, bool) {
	if h.staticDir == "" || strings.HasPrefix(urlPath, "/api/") {
		return "", false
	}
	file := filepath.Join(h.staticDir, filepath.FromSlash(path.Clean("/"+urlPath)))
	info, err := os.Stat(file)
	if err == nil && info.IsDir() {
		file = filepath.Join(file, "index.html")
		info, err = os.Stat(file)
	}
	if err != nil || info.IsDir() {
		return "", false
	}
	return file, true
}

func (h *Handler) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "404 - Rota não encontrada", "path": c.Request.URL.Path})
}

func (h *Handler) handleError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Cotação não encontrada"})
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(action)
		c.JSON(http.StatusInternalServerError, gin.H{"error": action, "details": err.Error()})
	}
}

func parseFilter(c *gin.Context) (model.QuoteFilter, error) {
	filter := model.QuoteFilter{
		Search:    c.Query("search"),
		Requester: strings.TrimSpace(c.Query("requester")),
		Carrier:   strings.TrimSpace(c.Query("carrier")),
	}
	if raw := c.Query("month"); strings.TrimSpace(raw) != "" {
		year, month, err := model.ParseMonth(raw)
		if err != nil {
			return filter, err
		}
		filter.Year, filter.Month = year, month
	}
	status, err := model.ParseDealStatus(c.Query("status"))
	if err != nil {
		return filter, err
	}
	filter.Status = status
	return filter, nil
}
