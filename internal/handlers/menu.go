package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-table-orderflow/internal/gateway"
	"github.com/imrishuroy/go-table-orderflow/internal/menu"
	"github.com/imrishuroy/go-table-orderflow/internal/validation"
)

// MenuConfig groups dependencies for the menu, category and seed routes.
type MenuConfig struct {
	Catalog menu.Catalog
	Logger  *slog.Logger
	// SeedItems is what POST /api/seed loads; nil means menu.DefaultItems.
	SeedItems []menu.Item
	// ReadTimeout and WriteTimeout bound catalog calls; zero uses the gateway defaults.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type menuHandler struct {
	catalog  menu.Catalog
	seed     []menu.Item
	validate *validatorv10.Validate
	log      *slog.Logger
}

// RegisterMenuRoutes mounts the menu catalog under /api.
func RegisterMenuRoutes(r gin.IRouter, cfg MenuConfig) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SeedItems == nil {
		cfg.SeedItems = menu.DefaultItems
	}
	h := &menuHandler{catalog: boundCatalog(cfg.Catalog, cfg.ReadTimeout, cfg.WriteTimeout), seed: cfg.SeedItems, validate: validation.New(), log: cfg.Logger}

	api := r.Group("/api")
	api.GET("/menu", h.list)
	api.POST("/menu", h.create)
	api.PATCH("/menu/stock", h.adjustStock)
	api.POST("/menu/stock", h.bulkAdjustStock)
	api.GET("/menu/:id", h.get)
	api.PUT("/menu/:id", h.update)
	api.DELETE("/menu/:id", h.delete)

	api.GET("/categories", h.categories)
	api.POST("/categories", h.createCategory)
	api.DELETE("/categories", h.deleteCategory)

	api.GET("/seed", h.seedStatus)
	api.POST("/seed", h.runSeed)
}

// boundCatalog puts c behind the catalog gateway unless it already is.
func boundCatalog(c menu.Catalog, read, write time.Duration) menu.Catalog {
	if c == nil {
		return nil
	}
	if _, ok := c.(*gateway.Catalog); ok {
		return c
	}
	return gateway.NewCatalog(c, read, write)
}

// menuError maps catalog errors to the statuses the menu routes have always used.
func (h *menuHandler) menuError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, menu.ErrNotFound):
		fail(c, http.StatusNotFound, "Menu not found", "not_found", nil)
	case errors.Is(err, menu.ErrDuplicate):
		fail(c, http.StatusConflict, "Menu with this ID already exists", "duplicate", nil)
	case errors.Is(err, menu.ErrCategoryExists):
		fail(c, http.StatusConflict, "Category already exists", "duplicate", nil)
	case errors.Is(err, menu.ErrCategoryNotEmpty):
		fail(c, http.StatusBadRequest, "Cannot delete category with menu items. Remove all items first.", "category_not_empty", nil)
	case errors.Is(err, menu.ErrInvalid):
		fail(c, http.StatusBadRequest, err.Error(), "validation", nil)
	case errors.Is(err, gateway.ErrUpstreamTimeout):
		h.log.Warn("menu upstream timeout", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		fail(c, http.StatusGatewayTimeout, "menu service timed out", CodeUpstreamTimeout, nil)
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		h.log.Warn("menu upstream unavailable", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		fail(c, http.StatusBadGateway, "menu service unavailable", CodeUpstreamUnavailable, nil)
	default:
		h.log.Error("menu request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		fail(c, http.StatusInternalServerError, "menu request failed", CodeInternal, nil)
	}
}

func (h *menuHandler) list(c *gin.Context) {
	category := c.Query("category")
	items, err := h.catalog.List(c.Request.Context(), category)
	if err != nil {
		h.menuError(c, err)
		return
	}
	if items == nil {
		items = []menu.Item{}
	}
	body := gin.H{"menus": items}
	if strings.TrimSpace(category) == "" {
		cats, err := h.catalog.Categories(c.Request.Context())
		if err != nil {
			h.menuError(c, err)
			return
		}
		names := make([]string, 0, len(cats))
		for _, ct := range cats {
			names = append(names, ct.Name)
		}
		body["categories"] = names
	}
	ok(c, body)
}

func (h *menuHandler) get(c *gin.Context) {
	it, err := h.catalog.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.menuError(c, err)
		return
	}
	ok(c, gin.H{"menu": it})
}

func (h *menuHandler) create(c *gin.Context) {
	var req validation.CreateMenuRequest
	if err := validation.BindAndValidateStatus(c, &req, h.validate, http.StatusBadRequest); err != nil {
		return
	}
	it := menu.Item{
		ID:          req.ID,
		Category:    req.Category,
		Name:        req.Name,
		Price:       *req.Price,
		Description: req.Description,
		Image:       req.Image,
		Available:   req.Available == nil || *req.Available,
		Stock:       req.Stock,
	}
	created, err := h.catalog.Create(c.Request.Context(), it)
	if err != nil {
		h.menuError(c, err)
		return
	}
	ok(c, gin.H{"menu": created, "message": "Menu created successfully"})
}

func (h *menuHandler) update(c *gin.Context) {
	var req validation.UpdateMenuRequest
	if err := validation.BindAndValidateStatus(c, &req, h.validate, http.StatusBadRequest); err != nil {
		return
	}
	updated, err := h.catalog.Update(c.Request.Context(), c.Param("id"), menu.Patch{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Description: req.Description,
		Image:       req.Image,
		Available:   req.Available,
		Stock:       req.Stock,
	})
	if err != nil {
		h.menuError(c, err)
		return
	}
	ok(c, gin.H{"menu": updated, "message": "Menu updated successfully"})
}

func (h *menuHandler) delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.catalog.Delete(c.Request.Context(), id); err != nil {
		h.menuError(c, err)
		return
	}
	ok(c, gin.H{"id": id, "message": "Menu deleted successfully"})
}

func (h *menuHandler) adjustStock(c *gin.Context) {
	var req validation.StockRequest
	if err := validation.BindAndValidateStatus(c, &req, h.validate, http.StatusBadRequest); err != nil {
		return
	}
	res, err := h.catalog.AdjustStock(c.Request.Context(), req.ID, req.Category, *req.Quantity)
	if err != nil {
		h.menuError(c, err)
		return
	}
	ok(c, gin.H{
		"id":            res.ID,
		"previousStock": res.PreviousStock,
		"newStock":      res.NewStock,
		"available":     res.Available,
		"message":       fmt.Sprintf("Stock updated from %d to %d", res.PreviousStock, res.NewStock),
	})
}

func (h *menuHandler) bulkAdjustStock(c *gin.Context) {
	var req validation.BulkStockRequest
	if err := validation.BindAndValidateStatus(c, &req, h.validate, http.StatusBadRequest); err != nil {
		return
	}
	updates := make([]menu.StockUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		updates = append(updates, menu.StockUpdate{ID: u.ID, Category: u.Category, Delta: *u.Quantity})
	}
	results := h.catalog.BulkAdjustStock(c.Request.Context(), updates)
	ok(c, gin.H{"results": results, "message": fmt.Sprintf("Processed %d stock updates", len(results))})
}

func (h *menuHandler) categories(c *gin.Context) {
	cats, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.menuError(c, err)
		return
	}
	if cats == nil {
		cats = []menu.Category{}
	}
	ok(c, gin.H{"categories": cats})
}

func (h *menuHandler) createCategory(c *gin.Context) {
	var req validation.CategoryRequest
	if err := validation.BindAndValidateStatus(c, &req, h.validate, http.StatusBadRequest); err != nil {
		return
	}
	name, err := h.catalog.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		h.menuError(c, err)
		return
	}
	ok(c, gin.H{"category": name, "message": "Category created successfully"})
}

func (h *menuHandler) deleteCategory(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		fail(c, http.StatusBadRequest, "Category name is required", "validation", nil)
		return
	}
	if err := h.catalog.DeleteCategory(c.Request.Context(), name); err != nil {
		h.menuError(c, err)
		return
	}
	ok(c, gin.H{"category": menu.NormalizeCategory(name), "message": "Category deleted successfully"})
}

func (h *menuHandler) seedStatus(c *gin.Context) {
	cats, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.menuError(c, err)
		return
	}
	total := 0
	for _, ct := range cats {
		total += ct.Count
	}
	msg := "Database is empty"
	if total > 0 {
		msg = "Database has menu items"
	}
	if cats == nil {
		cats = []menu.Category{}
	}
	ok(c, gin.H{"message": msg, "totalItems": total, "categories": cats})
}

// runSeed loads the starter menu. Existing items are kept.
func (h *menuHandler) runSeed(c *gin.Context) {
	added, err := menu.Seed(c.Request.Context(), h.catalog, h.seed)
	if err != nil {
		h.menuError(c, err)
		return
	}
	h.log.Info("menu seeded", slog.Int("added", added))
	ok(c, gin.H{"message": "Menu seeded successfully", "itemsAdded": added})
}
