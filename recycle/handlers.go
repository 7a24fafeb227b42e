package recycle

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rhesis-ai/rhesis-backend/domain"
	"github.com/rhesis-ai/rhesis-backend/ginsrv"
	"github.com/rhesis-ai/rhesis-backend/lifecycle"
)

// Handler serves the recycle bin and the entity routes over HTTP
type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

// RecycleRoutes serves the admin recycle bin. The caller must mount it
// behind ginsrv.Authenticate.
type RecycleRoutes struct{ *Handler }

// EntityRoutes serves default reads and soft deletes for any caller
type EntityRoutes struct{ *Handler }

func (h *Handler) Recycle() RecycleRoutes { return RecycleRoutes{h} }
func (h *Handler) Entities() EntityRoutes { return EntityRoutes{h} }

func (r RecycleRoutes) Register(router gin.IRouter) {
	g := router.Group("/recycle", ginsrv.RequireAdmin())
	g.GET("/models", r.models)
	g.GET("/stats/counts", r.counts)
	g.POST("/bulk-restore/:type", r.bulkRestore)
	g.DELETE("/empty/:type", r.empty)
	g.GET("/:type", r.listDeleted)
	g.POST("/:type/:id/restore", r.restore)
	g.DELETE("/:type/:id", r.purge)
}

func (r EntityRoutes) Register(router gin.IRouter) {
	router.GET("/:type", r.list)
	router.GET("/:type/:id", r.get)
	router.DELETE("/:type/:id", r.softDelete)
}

// scope builds the lifecycle scope of the caller. Admins may narrow it to
// one organization with ?scope=.
func scopeOf(c *gin.Context) (lifecycle.Scope, bool) {
	p, ok := ginsrv.PrincipalFrom(c)
	if !ok {
		return lifecycle.Scope{}, false
	}
	scope := lifecycle.Scope{
		OrganizationID: p.OrganizationID,
		UserID:         p.UserID,
		Elevated:       p.Admin,
	}
	if p.Admin {
		if org, ok := c.GetQuery("scope"); ok {
			scope.OrganizationID = org
		}
	}
	return scope, true
}

func parsePage(c *gin.Context) (lifecycle.Page, error) {
	var page lifecycle.Page
	for _, p := range []struct {
		name string
		dst  *int
	}{{"skip", &page.Skip}, {"limit", &page.Limit}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return page, fmt.Errorf("%w: %s must be a non-negative integer", lifecycle.ErrInvalidArgument, p.name)
		}
		*p.dst = v
	}
	if page.Limit == 0 {
		page.Limit = lifecycle.DefaultLimit
	}
	if page.Limit > lifecycle.MaxLimit {
		page.Limit = lifecycle.MaxLimit
	}
	return page, nil
}

func confirmed(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.Query("confirm"))
	return err == nil && v
}

// restoreURL is where a deleted entity can be brought back from
func restoreURL(typ, id string) string {
	return fmt.Sprintf("/recycle/%s/%s/restore", typ, id)
}

func displayName(typ string) string {
	words := strings.Split(typ, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func (h *Handler) fail(c *gin.Context, typ, id string, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, lifecycle.ErrDeleted):
		name := displayName(typ)
		c.JSON(http.StatusGone, gin.H{
			"detail":      name + " has been deleted",
			"table_name":  typ,
			"item_id":     id,
			"restore_url": restoreURL(typ, id),
			"can_restore": true,
			"message":     fmt.Sprintf("This %s has been deleted. You can restore it from the recycle bin.", strings.ToLower(name)),
		})
	case errors.Is(err, ErrUnknownType):
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("unknown entity type %q", typ)})
	case errors.Is(err, lifecycle.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("%s not found", displayName(typ))})
	case errors.Is(err, lifecycle.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case errors.Is(err, lifecycle.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	case errors.Is(err, lifecycle.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"detail": err.Error()})
	default:
		h.log.Error("request failed",
			zap.String("entity", typ),
			zap.String("id", id),
			zap.String("request_id", ginsrv.RequestIDFrom(c)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	}
}

func (h *Handler) withScope(c *gin.Context) (lifecycle.Scope, bool) {
	scope, ok := scopeOf(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
	}
	return scope, ok
}

func (h *Handler) render(c *gin.Context, typ, id string, status int, item any) {
	body, err := domain.Render(item)
	if err != nil {
		h.fail(c, typ, id, err)
		return
	}
	c.JSON(status, body)
}

func (h *Handler) renderPage(c *gin.Context, typ string, items []any, total int64, page lifecycle.Page) {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		body, err := domain.Render(item)
		if err != nil {
			h.fail(c, typ, "", err)
			return
		}
		out = append(out, body)
	}
	c.JSON(http.StatusOK, gin.H{
		"model":    typ,
		"items":    out,
		"count":    len(out),
		"total":    total,
		"skip":     page.Skip,
		"limit":    page.Limit,
		"has_more": int64(page.Skip+len(out)) < total,
	})
}

func (r RecycleRoutes) models(c *gin.Context) {
	models := r.svc.Models()
	c.JSON(http.StatusOK, gin.H{"models": models, "count": len(models)})
}

func (r RecycleRoutes) listDeleted(c *gin.Context) {
	typ := c.Param("type")
	scope, ok := r.withScope(c)
	if !ok {
		return
	}
	page, err := parsePage(c)
	if err != nil {
		r.fail(c, typ, "", err)
		return
	}

	items, total, err := r.svc.ListDeleted(c.Request.Context(), typ, scope, page)
	if err != nil {
		r.fail(c, typ, "", err)
		return
	}
	r.renderPage(c, typ, items, total, page)
}

func (r RecycleRoutes) restore(c *gin.Context) {
	typ, id := c.Param("type"), c.Param("id")
	scope, ok := r.withScope(c)
	if !ok {
		return
	}

	res, err := r.svc.Restore(c.Request.Context(), typ, scope, id)
	if err != nil {
		r.fail(c, typ, id, err)
		return
	}
	body, err := domain.Render(res.Item)
	if err != nil {
		r.fail(c, typ, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  fmt.Sprintf("%s restored successfully", displayName(typ)),
		"item":     body,
		"cascaded": res.Cascaded,
	})
}

func (r RecycleRoutes) purge(c *gin.Context) {
	typ, id := c.Param("type"), c.Param("id")
	scope, ok := r.withScope(c)
	if !ok {
		return
	}

	if err := r.svc.Purge(c.Request.Context(), typ, scope, id, confirmed(c)); err != nil {
		r.fail(c, typ, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("%s permanently deleted", displayName(typ)),
		"item_id": id,
	})
}

type bulkRestoreRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (r RecycleRoutes) bulkRestore(c *gin.Context) {
	typ := c.Param("type")
	scope, ok := r.withScope(c)
	if !ok {
		return
	}

	var req bulkRestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		r.fail(c, typ, "", fmt.Errorf("%w: %v", lifecycle.ErrInvalidArgument, err))
		return
	}

	res, err := r.svc.BulkRestore(c.Request.Context(), typ, scope, req.IDs)
	if err != nil {
		r.fail(c, typ, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("restored %d of %d", len(res.Restored), len(res.Results)),
		"restored":  res.Restored,
		"not_found": res.NotFound,
		"failed":    res.Failed,
		"results":   res.Results,
	})
}

func (r RecycleRoutes) empty(c *gin.Context) {
	typ := c.Param("type")
	scope, ok := r.withScope(c)
	if !ok {
		return
	}

	n, err := r.svc.Empty(c.Request.Context(), typ, scope, confirmed(c))
	if err != nil {
		r.fail(c, typ, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("permanently deleted %d %s records", n, typ),
		"model":   typ,
		"count":   n,
	})
}

func (r RecycleRoutes) counts(c *gin.Context) {
	scope, ok := r.withScope(c)
	if !ok {
		return
	}

	counts, err := r.svc.Counts(c.Request.Context(), scope)
	if err != nil {
		r.fail(c, "", "", err)
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "total": total})
}

func (r EntityRoutes) list(c *gin.Context) {
	typ := c.Param("type")
	scope, ok := r.withScope(c)
	if !ok {
		return
	}
	page, err := parsePage(c)
	if err != nil {
		r.fail(c, typ, "", err)
		return
	}

	items, total, err := r.svc.List(c.Request.Context(), typ, scope, page)
	if err != nil {
		r.fail(c, typ, "", err)
		return
	}
	r.renderPage(c, typ, items, total, page)
}

func (r EntityRoutes) get(c *gin.Context) {
	typ, id := c.Param("type"), c.Param("id")
	scope, ok := r.withScope(c)
	if !ok {
		return
	}

	item, err := r.svc.Get(c.Request.Context(), typ, scope, id)
	if err != nil {
		r.fail(c, typ, id, err)
		return
	}
	r.render(c, typ, id, http.StatusOK, item)
}

func (r EntityRoutes) softDelete(c *gin.Context) {
	typ, id := c.Param("type"), c.Param("id")
	scope, ok := r.withScope(c)
	if !ok {
		return
	}

	item, err := r.svc.SoftDelete(c.Request.Context(), typ, scope, id)
	if err != nil {
		r.fail(c, typ, id, err)
		return
	}
	r.render(c, typ, id, http.StatusOK, item)
}
