package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/app"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Headers set by the identity provider in front of the daemon.
const (
	HeaderPrincipalID    = "X-Principal-Id"
	HeaderPrincipalEmail = "X-Principal-Email"
	HeaderPrincipalName  = "X-Principal-Name"
)

const (
	ctxIdentity = "crm.identity"
	ctxScope    = "crm.scope"
)

type Handler struct {
	App *app.App
	Log *zap.SugaredLogger
}

// Register mounts the UI routes under /api.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api", h.Authenticate)

	g.GET("/me", h.Me)
	g.GET("/company", h.GetCompany)

	g.GET("/prospects", h.ListProspects)
	g.POST("/prospects", h.SaveProspect)
	g.PUT("/prospects/:id", h.SaveProspect)
	g.DELETE("/prospects/:id", h.DeleteProspect)
	g.POST("/prospects/:id/stage", h.MoveStage)

	g.GET("/activities", h.ListActivities)
	g.POST("/activities", h.SaveActivity)
	g.PUT("/activities/:id", h.SaveActivity)
	g.DELETE("/activities/:id", h.DeleteActivity)
	g.POST("/activities/:id/complete", h.CompleteActivity)

	g.GET("/opportunities", h.ListOpportunities)
	g.POST("/opportunities", h.CreateOpportunity)

	g.GET("/team/stats", h.TeamStats)
	g.GET("/ranking", h.Ranking)
}

// Authenticate resolves the principal headers into an identity and its scope.
func (h *Handler) Authenticate(c *gin.Context) {
	p := schema.Principal{
		ID:       strings.TrimSpace(c.GetHeader(HeaderPrincipalID)),
		Email:    strings.TrimSpace(c.GetHeader(HeaderPrincipalEmail)),
		NameHint: strings.TrimSpace(c.GetHeader(HeaderPrincipalName)),
	}
	if p.ID == "" {
		h.fail(c, schema.ErrUnauthenticated)
		c.Abort()
		return
	}
	id, sc, err := h.App.Session(p)
	if err != nil {
		h.fail(c, err)
		c.Abort()
		return
	}
	c.Set(ctxIdentity, id)
	c.Set(ctxScope, sc)
	c.Next()
}

func currentScope(c *gin.Context) scope.Scope {
	return c.MustGet(ctxScope).(scope.Scope)
}

func currentIdentity(c *gin.Context) schema.Identity {
	return c.MustGet(ctxIdentity).(schema.Identity)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, schema.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, schema.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, schema.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, schema.ErrNotFound):
		status = http.StatusNotFound
	}

	body := gin.H{"error": err.Error()}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	if status == http.StatusInternalServerError && h.Log != nil {
		h.Log.Errorw("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentIdentity(c))
}

func (h *Handler) GetCompany(c *gin.Context) {
	id := currentIdentity(c)
	if id.CompanyID == "" {
		h.fail(c, schema.ErrNotFound)
		return
	}
	co, err := h.App.Companies.Get(id.CompanyID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, co)
}

func (h *Handler) ListProspects(c *gin.Context) {
	f := schema.ProspectFilter{
		Stage:    schema.Stage(c.Query("stage")),
		Priority: schema.Priority(c.Query("priority")),
		OwnerID:  c.Query("owner"),
		Query:    c.Query("q"),
	}
	out, err := scope.VisibleProspects(h.App.Store, currentScope(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) SaveProspect(c *gin.Context) {
	var in schema.ProspectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if id := c.Param("id"); id != "" {
		in.ID = id
	}
	p, err := h.App.Coordinator.CreateOrUpdateProspect(currentScope(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProspect(c *gin.Context) {
	if err := h.App.Coordinator.DeleteProspect(currentScope(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) MoveStage(c *gin.Context) {
	var input struct {
		Stage schema.Stage `json:"stage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.App.Coordinator.MovePipelineStage(currentScope(c), c.Param("id"), input.Stage)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListActivities(c *gin.Context) {
	f := schema.ActivityFilter{
		ProspectID: c.Query("prospectId"),
		OwnerID:    c.Query("owner"),
	}
	if raw := c.Query("completed"); raw != "" {
		done, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(c, &schema.ValidationError{Field: "completed", Reason: "must be true or false"})
			return
		}
		f.Completed = &done
	}
	out, err := scope.VisibleActivities(h.App.Store, currentScope(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) SaveActivity(c *gin.Context) {
	var in schema.ActivityInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if id := c.Param("id"); id != "" {
		in.ID = id
	}
	a, err := h.App.Coordinator.CreateOrUpdateActivity(currentScope(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteActivity(c *gin.Context) {
	if err := h.App.Coordinator.DeleteActivity(currentScope(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) CompleteActivity(c *gin.Context) {
	var input struct {
		Completed *bool `json:"completed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.App.Coordinator.ToggleActivityComplete(currentScope(c), c.Param("id"), *input.Completed)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) ListOpportunities(c *gin.Context) {
	f := schema.OpportunityFilter{
		FunnelType: schema.FunnelType(c.Query("funnel")),
		OwnerID:    c.Query("owner"),
	}
	out, err := scope.VisibleOpportunities(h.App.Store, currentScope(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateOpportunity(c *gin.Context) {
	var in schema.OpportunityInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o, err := h.App.Coordinator.CreateOpportunity(currentScope(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) TeamStats(c *gin.Context) {
	out, err := h.App.Stats.TeamStats(currentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Ranking(c *gin.Context) {
	r, err := h.App.Stats.Ranking(currentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
