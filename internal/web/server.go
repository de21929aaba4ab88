package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/LJTian/AlzNews/internal/controller"
	"github.com/LJTian/AlzNews/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionCookie    = "alz_session"
	sessionCookieAge = 30 * 24 * 3600
	ctxControllerKey = "controller"
	initialLoadLimit = 15 * time.Second
)

type Options struct {
	// Sources 下拉框里可选的新闻来源
	Sources       []string
	BasicAuthUser string
	BasicAuthPass string
	Logger        *zap.Logger
}

type Server struct {
	sessions *session.Manager
	opts     Options
	logger   *zap.Logger
}

func NewServer(sessions *session.Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{sessions: sessions, opts: opts, logger: opts.Logger}
}

// Engine 构建完整的 gin 引擎
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), zapLogger(s.logger))
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if s.opts.BasicAuthUser != "" && s.opts.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(s.opts.BasicAuthUser, s.opts.BasicAuthPass))
	}
	r.SetHTMLTemplate(pageTemplate)
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	visitor := r.Group("/", s.sessionMiddleware())
	{
		visitor.GET("/", s.index)
	}

	api := r.Group("/api", s.sessionMiddleware())
	{
		api.GET("/view", s.getView)
		api.GET("/events", s.events)
		api.POST("/keyword", s.setKeyword)
		api.POST("/sort/toggle", s.toggleSort)
		api.POST("/sources", s.toggleSource)
		api.DELETE("/sources/:source", s.removeSource)
		api.POST("/page", s.goToPage)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// sessionMiddleware 根据 cookie 找到访客的控制器，没有则新建并完成首屏加载
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || !session.ValidID(id) {
			id = session.NewID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, id, sessionCookieAge, "/", "", false, true)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), initialLoadLimit)
		defer cancel()
		ctrl, err := s.sessions.Get(ctx, id)
		if err != nil {
			s.logger.Error("web: get session failed", zap.String("session", id), zap.Error(err))
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		c.Set(ctxControllerKey, ctrl)
		c.Next()
	}
}

func controllerFrom(c *gin.Context) *controller.Controller {
	return c.MustGet(ctxControllerKey).(*controller.Controller)
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func (s *Server) index(c *gin.Context) {
	v := controllerFrom(c).View()
	c.HTML(http.StatusOK, "index.html", newPageData(v, s.opts.Sources))
}

func (s *Server) getView(c *gin.Context) {
	c.JSON(http.StatusOK, newViewPayload(controllerFrom(c).View()))
}

// accepted 操作已受理，返回当前快照；结果稍后通过 /api/events 推送
func accepted(c *gin.Context, ctrl *controller.Controller) {
	c.JSON(http.StatusAccepted, newViewPayload(ctrl.View()))
}

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

func (s *Server) setKeyword(c *gin.Context) {
	var req keywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ctrl := controllerFrom(c)
	ctrl.SetKeyword(req.Keyword)
	accepted(c, ctrl)
}

func (s *Server) toggleSort(c *gin.Context) {
	ctrl := controllerFrom(c)
	ctrl.ToggleSort()
	accepted(c, ctrl)
}

type sourceRequest struct {
	Source   string `json:"source" binding:"required"`
	Included bool   `json:"included"`
}

func (s *Server) toggleSource(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ctrl := controllerFrom(c)
	ctrl.ToggleSource(req.Source, req.Included)
	accepted(c, ctrl)
}

func (s *Server) removeSource(c *gin.Context) {
	ctrl := controllerFrom(c)
	ctrl.RemoveSource(c.Param("source"))
	accepted(c, ctrl)
}

// pageRequest 页码范围由控制器校验，缺省为 0 同样返回 invalid_page
type pageRequest struct {
	Page int `json:"page"`
}

func (s *Server) goToPage(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ctrl := controllerFrom(c)
	if err := ctrl.GoToPage(req.Page); err != nil {
		if errors.Is(err, controller.ErrInvalidPage) {
			abortJSON(c, http.StatusBadRequest, "invalid_page", err.Error())
			return
		}
		abortJSON(c, http.StatusConflict, "session_closed", err.Error())
		return
	}
	accepted(c, ctrl)
}

// events 以 SSE 推送快照，连接建立时先推送一次当前状态
func (s *Server) events(c *gin.Context) {
	ctrl := controllerFrom(c)
	ch, stop := ctrl.Subscribe()
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("view", newViewPayload(ctrl.View()))
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case v, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("view", newViewPayload(v))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
