package mockapi

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/LJTian/AlzNews/internal/newsapi"
	"github.com/gin-gonic/gin"
)

// Server 基于 gin 的 mock 后端，路由与真实后端一致
type Server struct {
	data *Dataset

	// Delay 可按请求注入延迟，用来复现慢请求
	Delay func(f articles.FilterState) time.Duration
	// Fail 返回非 0 时以该状态码失败
	Fail func(f articles.FilterState) int

	hits atomic.Int64
}

func NewServer(data *Dataset) *Server {
	return &Server{data: data}
}

// Hits 处理过的列表请求数
func (s *Server) Hits() int64 {
	return s.hits.Load()
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	news := r.Group("/api/news")
	{
		news.GET("/approved", s.listApproved)
		news.GET("/approved/", s.listApproved)
		news.GET("/sources", s.listSources)
	}
}

// Handler 返回完整的 http.Handler，便于 httptest.NewServer 直接使用
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(gin.Recovery())
	s.RegisterRoutes(r)
	return r
}

func (s *Server) listApproved(c *gin.Context) {
	s.hits.Add(1)
	f := newsapi.DecodeQuery(c.Request.URL.Query())

	if s.Delay != nil {
		if d := s.Delay(f); d > 0 {
			select {
			case <-time.After(d):
			case <-c.Request.Context().Done():
				return
			}
		}
	}
	if s.Fail != nil {
		if code := s.Fail(f); code != 0 {
			c.JSON(code, gin.H{"code": "mock_failure", "message": http.StatusText(code)})
			return
		}
	}

	c.JSON(http.StatusOK, s.data.Query(f).ToResponse())
}

func (s *Server) listSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.data.Sources()})
}
