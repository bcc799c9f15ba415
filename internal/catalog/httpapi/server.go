package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"examist/internal/catalog"
)

const apiKey = "examist.api"

// ServerOption configures NewHandler.
type ServerOption func(*server)

// WithServerLogger logs failed requests to logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceName names the server in trace spans.
func WithServiceName(name string) ServerOption {
	return func(s *server) { s.service = name }
}

type server struct {
	auth    catalog.Authenticator
	logger  *slog.Logger
	service string
}

// NewHandler serves auth over the REST routes Client calls.
func NewHandler(auth catalog.Authenticator, opts ...ServerOption) http.Handler {
	s := &server{auth: auth, logger: slog.Default(), service: "examist-api"}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(s.service))
	router.POST("/login", s.login)

	authed := router.Group("/", s.authorize)
	authed.GET("/auth", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	authed.GET("/profile/courses", s.getCourses)
	authed.GET("/course/search", s.searchCourses)
	authed.GET("/course/:code", s.getCourse)
	authed.GET("/course/:code/popular", s.getPopular)
	authed.GET("/course/:code/paper/:year/:period", s.getPaper)
	authed.GET("/course/:code/paper/:year/:period/document", s.getPaperContents)
	authed.GET("/comments/:entity", s.getComments)
	authed.POST("/comment/:entity", s.createComment)
	authed.DELETE("/comment/:entity/:id", s.deleteComment)
	return router
}

func (s *server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, catalog.ErrInvalid):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": err.Error()})
}

func (s *server) login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "malformed login body"})
		return
	}
	out, err := s.auth.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) authorize(c *gin.Context) {
	h, err := s.auth.Connect(c.Request.Context(), c.GetHeader(AuthHeader))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Set(apiKey, h)
	c.Next()
}

func handle(c *gin.Context) catalog.API {
	return c.MustGet(apiKey).(catalog.API)
}

func (s *server) getCourses(c *gin.Context) {
	out, err := handle(c).GetCourses(c.Request.Context())
	s.respond(c, out, err)
}

func (s *server) searchCourses(c *gin.Context) {
	out, err := handle(c).SearchCourses(c.Request.Context(), c.Query("q"))
	s.respond(c, out, err)
}

func (s *server) getCourse(c *gin.Context) {
	out, err := handle(c).GetCourse(c.Request.Context(), c.Param("code"))
	s.respond(c, out, err)
}

func (s *server) getPopular(c *gin.Context) {
	out, err := handle(c).GetPopular(c.Request.Context(), c.Param("code"))
	s.respond(c, out, err)
}

func (s *server) getPaper(c *gin.Context) {
	year, ok := s.intParam(c, "year")
	if !ok {
		return
	}
	out, err := handle(c).GetPaper(c.Request.Context(), c.Param("code"), int(year), c.Param("period"))
	s.respond(c, out, err)
}

func (s *server) getPaperContents(c *gin.Context) {
	year, ok := s.intParam(c, "year")
	if !ok {
		return
	}
	out, err := handle(c).GetPaperContents(c.Request.Context(), c.Param("code"), int(year), c.Param("period"))
	s.respond(c, out, err)
}

func (s *server) getComments(c *gin.Context) {
	entity, ok := s.intParam(c, "entity")
	if !ok {
		return
	}
	out, err := handle(c).GetComments(c.Request.Context(), entity)
	s.respond(c, out, err)
}

func (s *server) createComment(c *gin.Context) {
	entity, ok := s.intParam(c, "entity")
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
		Parent  *int64 `json:"parent"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "malformed comment body"})
		return
	}
	var parent int64
	if body.Parent != nil {
		parent = *body.Parent
	}
	out, err := handle(c).CreateComment(c.Request.Context(), entity, body.Content, parent)
	s.respond(c, out, err)
}

func (s *server) deleteComment(c *gin.Context) {
	entity, ok := s.intParam(c, "entity")
	if !ok {
		return
	}
	id, ok := s.intParam(c, "id")
	if !ok {
		return
	}
	out, err := handle(c).DeleteComment(c.Request.Context(), entity, id)
	s.respond(c, out, err)
}

func (s *server) respond(c *gin.Context, out any, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) intParam(c *gin.Context, name string) (int64, bool) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": name + " must be an integer"})
		return 0, false
	}
	return n, true
}
