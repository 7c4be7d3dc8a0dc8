// Package web serves the admin dashboard, the JSON API and the video feed.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"faceattend/internal/attendance"
	"faceattend/internal/auth"
	"faceattend/internal/face"
	"faceattend/internal/httpmiddleware"
	"faceattend/internal/logging"
	"faceattend/internal/stream"
	"faceattend/internal/students"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxUpload bounds multipart bodies for photo uploads.
const maxUpload = 10 << 20

// HealthCheck is one dependency reported by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps wires the handlers.
type Deps struct {
	Students   *students.Service
	Attendance *attendance.Service
	Admins     *auth.Admins
	Sessions   *auth.Manager
	Recognizer face.Recognizer
	Gallery    stream.Matcher
	// Streamer is nil when no camera is configured.
	Streamer *stream.Streamer
	Checks   []HealthCheck
	Logger   *zap.Logger

	RateLimitPerMin int
	LoginRatePerMin int
	CORSOrigins     []string
}

// Server holds the handlers and parsed templates.
type Server struct {
	Deps
	pages map[string]*template.Template
	now   func() time.Time
}

// New parses the templates and returns a server.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Server{Deps: deps, pages: pages, now: time.Now}, nil
}

// Router builds the gin engine with every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware(s.Logger, "/healthz", "/metrics", "/video_feed"))
	r.Use(cors.New(s.corsConfig()))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewLimiter("global", s.RateLimitPerMin, s.RateLimitPerMin).GinMiddleware())
	r.MaxMultipartMemory = maxUpload

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	loginLimit := httpmiddleware.NewLimiter("login", s.LoginRatePerMin, s.LoginRatePerMin).GinMiddleware()
	r.GET("/login", s.loginForm)
	r.POST("/login", loginLimit, s.login)
	r.GET("/logout", s.logout)

	admin := r.Group("/", s.Sessions.RequireAdmin())
	{
		admin.GET("/", s.dashboard)
		admin.GET("/dashboard", s.dashboard)
		admin.GET("/mark_attendance", s.markAttendance)
		admin.POST("/process_attendance", s.processAttendance)
		admin.GET("/video_feed", s.videoFeed)
		admin.POST("/export_attendance", s.exportAttendance)

		admin.GET("/student_management", s.studentManagement)
		admin.GET("/add_student", s.addStudentForm)
		admin.POST("/add_student", s.addStudent)
		admin.GET("/edit_student/:id", s.editStudentForm)
		admin.POST("/edit_student/:id", s.editStudent)
		admin.POST("/delete_student/:id", s.deleteStudent)
	}

	api := r.Group("/api/v1", s.Sessions.RequireAdmin())
	{
		api.GET("/attendance/today", s.apiToday)
		api.GET("/students", s.apiStudents)
	}
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.CORSOrigins) > 0 {
		cfg.AllowOrigins = s.CORSOrigins
	} else {
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	return cfg
}

// render writes a page wrapped in the shared layout, consuming pending flashes.
func (s *Server) render(c *gin.Context, status int, page string, data gin.H) {
	tmpl, ok := s.pages[page]
	if !ok {
		c.String(http.StatusInternalServerError, "unknown page %s", page)
		return
	}
	if data == nil {
		data = gin.H{}
	}
	data["Flashes"] = popFlashes(c)
	if claims, ok := auth.ClaimsFrom(c); ok {
		data["Admin"] = claims.Subject
	}
	c.Render(status, render.HTML{Template: tmpl, Name: "layout", Data: data})
}

func parsePages() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"clock": func(t time.Time, loc *time.Location) string { return t.In(loc).Format("15:04:05") },
	}
	names := []string{
		"login.html", "dashboard.html", "mark_attendance.html",
		"student_management.html", "add_student.html", "edit_student.html",
	}
	pages := make(map[string]*template.Template, len(names))
	for _, n := range names {
		t, err := template.New(n).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+n)
		if err != nil {
			return nil, err
		}
		pages[n] = t
	}
	return pages, nil
}
