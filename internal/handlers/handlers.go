package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"perfview/internal/analytics"
	"perfview/internal/api"
	"perfview/internal/codes"
	"perfview/internal/middleware"
	"perfview/internal/session"
	"perfview/internal/upload"
)

type HandlerSet struct {
	log       zerolog.Logger
	sessions  *session.Manager
	api       *api.Client
	codes     *codes.Service
	analytics *analytics.Service
	syllabus  *upload.Workflow
	answers   *upload.Workflow
}

func NewHandlerSet(log zerolog.Logger, sessions *session.Manager, client *api.Client) HandlerSet {
	return HandlerSet{
		log:       log,
		sessions:  sessions,
		api:       client,
		codes:     codes.NewService(client, log),
		analytics: analytics.NewService(client, log),
		syllabus:  upload.New("syllabus", log),
		answers:   upload.New("answer-sheet", log),
	}
}

func (h HandlerSet) Register(router *gin.Engine) {
	router.GET("/healthz", h.Health)
	router.GET("/", h.Root)
	router.GET("/login", h.LoginForm)
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)

	teacher := router.Group("/teacher")
	teacher.Use(middleware.Guard(h.sessions, session.RoleTeacher))
	teacher.GET("", h.TeacherDashboard)
	teacher.POST("/generate-code", h.GenerateCode)
	teacher.POST("/upload-syllabus", h.UploadSyllabus)

	student := router.Group("/student")
	student.Use(middleware.Guard(h.sessions, session.RoleStudent))
	student.GET("", h.StudentDashboard)
	student.POST("/upload-answer", h.UploadAnswer)
}

// dashboardPath is where a signed-in user belongs.
func dashboardPath(role session.Role) string {
	if role == session.RoleTeacher {
		return "/teacher"
	}
	return "/student"
}
