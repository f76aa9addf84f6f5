package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"perfview/internal/session"
)

type loginView struct {
	Role      string
	IsTeacher bool
	IsStudent bool
	Username  string
	Code      string
	Error     string
}

func newLoginView(role session.Role) loginView {
	return loginView{
		Role:      string(role),
		IsTeacher: role == session.RoleTeacher,
		IsStudent: role == session.RoleStudent,
	}
}

func (h HandlerSet) Root(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/login")
}

// LoginForm renders the login screen, or bounces an already signed-in
// user straight to their dashboard so they cannot re-authenticate in a
// loop.
func (h HandlerSet) LoginForm(c *gin.Context) {
	if sess, ok := h.sessions.Snapshot(); ok {
		c.Redirect(http.StatusSeeOther, dashboardPath(sess.Role))
		return
	}

	role, err := session.ParseRole(c.Query("role"))
	if err != nil {
		role = session.RoleTeacher
	}
	c.HTML(http.StatusOK, "login.html", newLoginView(role))
}

func (h HandlerSet) Login(c *gin.Context) {
	if sess, ok := h.sessions.Snapshot(); ok {
		c.Redirect(http.StatusSeeOther, dashboardPath(sess.Role))
		return
	}

	role, err := session.ParseRole(c.PostForm("role"))
	if err != nil {
		view := newLoginView(session.RoleTeacher)
		view.Error = "Select a role to log in"
		c.HTML(http.StatusBadRequest, "login.html", view)
		return
	}

	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	code := ""
	if role == session.RoleStudent {
		// Codes are issued as 8 uppercase characters; normalize what
		// the student typed before sending it.
		code = strings.ToUpper(strings.TrimSpace(c.PostForm("code")))
	}

	view := newLoginView(role)
	view.Username = username
	view.Code = code

	if username == "" || password == "" {
		view.Error = "Username and password are required"
		c.HTML(http.StatusBadRequest, "login.html", view)
		return
	}
	if role == session.RoleStudent && code == "" {
		view.Error = "Login code is required for student login"
		c.HTML(http.StatusBadRequest, "login.html", view)
		return
	}

	if err := h.sessions.Login(c.Request.Context(), username, password, code); err != nil {
		view.Error = err.Error()
		c.HTML(http.StatusUnauthorized, "login.html", view)
		return
	}

	sess, _ := h.sessions.Snapshot()
	c.Redirect(http.StatusSeeOther, dashboardPath(sess.Role))
}

// Logout ends the session and discards every dashboard's state; the
// screens die with the session, so nothing of this user survives into
// the next one.
func (h HandlerSet) Logout(c *gin.Context) {
	h.sessions.Logout()
	h.codes.Reset()
	h.syllabus.Reset()
	h.answers.Reset()
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h HandlerSet) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if sess, ok := h.sessions.Snapshot(); ok {
		status["role"] = string(sess.Role)
	}
	c.JSON(http.StatusOK, status)
}
