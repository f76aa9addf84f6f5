package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"perfview/internal/authz"
	"perfview/internal/session"
)

// Guard gates a dashboard route on the required role. Wait renders the
// hydration placeholder instead of redirecting, so a slow start never
// flashes the login screen at someone who is already signed in. A
// missing session and a wrong role both bounce to login; the user sees
// no difference between the two.
func Guard(sessions *session.Manager, want session.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var current *session.Session
		if sess, ok := sessions.Snapshot(); ok {
			current = &sess
		}

		switch authz.Decide(current, sessions.Loading(), want) {
		case authz.Wait:
			c.HTML(http.StatusOK, "loading.html", nil)
			c.Abort()
		case authz.Redirect:
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
		case authz.Allow:
			c.Next()
		}
	}
}
