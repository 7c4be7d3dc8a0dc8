package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"faceattend/internal/auth"
)

func (s *Server) loginForm(c *gin.Context) {
	if _, err := s.Sessions.Current(c); err == nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	s.render(c, http.StatusOK, "login.html", nil)
}

func (s *Server) login(c *gin.Context) {
	if _, err := s.Sessions.Current(c); err == nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	username := c.PostForm("username")
	admin, err := s.Admins.Authenticate(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.Logger.Error("authenticate failed", zap.Error(err))
		}
		addFlash(c, "danger", "Login unsuccessful. Please check username and password.")
		s.render(c, http.StatusUnauthorized, "login.html", gin.H{"Username": username})
		return
	}
	if _, err := s.Sessions.Login(c, admin.Username); err != nil {
		s.Logger.Error("issue session failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "could not start session")
		return
	}
	s.Logger.Info("admin signed in", zap.String("username", admin.Username))
	c.Redirect(http.StatusFound, "/dashboard")
}

func (s *Server) logout(c *gin.Context) {
	if err := s.Sessions.Logout(c); err != nil {
		s.Logger.Warn("revoke session failed", zap.Error(err))
	}
	c.Redirect(http.StatusFound, "/login")
}
