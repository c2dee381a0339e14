package main

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookieName = "smartspend_session"
	sessionUserKey    = "userID"
	contextUserKey    = "user"
	sessionMaxAge     = 7 * 24 * 60 * 60
)

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// sessionMiddleware stores the session in a signed cookie.
func sessionMiddleware(cfg *Config) gin.HandlerFunc {
	store := cookie.NewStore(cfg.sessionKey())
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(sessionCookieName, store)
}

// requireAuth loads the session user or aborts with 401.
func (s *Server) requireAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID, ok := session.Get(sessionUserKey).(int64)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	user, err := s.store.GetUser(c.Request.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		session.Clear()
		_ = session.Save()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	if err != nil {
		s.internalError(c, err)
		c.Abort()
		return
	}

	c.Set(contextUserKey, user)
	c.Next()
}

func currentUser(c *gin.Context) User {
	return c.MustGet(contextUserKey).(User)
}

func login(c *gin.Context, user User) error {
	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	return session.Save()
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"fullName" binding:"required"`
}

// register creates an account and logs it in
func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid user data", err)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		s.internalError(c, err)
		return
	}

	user, err := s.store.CreateUser(c.Request.Context(), User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		FullName:     req.FullName,
	})
	if errors.Is(err, ErrUsernameTaken) {
		c.JSON(http.StatusConflict, gin.H{"message": "Username or email already exists"})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}

	if err := login(c, user); err != nil {
		s.internalError(c, err)
		return
	}
	s.logger.Info("User registered", "component", "auth", "user_id", user.ID)
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid login data", err)
		return
	}

	user, err := s.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.internalError(c, err)
		return
	}
	if err != nil || !checkPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
		return
	}

	if err := login(c, user); err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (s *Server) getUser(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}
