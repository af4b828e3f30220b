package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kbchat/internal/auth"
	"github.com/suPer8Hu/kbchat/internal/common"
)

const (
	actionLogin    = "login"
	actionRegister = "register"
)

type credentialsReq struct {
	Action   string `json:"action"`
	Username string `json:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" binding:"required,min=4"`
}

// Auth dispatches on "action" from the body or the query string; login is
// the default.
func (h *Handler) Auth(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Abort(c, common.BadRequest(40001, "Invalid request", err))
		return
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action == "" {
		action = strings.ToLower(c.Query("action"))
	}
	if action == actionRegister {
		h.register(c, req)
		return
	}
	h.login(c, req)
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Abort(c, common.BadRequest(40001, "Invalid request", err))
		return
	}
	h.register(c, req)
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Abort(c, common.BadRequest(40001, "Invalid request", err))
		return
	}
	h.login(c, req)
}

func (h *Handler) register(c *gin.Context, req credentialsReq) {
	sess, err := h.AuthSvc.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			common.Abort(c, common.Conflict(40901, "Username already exists"))
			return
		}
		common.Abort(c, common.DependencyError(50002, "Database operation failed", err))
		return
	}
	common.OK(c, http.StatusCreated, sessionBody(sess, "Registration successful"))
}

func (h *Handler) login(c *gin.Context, req credentialsReq) {
	sess, err := h.AuthSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			common.Abort(c, common.Unauthorized(40102, "Invalid username or password"))
			return
		}
		common.Abort(c, common.DependencyError(50002, "Database operation failed", err))
		return
	}
	common.OK(c, http.StatusOK, sessionBody(sess, "Login successful"))
}

func sessionBody(s *auth.Session, msg string) gin.H {
	return gin.H{
		"user_id":  s.UserID,
		"username": s.Username,
		"token":    s.Token,
		"message":  msg,
	}
}
