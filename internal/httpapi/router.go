package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kbchat/internal/common"
	"github.com/suPer8Hu/kbchat/internal/httpapi/handlers"
	"github.com/suPer8Hu/kbchat/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.CORS())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "Not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "Method not allowed")
	})

	r.OPTIONS("/ping", middleware.Preflight(http.MethodGet))
	r.GET("/ping", h.Ping)

	// auth
	authPreflight := middleware.Preflight(http.MethodPost)
	for _, p := range []string{"/auth", "/auth/register", "/auth/login"} {
		r.OPTIONS(p, authPreflight)
	}
	r.POST("/auth", h.Auth)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	// documents and chat (X-User-Id required)
	docsPreflight := middleware.Preflight(http.MethodGet, http.MethodPost, http.MethodDelete)
	r.OPTIONS("/documents", docsPreflight)
	r.OPTIONS("/documents/:id", docsPreflight)
	r.OPTIONS("/chat", middleware.Preflight(http.MethodPost))

	userGroup := r.Group("/")
	userGroup.Use(middleware.UserIdentity())
	userGroup.GET("/documents", h.ListDocuments)
	userGroup.POST("/documents", h.UploadDocument)
	userGroup.DELETE("/documents", h.DeleteDocument)
	userGroup.DELETE("/documents/:id", h.DeleteDocument)
	userGroup.POST("/chat", h.Chat)
	return r
}
