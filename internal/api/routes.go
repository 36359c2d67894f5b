package api

import (
	"studybuddy/internal/api/handlers"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes sets up the API routes. The sessions middleware must already
// be installed on router.
func SetupRoutes(router *gin.Engine, handler *handlers.Handler, frontendURL string, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	router.Use(CORSMiddleware(frontendURL))
	router.Use(RequestLogger(log.Named("http")))

	router.GET("/healthz", handler.HandleHealth)

	api := router.Group("/api")
	api.Use(SessionRequired())
	{
		api.GET("/state", handler.HandleGetState)
		api.POST("/documents", handler.HandleUploadDocument) // multipart field "file"
		api.POST("/session/new", handler.HandleNewSession)
		api.PUT("/view", handler.HandleSetView)
		api.PUT("/voice", handler.HandleSetVoice)

		api.POST("/chat", handler.HandleChat) // text/event-stream
		api.POST("/speech", handler.HandleSpeech)

		api.POST("/quiz", handler.HandleGenerateQuiz)
		api.GET("/quiz", handler.HandleGetQuiz)
		api.POST("/quiz/submit", handler.HandleSubmitQuiz)
		api.POST("/quiz/finish", handler.HandleFinishQuiz)

		api.GET("/dashboard", handler.HandleDashboard)
		api.GET("/analytics", handler.HandleAnalytics)
	}
}
