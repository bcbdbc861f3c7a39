package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/controllers"
	"github.com/sopt-makers/sopt-push-notification/middlewares"
)

// SetupRouter wires the push and feedback endpoints.
func SetupRouter(cfg *config.Config, push *controllers.PushController, feedback *controllers.FeedbackController) *gin.Engine {
	r := gin.Default()

	v1 := r.Group("/v1")
	{
		// Push actions, routed by the action header.
		v1.POST("/push", middlewares.AuthMiddleware(cfg.JWTSecret), push.Handle)

		// Delivery-failure feedback from the push transport.
		v1.POST("/feedback", feedback.Handle)
	}

	return r
}
