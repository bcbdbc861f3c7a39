package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/models"
	"github.com/sopt-makers/sopt-push-notification/services"
)

// FeedbackController receives the push transport's delivery-failure
// notifications and unregisters the tokens it can no longer reach.
type FeedbackController struct {
	registration *services.RegistrationService
}

// NewFeedbackController wires the feedback controller.
func NewFeedbackController(registration *services.RegistrationService) *FeedbackController {
	return &FeedbackController{registration: registration}
}

// Handle processes a batch of delivery-failure records. Records are
// handled independently: one failing teardown never blocks the rest.
func (fc *FeedbackController) Handle(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewFailResponse(http.StatusBadRequest, models.MsgInvalidRequest))
		return
	}

	for _, record := range req.Records {
		if err := fc.registration.UnregisterFromFeedback(c.Request.Context(), record.Token, record.MessageID); err != nil {
			log.Error().Err(err).Str("deviceToken", record.Token).Msg("feedback unregister failed")
		}
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse(http.StatusNoContent, models.MsgNoContent, nil))
}
