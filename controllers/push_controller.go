package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/models"
	"github.com/sopt-makers/sopt-push-notification/services"
)

// PushController dispatches validated push requests into the core by
// the action header, the thin routing layer in front of the
// registration orchestrator and the fan-out dispatcher.
type PushController struct {
	registration *services.RegistrationService
	dispatch     *services.DispatchService
}

// NewPushController wires the push controller.
func NewPushController(registration *services.RegistrationService, dispatch *services.DispatchService) *PushController {
	return &PushController{registration: registration, dispatch: dispatch}
}

// Handle routes one push request by its action header.
func (pc *PushController) Handle(c *gin.Context) {
	header, ok := parseHeader(c)
	if !ok {
		c.JSON(http.StatusBadRequest, models.NewFailResponse(http.StatusBadRequest, models.MsgInvalidRequest))
		return
	}

	switch header.Action {
	case models.ActionRegister:
		pc.register(c, header)
	case models.ActionCancel:
		pc.cancel(c, header)
	case models.ActionSend:
		pc.send(c, header)
	case models.ActionSendAll:
		pc.sendAll(c, header)
	default:
		c.JSON(http.StatusBadRequest, models.NewFailResponse(http.StatusBadRequest, models.MsgInvalidRequest))
	}
}

func (pc *PushController) register(c *gin.Context, header models.RequestHeader) {
	var req models.RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewFailResponse(http.StatusBadRequest, models.MsgInvalidRequest))
		return
	}

	result, err := pc.registration.Register(c.Request.Context(), services.RegisterInput{
		TransactionID: header.TransactionID,
		Service:       header.Service,
		Platform:      header.Platform,
		DeviceToken:   req.DeviceToken,
		UserIDs:       req.UserIDs,
	})
	if err != nil {
		log.Error().Err(err).Str("transactionId", header.TransactionID).Msg("register failed")
		c.JSON(http.StatusInternalServerError, models.NewFailResponse(http.StatusInternalServerError, models.MsgInternalServerError))
		return
	}

	message := models.MsgTokenRegistered
	if result == services.ResultDuplicate {
		message = models.MsgDuplicatedToken
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(http.StatusOK, message, nil))
}

func (pc *PushController) cancel(c *gin.Context, header models.RequestHeader) {
	var req models.RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewFailResponse(http.StatusBadRequest, models.MsgInvalidRequest))
		return
	}

	result, err := pc.registration.Cancel(c.Request.Context(), services.RegisterInput{
		TransactionID: header.TransactionID,
		Service:       header.Service,
		Platform:      header.Platform,
		DeviceToken:   req.DeviceToken,
		UserIDs:       req.UserIDs,
	})
	if err != nil {
		log.Error().Err(err).Str("transactionId", header.TransactionID).Msg("cancel failed")
		c.JSON(http.StatusInternalServerError, models.NewFailResponse(http.StatusInternalServerError, models.MsgInternalServerError))
		return
	}

	message := models.MsgTokenCanceled
	if result == services.ResultNotFound {
		message = models.MsgTokenNotExist
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(http.StatusOK, message, nil))
}

func (pc *PushController) send(c *gin.Context, header models.RequestHeader) {
	var req models.SendPushRequest
	if err := c.ShouldBindJSON(&req); err != nil || !models.ValidCategory(string(req.Category)) {
		c.JSON(http.StatusBadRequest, models.NewFailResponse(http.StatusBadRequest, models.MsgInvalidRequest))
		return
	}

	messageIDs, err := pc.dispatch.SendToUsers(c.Request.Context(), services.SendInput{
		TransactionID: header.TransactionID,
		Service:       header.Service,
		UserIDs:       req.UserIDs,
		Title:         req.Title,
		Content:       req.Content,
		Category:      req.Category,
		DeepLink:      req.DeepLink,
		WebLink:       req.WebLink,
	})
	if err != nil {
		log.Error().Err(err).Str("transactionId", header.TransactionID).Msg("send failed")
		c.JSON(http.StatusInternalServerError, models.NewFailResponse(http.StatusInternalServerError, models.MsgInternalServerError))
		return
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse(http.StatusOK, models.MsgSendSuccess, gin.H{"messageIds": messageIDs}))
}

func (pc *PushController) sendAll(c *gin.Context, header models.RequestHeader) {
	var req models.SendAllPushRequest
	if err := c.ShouldBindJSON(&req); err != nil || !models.ValidCategory(string(req.Category)) {
		c.JSON(http.StatusBadRequest, models.NewFailResponse(http.StatusBadRequest, models.MsgInvalidRequest))
		return
	}

	messageID, err := pc.dispatch.SendToAll(c.Request.Context(), services.SendAllInput{
		TransactionID: header.TransactionID,
		Service:       header.Service,
		Title:         req.Title,
		Content:       req.Content,
		Category:      req.Category,
		DeepLink:      req.DeepLink,
		WebLink:       req.WebLink,
	})
	if err != nil {
		log.Error().Err(err).Str("transactionId", header.TransactionID).Msg("sendAll failed")
		c.JSON(http.StatusInternalServerError, models.NewFailResponse(http.StatusInternalServerError, models.MsgInternalServerError))
		return
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse(http.StatusOK, models.MsgSendSuccess, gin.H{"messageId": messageID}))
}

// parseHeader validates the header block every push request carries.
// The platform header may be empty for send actions.
func parseHeader(c *gin.Context) (models.RequestHeader, bool) {
	header := models.RequestHeader{
		TransactionID: c.GetHeader("transactionId"),
		Service:       models.Service(c.GetHeader("service")),
		Platform:      models.Platform(c.GetHeader("platform")),
		Action:        models.Action(c.GetHeader("action")),
	}

	if header.TransactionID == "" {
		return header, false
	}
	if !models.ValidService(string(header.Service)) {
		return header, false
	}
	if !models.ValidAction(string(header.Action)) {
		return header, false
	}
	if !models.ValidPlatform(string(header.Platform)) {
		return header, false
	}
	return header, true
}
