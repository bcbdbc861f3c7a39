package models

// Action names the logical operation carried by a push request.
type Action string

const (
	ActionRegister Action = "register"
	ActionCancel   Action = "cancel"
	ActionSend     Action = "send"
	ActionSendAll  Action = "sendAll"
)

// ValidAction reports whether s names a known action.
func ValidAction(s string) bool {
	switch Action(s) {
	case ActionRegister, ActionCancel, ActionSend, ActionSendAll:
		return true
	}
	return false
}

// Service identifies the calling (ordering) service.
type Service string

const (
	ServiceCrew       Service = "crew"
	ServiceOfficial   Service = "official"
	ServiceOperation  Service = "operation"
	ServicePlayground Service = "playground"
	ServiceApp        Service = "app"
)

// ValidService reports whether s names a known ordering service.
func ValidService(s string) bool {
	switch Service(s) {
	case ServiceCrew, ServiceOfficial, ServiceOperation, ServicePlayground, ServiceApp:
		return true
	}
	return false
}

// Category classifies a push message for the receiving clients.
type Category string

const (
	CategoryNotice Category = "NOTICE"
	CategoryNews   Category = "NEWS"
	CategoryNone   Category = "NONE"
)

// ValidCategory reports whether s names a known category.
func ValidCategory(s string) bool {
	switch Category(s) {
	case CategoryNotice, CategoryNews, CategoryNone:
		return true
	}
	return false
}

// RequestHeader is the block every push request carries in HTTP headers.
type RequestHeader struct {
	TransactionID string
	Service       Service
	Platform      Platform
	Action        Action
}

// RegisterTokenRequest is the body for register and cancel actions.
type RegisterTokenRequest struct {
	DeviceToken string   `json:"deviceToken" binding:"required"`
	UserIDs     []string `json:"userIds"`
}

// SendPushRequest is the body for the send action.
type SendPushRequest struct {
	UserIDs  []string `json:"userIds" binding:"required"`
	Title    string   `json:"title" binding:"required"`
	Content  string   `json:"content" binding:"required"`
	Category Category `json:"category" binding:"required"`
	DeepLink string   `json:"deepLink"`
	WebLink  string   `json:"webLink"`
}

// SendAllPushRequest is the body for the sendAll action.
type SendAllPushRequest struct {
	Title    string   `json:"title" binding:"required"`
	Content  string   `json:"content" binding:"required"`
	Category Category `json:"category" binding:"required"`
	DeepLink string   `json:"deepLink"`
	WebLink  string   `json:"webLink"`
}

// FeedbackRecord is one delivery-failure notification from the push
// transport, carrying the device token it could no longer reach.
type FeedbackRecord struct {
	Token     string `json:"token" binding:"required"`
	MessageID string `json:"messageId"`
}

// FeedbackRequest is the body for the delivery-feedback endpoint.
type FeedbackRequest struct {
	Records []FeedbackRecord `json:"records" binding:"required"`
}
