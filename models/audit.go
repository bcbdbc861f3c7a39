package models

// NotificationType distinguishes delivery channels in audit history.
type NotificationType string

const (
	NotificationPush  NotificationType = "push"
	NotificationEmail NotificationType = "email"
	NotificationSMS   NotificationType = "sms"
)

// AuditStatus marks which phase of an action an audit entry records.
type AuditStatus string

const (
	AuditStart   AuditStatus = "start"
	AuditSuccess AuditStatus = "success"
	AuditFail    AuditStatus = "fail"
)

// AuditEntry is the payload for one action-phase history record. The
// audit sink persists it; the core never reads it back.
type AuditEntry struct {
	TransactionID    string
	Action           Action
	Status           AuditStatus
	Service          Service
	Platform         Platform
	NotificationType NotificationType
	DeviceToken      string
	UserIDs          []string
	MessageIDs       []string
	Title            string
	Content          string
	DeepLink         string
	WebLink          string
	ErrorCode        string
	ErrorMessage     string
}
