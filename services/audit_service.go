package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/models"
)

// nullValue fills history fields that have no value for this action.
const nullValue = "NULL"

// sortKeyTimeLayout keeps millisecond precision so the start and
// success/fail entries of one action land on distinct sort keys even
// within the same second.
const sortKeyTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// historyRecord is the stored shape of one action-phase audit entry.
// History rows share the token table under the h# key space.
type historyRecord struct {
	PK               string   `dynamodbav:"pk"`
	SK               string   `dynamodbav:"sk"`
	Entity           string   `dynamodbav:"entity"`
	Title            string   `dynamodbav:"title"`
	Content          string   `dynamodbav:"content"`
	DeviceToken      string   `dynamodbav:"fcmToken"`
	WebLink          string   `dynamodbav:"webLink"`
	AppLink          string   `dynamodbav:"applink"`
	NotificationType string   `dynamodbav:"notificationType"`
	OrderServiceName string   `dynamodbav:"orderServiceName"`
	Status           string   `dynamodbav:"status"`
	Action           string   `dynamodbav:"action"`
	Platform         string   `dynamodbav:"platform"`
	UserIDs          []string `dynamodbav:"userIds,stringset"`
	MessageIDs       []string `dynamodbav:"messageIds,stringset"`
	ErrorCode        string   `dynamodbav:"errorCode"`
	ErrorMessage     string   `dynamodbav:"errorMessage"`
}

// AuditService appends one history record per action phase. The sink is
// write-only from the core's point of view, so failures are logged and
// swallowed rather than unwinding the action being audited.
type AuditService struct {
	db    DynamoAPI
	table string
	now   func() time.Time
}

// NewAuditService builds an audit sink over the DynamoDB client.
func NewAuditService(db DynamoAPI, cfg *config.Config) *AuditService {
	return &AuditService{db: db, table: cfg.TokenTable, now: time.Now}
}

// Record writes one audit entry.
func (a *AuditService) Record(ctx context.Context, entry models.AuditEntry) {
	now := a.now().UTC()

	rec := historyRecord{
		PK:               fmt.Sprintf("h#%s", now.Format("2006-01")),
		SK:               fmt.Sprintf("h#%s#%s", now.Format(sortKeyTimeLayout), entry.TransactionID),
		Entity:           string(models.EntityHistory),
		Title:            orNull(entry.Title),
		Content:          orNull(entry.Content),
		DeviceToken:      entry.DeviceToken,
		WebLink:          orNull(entry.WebLink),
		AppLink:          orNull(entry.DeepLink),
		NotificationType: string(entry.NotificationType),
		OrderServiceName: string(entry.Service),
		Status:           string(entry.Status),
		Action:           string(entry.Action),
		Platform:         string(entry.Platform),
		UserIDs:          orNullSet(entry.UserIDs),
		MessageIDs:       orNullSet(entry.MessageIDs),
		ErrorCode:        orNull(entry.ErrorCode),
		ErrorMessage:     orNull(entry.ErrorMessage),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		log.Error().Err(err).Str("transactionId", entry.TransactionID).Msg("marshal audit entry failed")
		return
	}
	if _, err := a.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item:      item,
	}); err != nil {
		log.Error().Err(err).
			Str("transactionId", entry.TransactionID).
			Str("action", string(entry.Action)).
			Str("status", string(entry.Status)).
			Msg("audit write failed")
	}
}

func orNull(s string) string {
	if s == "" {
		return nullValue
	}
	return s
}

func orNullSet(ss []string) []string {
	if len(ss) == 0 {
		return []string{nullValue}
	}
	return ss
}
