package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/models"
)

// SendInput carries one send action into the dispatcher.
type SendInput struct {
	TransactionID string
	Service       models.Service
	UserIDs       []string
	Title         string
	Content       string
	Category      models.Category
	DeepLink      string
	WebLink       string
}

// SendAllInput carries one broadcast action into the dispatcher.
type SendAllInput struct {
	TransactionID string
	Service       models.Service
	Title         string
	Content       string
	Category      models.Category
	DeepLink      string
	WebLink       string
}

// DispatchService fans one logical send out across per-user deliveries,
// or publishes one broadcast to the all-users topic. Per-target failures
// degrade that target out of the result; only failures resolving the
// input set abort the whole send.
type DispatchService struct {
	index   *TokenIndex
	sns     SNSAPI
	factory *MessageFactory
	audit   *AuditService
	webhook *WebhookService
	cfg     *config.Config
	newID   func() string
}

// NewDispatchService wires the fan-out dispatcher.
func NewDispatchService(index *TokenIndex, sns SNSAPI, factory *MessageFactory, audit *AuditService, webhook *WebhookService, cfg *config.Config) *DispatchService {
	return &DispatchService{
		index:   index,
		sns:     sns,
		factory: factory,
		audit:   audit,
		webhook: webhook,
		cfg:     cfg,
		newID:   uuid.NewString,
	}
}

// SendToUsers resolves each requested user to its live device and
// dispatches to every resolved endpoint in parallel. Users without an
// active registration are skipped; the returned message ids cover only
// the targets the transport accepted. An empty resolved set returns
// immediately with no dispatch, audit, or webhook.
func (d *DispatchService) SendToUsers(ctx context.Context, in SendInput) ([]string, error) {
	records, err := d.resolveUsers(ctx, in.UserIDs)
	if err != nil {
		return nil, fmt.Errorf("send push error: %w", err)
	}
	if len(records) == 0 {
		return []string{}, nil
	}

	id := d.newID()
	msg := MessageInput{
		ID:       id,
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		DeepLink: in.DeepLink,
		WebLink:  in.WebLink,
	}

	messageIDs := d.dispatchAll(ctx, records, msg)

	d.audit.Record(ctx, models.AuditEntry{
		TransactionID:    in.TransactionID,
		Action:           models.ActionSend,
		Status:           models.AuditSuccess,
		Service:          in.Service,
		Platform:         models.PlatformNone,
		NotificationType: models.NotificationPush,
		UserIDs:          prefixUserIDs(in.UserIDs),
		MessageIDs:       messageIDs,
		Title:            in.Title,
		Content:          in.Content,
		DeepLink:         in.DeepLink,
		WebLink:          in.WebLink,
	})

	if err := d.webhook.NotifySendSuccess(ctx, in.Service, WebhookPayload{
		UserIDs:    in.UserIDs,
		Title:      in.Title,
		Content:    in.Content,
		Category:   in.Category,
		DeepLink:   in.DeepLink,
		WebLink:    in.WebLink,
		MessageIDs: messageIDs,
		Type:       WebhookSend,
	}); err != nil {
		log.Error().Err(err).Str("transactionId", in.TransactionID).Msg("send webhook failed")
	}

	return messageIDs, nil
}

// SendToAll publishes one multi-platform envelope to the broadcast
// topic and returns the single message id the transport produced.
func (d *DispatchService) SendToAll(ctx context.Context, in SendAllInput) (string, error) {
	id := d.newID()
	payload, err := d.factory.All(MessageInput{
		ID:       id,
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		DeepLink: in.DeepLink,
		WebLink:  in.WebLink,
	})
	if err != nil {
		return "", fmt.Errorf("send push error: %w", err)
	}

	out, err := d.sns.Publish(ctx, &awssns.PublishInput{
		TopicArn:         aws.String(d.cfg.AllTopicArn),
		Message:          aws.String(payload),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	if out.MessageId == nil || *out.MessageId == "" {
		return "", ErrBroadcastFailed
	}
	messageID := *out.MessageId

	d.audit.Record(ctx, models.AuditEntry{
		TransactionID:    in.TransactionID,
		Action:           models.ActionSendAll,
		Status:           models.AuditSuccess,
		Service:          in.Service,
		Platform:         models.PlatformNone,
		NotificationType: models.NotificationPush,
		UserIDs:          []string{"all"},
		MessageIDs:       []string{messageID},
		Title:            in.Title,
		Content:          in.Content,
		DeepLink:         in.DeepLink,
		WebLink:          in.WebLink,
	})

	if err := d.webhook.NotifySendSuccess(ctx, in.Service, WebhookPayload{
		Title:      in.Title,
		Content:    in.Content,
		Category:   in.Category,
		DeepLink:   in.DeepLink,
		WebLink:    in.WebLink,
		MessageIDs: []string{messageID},
		Type:       WebhookSendAll,
	}); err != nil {
		log.Error().Err(err).Str("transactionId", in.TransactionID).Msg("sendAll webhook failed")
	}

	return messageID, nil
}

// resolveUsers queries every requested user concurrently. A user with
// no active device is skipped; any other resolution failure aborts the
// send before anything is dispatched.
func (d *DispatchService) resolveUsers(ctx context.Context, userIDs []string) ([]*models.TokenRecord, error) {
	records := make([]*models.TokenRecord, len(userIDs))
	tasks := make([]func() error, len(userIDs))
	for i, userID := range userIDs {
		tasks[i] = func() error {
			rec, err := d.index.QueryByUser(ctx, userID)
			if errors.Is(err, ErrTokenNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		}
	}
	if err := firstError(runAll(tasks...)); err != nil {
		return nil, err
	}

	resolved := records[:0]
	for _, rec := range records {
		if rec != nil {
			resolved = append(resolved, rec)
		}
	}
	return resolved, nil
}

// dispatchAll publishes to every resolved endpoint concurrently and
// joins all outcomes. A failed target only drops out of the result; it
// never cancels its siblings.
func (d *DispatchService) dispatchAll(ctx context.Context, records []*models.TokenRecord, msg MessageInput) []string {
	results := make([]string, len(records))
	tasks := make([]func() error, len(records))
	for i, rec := range records {
		tasks[i] = func() error {
			messageID, err := d.publishToEndpoint(ctx, rec, msg)
			if err != nil {
				log.Error().Err(err).
					Str("endpointArn", rec.EndpointArn).
					Str("platform", string(rec.Platform)).
					Msg("push dispatch failed")
				return nil
			}
			results[i] = messageID
			return nil
		}
	}
	runAll(tasks...)

	messageIDs := make([]string, 0, len(results))
	for _, id := range results {
		if id != "" {
			messageIDs = append(messageIDs, id)
		}
	}
	return messageIDs
}

func (d *DispatchService) publishToEndpoint(ctx context.Context, rec *models.TokenRecord, msg MessageInput) (string, error) {
	payload, err := d.factory.ForPlatform(rec.Platform, msg)
	if err != nil {
		return "", err
	}

	out, err := d.sns.Publish(ctx, &awssns.PublishInput{
		TargetArn:        aws.String(rec.EndpointArn),
		Message:          aws.String(payload),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return "", err
	}
	if out.MessageId == nil || *out.MessageId == "" {
		return "", fmt.Errorf("publish returned no message id")
	}
	return *out.MessageId, nil
}

func prefixUserIDs(userIDs []string) []string {
	prefixed := make([]string, len(userIDs))
	for i, id := range userIDs {
		prefixed[i] = models.UserKey(id)
	}
	return prefixed
}
