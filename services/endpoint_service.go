package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/models"
)

// SNSAPI is the slice of the SNS client the push services use.
type SNSAPI interface {
	CreatePlatformEndpoint(ctx context.Context, params *awssns.CreatePlatformEndpointInput, optFns ...func(*awssns.Options)) (*awssns.CreatePlatformEndpointOutput, error)
	DeleteEndpoint(ctx context.Context, params *awssns.DeleteEndpointInput, optFns ...func(*awssns.Options)) (*awssns.DeleteEndpointOutput, error)
	Subscribe(ctx context.Context, params *awssns.SubscribeInput, optFns ...func(*awssns.Options)) (*awssns.SubscribeOutput, error)
	Unsubscribe(ctx context.Context, params *awssns.UnsubscribeInput, optFns ...func(*awssns.Options)) (*awssns.UnsubscribeOutput, error)
	Publish(ctx context.Context, params *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// EndpointService wraps creation and teardown of platform endpoints and
// their broadcast-topic subscriptions. Creation fails loudly because the
// caller must not write the index without valid handles; teardown is
// best-effort because by then the index has already moved on.
type EndpointService struct {
	sns SNSAPI
	cfg *config.Config
}

// NewEndpointService builds an endpoint registrar over the SNS client.
func NewEndpointService(sns SNSAPI, cfg *config.Config) *EndpointService {
	return &EndpointService{sns: sns, cfg: cfg}
}

// CreateEndpoint registers a device token as a delivery target on its
// platform's application and returns the endpoint ARN. The user id rides
// along as opaque endpoint metadata when present.
func (e *EndpointService) CreateEndpoint(ctx context.Context, deviceToken string, platform models.Platform, userID string) (string, error) {
	input := &awssns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(e.platformApplicationArn(platform)),
		Token:                  aws.String(deviceToken),
	}
	if userID != "" && userID != models.UnknownUser {
		input.CustomUserData = aws.String(userID)
	}

	out, err := e.sns.CreatePlatformEndpoint(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEndpointCreation, err)
	}
	if out.EndpointArn == nil || *out.EndpointArn == "" {
		return "", ErrEndpointCreation
	}
	return *out.EndpointArn, nil
}

// Subscribe attaches the endpoint to the global broadcast topic.
func (e *EndpointService) Subscribe(ctx context.Context, endpointArn string) (string, error) {
	out, err := e.sns.Subscribe(ctx, &awssns.SubscribeInput{
		TopicArn: aws.String(e.cfg.AllTopicArn),
		Protocol: aws.String("application"),
		Endpoint: aws.String(endpointArn),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubscription, err)
	}
	if out.SubscriptionArn == nil || *out.SubscriptionArn == "" {
		return "", ErrSubscription
	}
	return *out.SubscriptionArn, nil
}

// DeleteEndpoint removes the remote endpoint. Transport errors are
// logged, never raised: a dangling remote endpoint beats blocking the
// caller after the index record is already gone.
func (e *EndpointService) DeleteEndpoint(ctx context.Context, endpointArn string) {
	if _, err := e.sns.DeleteEndpoint(ctx, &awssns.DeleteEndpointInput{
		EndpointArn: aws.String(endpointArn),
	}); err != nil {
		log.Error().Err(err).Str("endpointArn", endpointArn).Msg("sns delete endpoint failed")
	}
}

// Unsubscribe removes the broadcast subscription, best-effort like
// DeleteEndpoint.
func (e *EndpointService) Unsubscribe(ctx context.Context, subscriptionArn string) {
	if _, err := e.sns.Unsubscribe(ctx, &awssns.UnsubscribeInput{
		SubscriptionArn: aws.String(subscriptionArn),
	}); err != nil {
		log.Error().Err(err).Str("subscriptionArn", subscriptionArn).Msg("sns unsubscribe failed")
	}
}

func (e *EndpointService) platformApplicationArn(platform models.Platform) string {
	if platform == models.PlatformIOS {
		return e.cfg.PlatformApplicationIOS
	}
	return e.cfg.PlatformApplicationAnd
}
