package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/models"
)

// SweeperSNSAPI is the slice of the SNS client the sweeper uses.
type SweeperSNSAPI interface {
	ListSubscriptionsByTopic(ctx context.Context, params *awssns.ListSubscriptionsByTopicInput, optFns ...func(*awssns.Options)) (*awssns.ListSubscriptionsByTopicOutput, error)
	ListEndpointsByPlatformApplication(ctx context.Context, params *awssns.ListEndpointsByPlatformApplicationInput, optFns ...func(*awssns.Options)) (*awssns.ListEndpointsByPlatformApplicationOutput, error)
	DeleteEndpoint(ctx context.Context, params *awssns.DeleteEndpointInput, optFns ...func(*awssns.Options)) (*awssns.DeleteEndpointOutput, error)
	Unsubscribe(ctx context.Context, params *awssns.UnsubscribeInput, optFns ...func(*awssns.Options)) (*awssns.UnsubscribeOutput, error)
}

// SweeperService bulk-removes a platform's registrations: every
// broadcast subscription, every platform endpoint, and the token pairs
// behind them. Both listings are snapshotted to JSON files before any
// destructive call so an interrupted sweep can be audited by hand.
type SweeperService struct {
	sns    SweeperSNSAPI
	db     DynamoAPI
	cfg    *config.Config
	outDir string
}

// NewSweeperService builds a sweeper writing snapshots into outDir.
func NewSweeperService(sns SweeperSNSAPI, db DynamoAPI, cfg *config.Config, outDir string) *SweeperService {
	return &SweeperService{sns: sns, db: db, cfg: cfg, outDir: outDir}
}

// Sweep removes every registration for one platform. Individual delete
// failures are logged and skipped; only listing failures abort.
func (s *SweeperService) Sweep(ctx context.Context, platform models.Platform) error {
	subscriptions, err := s.fetchSubscriptions(ctx, platform)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if err := s.snapshot("subscriptions.json", subscriptions); err != nil {
		return err
	}
	s.unsubscribeAll(ctx, subscriptions)

	endpoints, err := s.fetchEndpoints(ctx, platform)
	if err != nil {
		return fmt.Errorf("list endpoints: %w", err)
	}
	if err := s.snapshot("endpoints.json", endpoints); err != nil {
		return err
	}
	s.deleteEndpoints(ctx, endpoints)
	s.deleteTokenPairs(ctx, endpoints)

	return nil
}

func (s *SweeperService) fetchSubscriptions(ctx context.Context, platform models.Platform) ([]snstypes.Subscription, error) {
	var collected []snstypes.Subscription
	var nextToken *string
	for {
		out, err := s.sns.ListSubscriptionsByTopic(ctx, &awssns.ListSubscriptionsByTopicInput{
			TopicArn:  aws.String(s.cfg.AllTopicArn),
			NextToken: nextToken,
		})
		if err != nil {
			return nil, err
		}
		for _, sub := range out.Subscriptions {
			// Endpoint ARNs embed the platform application name.
			if sub.Endpoint != nil && strings.Contains(*sub.Endpoint, string(platform)) {
				collected = append(collected, sub)
			}
		}
		if out.NextToken == nil {
			return collected, nil
		}
		nextToken = out.NextToken
	}
}

func (s *SweeperService) fetchEndpoints(ctx context.Context, platform models.Platform) ([]snstypes.Endpoint, error) {
	applicationArn := s.cfg.PlatformApplicationAnd
	if platform == models.PlatformIOS {
		applicationArn = s.cfg.PlatformApplicationIOS
	}

	var collected []snstypes.Endpoint
	var nextToken *string
	for {
		out, err := s.sns.ListEndpointsByPlatformApplication(ctx, &awssns.ListEndpointsByPlatformApplicationInput{
			PlatformApplicationArn: aws.String(applicationArn),
			NextToken:              nextToken,
		})
		if err != nil {
			return nil, err
		}
		collected = append(collected, out.Endpoints...)
		if out.NextToken == nil {
			return collected, nil
		}
		nextToken = out.NextToken
	}
}

func (s *SweeperService) unsubscribeAll(ctx context.Context, subscriptions []snstypes.Subscription) {
	for _, sub := range subscriptions {
		if sub.SubscriptionArn == nil {
			continue
		}
		if _, err := s.sns.Unsubscribe(ctx, &awssns.UnsubscribeInput{
			SubscriptionArn: sub.SubscriptionArn,
		}); err != nil {
			log.Error().Err(err).Str("subscriptionArn", *sub.SubscriptionArn).Msg("sweep unsubscribe failed")
			continue
		}
		log.Info().Str("subscriptionArn", *sub.SubscriptionArn).Msg("unsubscribed")
	}
}

func (s *SweeperService) deleteEndpoints(ctx context.Context, endpoints []snstypes.Endpoint) {
	for _, endpoint := range endpoints {
		if endpoint.EndpointArn == nil {
			continue
		}
		if _, err := s.sns.DeleteEndpoint(ctx, &awssns.DeleteEndpointInput{
			EndpointArn: endpoint.EndpointArn,
		}); err != nil {
			log.Error().Err(err).Str("endpointArn", *endpoint.EndpointArn).Msg("sweep delete endpoint failed")
			continue
		}
		log.Info().Str("endpointArn", *endpoint.EndpointArn).Msg("endpoint deleted")
	}
}

// deleteTokenPairs removes both directional records for every endpoint,
// reading the device token and owning user from endpoint attributes.
func (s *SweeperService) deleteTokenPairs(ctx context.Context, endpoints []snstypes.Endpoint) {
	for _, endpoint := range endpoints {
		deviceToken := endpoint.Attributes["Token"]
		if deviceToken == "" {
			continue
		}
		userKey := models.UserKey(endpoint.Attributes["CustomUserData"])
		deviceKey := models.DeviceKey(deviceToken)

		for _, key := range [][2]string{{userKey, deviceKey}, {deviceKey, userKey}} {
			if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.cfg.TokenTable),
				Key: map[string]ddbtypes.AttributeValue{
					"pk": &ddbtypes.AttributeValueMemberS{Value: key[0]},
					"sk": &ddbtypes.AttributeValueMemberS{Value: key[1]},
				},
			}); err != nil {
				log.Error().Err(err).Str("pk", key[0]).Str("sk", key[1]).Msg("sweep token delete failed")
			}
		}
	}
}

func (s *SweeperService) snapshot(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", name, err)
	}
	path := filepath.Join(s.outDir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s snapshot: %w", name, err)
	}
	return nil
}
