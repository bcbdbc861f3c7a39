package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/models"
)

// DynamoAPI is the slice of the DynamoDB client the token index uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// TokenIndex maintains the bidirectional device/user association as
// paired records in one table. The two directional writes are issued
// together but are not transactional; a crash between them can leave a
// dangling half-pair that the paircheck tool reports.
type TokenIndex struct {
	db    DynamoAPI
	table string
}

// NewTokenIndex builds a token index over the given DynamoDB client.
func NewTokenIndex(db DynamoAPI, cfg *config.Config) *TokenIndex {
	return &TokenIndex{db: db, table: cfg.TokenTable}
}

// Put writes both directional records for one active registration. Any
// existing record at either key is overwritten.
func (t *TokenIndex) Put(ctx context.Context, userID, deviceToken string, platform models.Platform, endpointArn, subscriptionArn string) error {
	createdAt := time.Now().UTC().Format(time.RFC3339)

	byUser := models.TokenRecord{
		PK:              models.UserKey(userID),
		SK:              models.DeviceKey(deviceToken),
		Entity:          models.EntityUser,
		Platform:        platform,
		DeviceToken:     deviceToken,
		EndpointArn:     endpointArn,
		SubscriptionArn: subscriptionArn,
		CreatedAt:       createdAt,
	}
	byDevice := byUser
	byDevice.PK, byDevice.SK = byUser.SK, byUser.PK
	byDevice.Entity = models.EntityDeviceToken

	errs := runAll(
		func() error { return t.putRecord(ctx, byUser) },
		func() error { return t.putRecord(ctx, byDevice) },
	)
	if err := firstError(errs); err != nil {
		return fmt.Errorf("put token pair: %w", err)
	}
	return nil
}

func (t *TokenIndex) putRecord(ctx context.Context, rec models.TokenRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return err
	}
	_, err = t.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.table),
		Item:      item,
	})
	return err
}

// Get looks up the by-device record for (deviceToken, userID). An empty
// userID targets the unknown-user sentinel.
func (t *TokenIndex) Get(ctx context.Context, deviceToken, userID string) (*models.TokenRecord, error) {
	out, err := t.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.table),
		Key: map[string]ddbtypes.AttributeValue{
			"pk": &ddbtypes.AttributeValueMemberS{Value: models.DeviceKey(deviceToken)},
			"sk": &ddbtypes.AttributeValueMemberS{Value: models.UserKey(userID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrTokenNotFound
	}
	return unmarshalRecord(out.Item)
}

// QueryByUser resolves the single active device record for a user.
func (t *TokenIndex) QueryByUser(ctx context.Context, userID string) (*models.TokenRecord, error) {
	return t.queryOne(ctx, models.UserKey(userID), "d#")
}

// QueryByDevice resolves the single active owner record for a device.
func (t *TokenIndex) QueryByDevice(ctx context.Context, deviceToken string) (*models.TokenRecord, error) {
	return t.queryOne(ctx, models.DeviceKey(deviceToken), "u#")
}

func (t *TokenIndex) queryOne(ctx context.Context, pk, skPrefix string) (*models.TokenRecord, error) {
	out, err := t.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(t.table),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :sk)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: pk},
			":sk": &ddbtypes.AttributeValueMemberS{Value: skPrefix},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query token: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrTokenNotFound
	}
	return unmarshalRecord(out.Items[0])
}

// Delete removes both directional records and returns the prior
// by-device record, whose ARNs the orchestrator needs for teardown.
// Deleting an absent pair is ErrTokenNotFound, a normal miss.
func (t *TokenIndex) Delete(ctx context.Context, deviceToken, userID string) (*models.TokenRecord, error) {
	var byDeviceOld map[string]ddbtypes.AttributeValue

	errs := runAll(
		func() error {
			_, err := t.deleteRecord(ctx, models.UserKey(userID), models.DeviceKey(deviceToken))
			return err
		},
		func() error {
			old, err := t.deleteRecord(ctx, models.DeviceKey(deviceToken), models.UserKey(userID))
			byDeviceOld = old
			return err
		},
	)
	if err := firstError(errs); err != nil {
		return nil, fmt.Errorf("delete token pair: %w", err)
	}
	if len(byDeviceOld) == 0 {
		return nil, ErrTokenNotFound
	}
	return unmarshalRecord(byDeviceOld)
}

func (t *TokenIndex) deleteRecord(ctx context.Context, pk, sk string) (map[string]ddbtypes.AttributeValue, error) {
	out, err := t.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.table),
		Key: map[string]ddbtypes.AttributeValue{
			"pk": &ddbtypes.AttributeValueMemberS{Value: pk},
			"sk": &ddbtypes.AttributeValueMemberS{Value: sk},
		},
		ReturnValues: ddbtypes.ReturnValueAllOld,
	})
	if err != nil {
		return nil, err
	}
	return out.Attributes, nil
}

func unmarshalRecord(item map[string]ddbtypes.AttributeValue) (*models.TokenRecord, error) {
	var rec models.TokenRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal token record: %w", err)
	}
	if _, _, err := models.SplitKey(rec.PK); err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	if _, _, err := models.SplitKey(rec.SK); err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	return &rec, nil
}
