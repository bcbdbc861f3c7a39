package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/models"
)

// ScanAPI is the slice of the DynamoDB client the pair checker uses.
type ScanAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// PairIssue describes one registration that violates the paired-record
// invariant.
type PairIssue struct {
	PK     string `json:"pk"`
	SK     string `json:"sk"`
	Reason string `json:"reason"`
}

// PairReport summarizes one consistency check over the token table.
type PairReport struct {
	Pairs  int         `json:"pairs"`
	Issues []PairIssue `json:"issues"`
}

// Clean reports whether no issue was found.
func (r PairReport) Clean() bool { return len(r.Issues) == 0 }

// ConsistencyService checks the paired-record invariant: every active
// registration must exist as a by-user and a by-device record carrying
// identical handles. The paired writes are not transactional, so a crash
// between them leaves a dangling half. There is no repair path; this
// check only surfaces the damage.
type ConsistencyService struct {
	db    ScanAPI
	table string
}

// NewConsistencyService builds a pair checker over the token table.
func NewConsistencyService(db ScanAPI, cfg *config.Config) *ConsistencyService {
	return &ConsistencyService{db: db, table: cfg.TokenTable}
}

// CheckPairs scans the full table and matches every by-device record
// against its by-user mirror and vice versa.
func (c *ConsistencyService) CheckPairs(ctx context.Context) (PairReport, error) {
	records, err := c.scanTokenRecords(ctx)
	if err != nil {
		return PairReport{}, err
	}

	byKey := make(map[string]models.TokenRecord, len(records))
	for _, rec := range records {
		byKey[rec.PK+"|"+rec.SK] = rec
	}

	var report PairReport
	for _, rec := range records {
		mirror, ok := byKey[rec.SK+"|"+rec.PK]
		if !ok {
			report.Issues = append(report.Issues, PairIssue{
				PK:     rec.PK,
				SK:     rec.SK,
				Reason: "dangling half-pair: mirror record missing",
			})
			continue
		}
		if strings.HasPrefix(rec.PK, "d#") {
			// Count and compare each pair once, from the by-device side.
			report.Pairs++
			if mirror.EndpointArn != rec.EndpointArn || mirror.SubscriptionArn != rec.SubscriptionArn {
				report.Issues = append(report.Issues, PairIssue{
					PK:     rec.PK,
					SK:     rec.SK,
					Reason: "pair handles diverge between directions",
				})
			}
		}
	}
	return report, nil
}

// scanTokenRecords pages through the table, skipping history rows.
func (c *ConsistencyService) scanTokenRecords(ctx context.Context) ([]models.TokenRecord, error) {
	var records []models.TokenRecord
	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := c.db.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(c.table),
			FilterExpression: aws.String("entity IN (:user, :device)"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":user":   &ddbtypes.AttributeValueMemberS{Value: string(models.EntityUser)},
				":device": &ddbtypes.AttributeValueMemberS{Value: string(models.EntityDeviceToken)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan token table: %w", err)
		}
		for _, item := range out.Items {
			var rec models.TokenRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("unmarshal scanned record: %w", err)
			}
			records = append(records, rec)
		}
		if out.LastEvaluatedKey == nil {
			return records, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
