package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/sopt-makers/sopt-push-notification/config"
)

func testConfig() *config.Config {
	return &config.Config{
		TokenTable:             "notification-test",
		AllTopicArn:            "arn:aws:sns:test:topic/all",
		PlatformApplicationIOS: "arn:aws:sns:test:app/APNS/test-iOS",
		PlatformApplicationAnd: "arn:aws:sns:test:app/GCM/test-Android",
	}
}

// fakeDynamo is an in-memory stand-in for the DynamoDB client, keyed on
// pk|sk like the real table.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]ddbtypes.AttributeValue

	putErr    error
	getErr    error
	queryErr  error
	deleteErr error
	scanErr   error

	putCalls    int
	deleteCalls int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]ddbtypes.AttributeValue{}}
}

func itemKey(item map[string]ddbtypes.AttributeValue) string {
	return stringAttr(item, "pk") + "|" + stringAttr(item, "sk")
}

func stringAttr(item map[string]ddbtypes.AttributeValue, name string) string {
	if s, ok := item[name].(*ddbtypes.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[itemKey(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	item, ok := f.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	key := itemKey(params.Key)
	old := f.items[key]
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{Attributes: old}, nil
}

// Query supports the one condition shape the index uses:
// pk = :pk AND begins_with(sk, :sk).
func (f *fakeDynamo) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	pk := params.ExpressionAttributeValues[":pk"].(*ddbtypes.AttributeValueMemberS).Value
	skPrefix := params.ExpressionAttributeValues[":sk"].(*ddbtypes.AttributeValueMemberS).Value

	var out dynamodb.QueryOutput
	for _, item := range f.items {
		if stringAttr(item, "pk") == pk && strings.HasPrefix(stringAttr(item, "sk"), skPrefix) {
			out.Items = append(out.Items, item)
			if params.Limit != nil && len(out.Items) >= int(*params.Limit) {
				break
			}
		}
	}
	return &out, nil
}

func (f *fakeDynamo) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var out dynamodb.ScanOutput
	for _, item := range f.items {
		if params.FilterExpression != nil {
			entity := stringAttr(item, "entity")
			if entity != "user" && entity != "deviceToken" {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	return &out, nil
}

// tokenRecords returns the stored non-history records keyed pk|sk.
func (f *fakeDynamo) tokenRecords() map[string]map[string]ddbtypes.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := map[string]map[string]ddbtypes.AttributeValue{}
	for key, item := range f.items {
		if !strings.HasPrefix(key, "h#") {
			records[key] = item
		}
	}
	return records
}

// historyRecords returns the stored history records.
func (f *fakeDynamo) historyRecords() []map[string]ddbtypes.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []map[string]ddbtypes.AttributeValue
	for key, item := range f.items {
		if strings.HasPrefix(key, "h#") {
			records = append(records, item)
		}
	}
	return records
}

// auditStatuses collects the status field of every history record.
func auditStatuses(f *fakeDynamo) []string {
	var statuses []string
	for _, rec := range f.historyRecords() {
		statuses = append(statuses, stringAttr(rec, "status"))
	}
	return statuses
}

// containsSetMember reports whether a record's string-set field holds
// the given value.
func containsSetMember(item map[string]ddbtypes.AttributeValue, name, value string) bool {
	set, ok := item[name].(*ddbtypes.AttributeValueMemberSS)
	if !ok {
		return false
	}
	for _, member := range set.Value {
		if member == value {
			return true
		}
	}
	return false
}

// fakeSNS is an in-memory stand-in for the SNS client.
type fakeSNS struct {
	mu sync.Mutex

	createErr    error
	subscribeErr error
	publishErr   error

	// failTargets makes Publish fail for specific target ARNs; emptyID
	// makes it return success without a message id.
	failTargets map[string]bool
	emptyID     bool

	createCalls      int
	subscribeCalls   int
	publishCalls     int
	deletedEndpoints []string
	unsubscribed     []string
	published        []awssns.PublishInput
}

func newFakeSNS() *fakeSNS {
	return &fakeSNS{failTargets: map[string]bool{}}
}

func (f *fakeSNS) CreatePlatformEndpoint(_ context.Context, params *awssns.CreatePlatformEndpointInput, _ ...func(*awssns.Options)) (*awssns.CreatePlatformEndpointOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	arn := fmt.Sprintf("arn:aws:sns:test:endpoint/%s/%d", aws.ToString(params.Token), f.createCalls)
	return &awssns.CreatePlatformEndpointOutput{EndpointArn: aws.String(arn)}, nil
}

func (f *fakeSNS) Subscribe(_ context.Context, params *awssns.SubscribeInput, _ ...func(*awssns.Options)) (*awssns.SubscribeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	arn := fmt.Sprintf("%s:sub/%d", aws.ToString(params.TopicArn), f.subscribeCalls)
	return &awssns.SubscribeOutput{SubscriptionArn: aws.String(arn)}, nil
}

func (f *fakeSNS) DeleteEndpoint(_ context.Context, params *awssns.DeleteEndpointInput, _ ...func(*awssns.Options)) (*awssns.DeleteEndpointOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedEndpoints = append(f.deletedEndpoints, aws.ToString(params.EndpointArn))
	return &awssns.DeleteEndpointOutput{}, nil
}

func (f *fakeSNS) Unsubscribe(_ context.Context, params *awssns.UnsubscribeInput, _ ...func(*awssns.Options)) (*awssns.UnsubscribeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, aws.ToString(params.SubscriptionArn))
	return &awssns.UnsubscribeOutput{}, nil
}

func (f *fakeSNS) Publish(_ context.Context, params *awssns.PublishInput, _ ...func(*awssns.Options)) (*awssns.PublishOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishCalls++
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	if params.TargetArn != nil && f.failTargets[aws.ToString(params.TargetArn)] {
		return nil, fmt.Errorf("endpoint disabled")
	}
	f.published = append(f.published, *params)
	if f.emptyID {
		return &awssns.PublishOutput{}, nil
	}
	return &awssns.PublishOutput{MessageId: aws.String(fmt.Sprintf("m-%d", f.publishCalls))}, nil
}

// fakeSweeperSNS serves the sweeper's listing calls with fixed pages.
type fakeSweeperSNS struct {
	fakeSNS
	subscriptions []snstypes.Subscription
	endpoints     []snstypes.Endpoint
}

func (f *fakeSweeperSNS) ListSubscriptionsByTopic(_ context.Context, _ *awssns.ListSubscriptionsByTopicInput, _ ...func(*awssns.Options)) (*awssns.ListSubscriptionsByTopicOutput, error) {
	return &awssns.ListSubscriptionsByTopicOutput{Subscriptions: f.subscriptions}, nil
}

func (f *fakeSweeperSNS) ListEndpointsByPlatformApplication(_ context.Context, _ *awssns.ListEndpointsByPlatformApplicationInput, _ ...func(*awssns.Options)) (*awssns.ListEndpointsByPlatformApplicationOutput, error) {
	return &awssns.ListEndpointsByPlatformApplicationOutput{Endpoints: f.endpoints}, nil
}
