package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/controllers"
	"github.com/sopt-makers/sopt-push-notification/models"
	"github.com/sopt-makers/sopt-push-notification/routes"
	"github.com/sopt-makers/sopt-push-notification/services"
)

// memoryDB is a minimal in-memory DynamoDB for routing tests. The index
// issues its two directional writes concurrently, so access is locked.
type memoryDB struct {
	mu    sync.Mutex
	items map[string]map[string]ddbtypes.AttributeValue
}

func newMemoryDB() *memoryDB {
	return &memoryDB{items: map[string]map[string]ddbtypes.AttributeValue{}}
}

func attrS(item map[string]ddbtypes.AttributeValue, name string) string {
	if s, ok := item[name].(*ddbtypes.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (m *memoryDB) key(item map[string]ddbtypes.AttributeValue) string {
	return attrS(item, "pk") + "|" + attrS(item, "sk")
}

func (m *memoryDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[m.key(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memoryDB) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: m.items[m.key(params.Key)]}, nil
}

func (m *memoryDB) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(params.Key)
	old := m.items[key]
	delete(m.items, key)
	return &dynamodb.DeleteItemOutput{Attributes: old}, nil
}

func (m *memoryDB) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := params.ExpressionAttributeValues[":pk"].(*ddbtypes.AttributeValueMemberS).Value
	skPrefix := params.ExpressionAttributeValues[":sk"].(*ddbtypes.AttributeValueMemberS).Value
	var out dynamodb.QueryOutput
	for _, item := range m.items {
		if attrS(item, "pk") == pk && strings.HasPrefix(attrS(item, "sk"), skPrefix) {
			out.Items = append(out.Items, item)
			break
		}
	}
	return &out, nil
}

// memorySNS answers every transport call with generated handles.
type memorySNS struct {
	publishes int
}

func (m *memorySNS) CreatePlatformEndpoint(_ context.Context, params *awssns.CreatePlatformEndpointInput, _ ...func(*awssns.Options)) (*awssns.CreatePlatformEndpointOutput, error) {
	arn := "arn:test:endpoint/" + aws.ToString(params.Token)
	return &awssns.CreatePlatformEndpointOutput{EndpointArn: aws.String(arn)}, nil
}

func (m *memorySNS) Subscribe(_ context.Context, _ *awssns.SubscribeInput, _ ...func(*awssns.Options)) (*awssns.SubscribeOutput, error) {
	return &awssns.SubscribeOutput{SubscriptionArn: aws.String("arn:test:sub/1")}, nil
}

func (m *memorySNS) DeleteEndpoint(_ context.Context, _ *awssns.DeleteEndpointInput, _ ...func(*awssns.Options)) (*awssns.DeleteEndpointOutput, error) {
	return &awssns.DeleteEndpointOutput{}, nil
}

func (m *memorySNS) Unsubscribe(_ context.Context, _ *awssns.UnsubscribeInput, _ ...func(*awssns.Options)) (*awssns.UnsubscribeOutput, error) {
	return &awssns.UnsubscribeOutput{}, nil
}

func (m *memorySNS) Publish(_ context.Context, _ *awssns.PublishInput, _ ...func(*awssns.Options)) (*awssns.PublishOutput, error) {
	m.publishes++
	return &awssns.PublishOutput{MessageId: aws.String(fmt.Sprintf("m-%d", m.publishes))}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memoryDB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		TokenTable:             "notification-test",
		AllTopicArn:            "arn:test:topic/all",
		PlatformApplicationIOS: "arn:test:app/ios",
		PlatformApplicationAnd: "arn:test:app/android",
	}

	db := newMemoryDB()
	sns := &memorySNS{}

	index := services.NewTokenIndex(db, cfg)
	endpoints := services.NewEndpointService(sns, cfg)
	audit := services.NewAuditService(db, cfg)
	registration := services.NewRegistrationService(index, endpoints, audit)
	dispatch := services.NewDispatchService(index, sns, services.NewMessageFactory(), audit, services.NewWebhookService(cfg), cfg)

	router := routes.SetupRouter(cfg,
		controllers.NewPushController(registration, dispatch),
		controllers.NewFeedbackController(registration),
	)
	return router, db
}

func doPush(t *testing.T, router *gin.Engine, action string, body any) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/push", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("transactionId", "tx-1")
	req.Header.Set("service", "app")
	req.Header.Set("platform", "iOS")
	req.Header.Set("action", action)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp models.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestPushRejectsInvalidHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name    string
		mutate  func(*http.Request)
	}{
		{name: "missing transactionId", mutate: func(r *http.Request) { r.Header.Del("transactionId") }},
		{name: "unknown service", mutate: func(r *http.Request) { r.Header.Set("service", "nope") }},
		{name: "unknown action", mutate: func(r *http.Request) { r.Header.Set("action", "nope") }},
		{name: "unknown platform", mutate: func(r *http.Request) { r.Header.Set("platform", "windows") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/push", strings.NewReader(`{"deviceToken":"tok-1"}`))
			req.Header.Set("transactionId", "tx-1")
			req.Header.Set("service", "app")
			req.Header.Set("platform", "iOS")
			req.Header.Set("action", "register")
			tt.mutate(req)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPushRegisterAndCancelFlow(t *testing.T) {
	router, db := newTestRouter(t)

	w, resp := doPush(t, router, "register", models.RegisterTokenRequest{
		DeviceToken: "tok-1",
		UserIDs:     []string{"u1"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, models.MsgTokenRegistered, resp.Message)
	assert.NotNil(t, db.items["u#u1|d#tok-1"])
	assert.NotNil(t, db.items["d#tok-1|u#u1"])

	// Duplicate registration surfaces its own message.
	w, resp = doPush(t, router, "register", models.RegisterTokenRequest{
		DeviceToken: "tok-1",
		UserIDs:     []string{"u1"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MsgDuplicatedToken, resp.Message)

	w, resp = doPush(t, router, "cancel", models.RegisterTokenRequest{
		DeviceToken: "tok-1",
		UserIDs:     []string{"u1"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MsgTokenCanceled, resp.Message)
	assert.Nil(t, db.items["d#tok-1|u#u1"])

	// Canceling again is non-fatal.
	w, resp = doPush(t, router, "cancel", models.RegisterTokenRequest{
		DeviceToken: "tok-1",
		UserIDs:     []string{"u1"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MsgTokenNotExist, resp.Message)
}

func TestPushSendValidatesBody(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := doPush(t, router, "send", gin.H{"title": "T"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doPush(t, router, "send", models.SendPushRequest{
		UserIDs:  []string{"u1"},
		Title:    "T",
		Content:  "C",
		Category: "BOGUS",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPushSendReturnsMessageIDs(t *testing.T) {
	router, _ := newTestRouter(t)

	_, resp := doPush(t, router, "register", models.RegisterTokenRequest{
		DeviceToken: "tok-1",
		UserIDs:     []string{"u1"},
	})
	require.True(t, resp.Success)

	w, resp := doPush(t, router, "send", models.SendPushRequest{
		UserIDs:  []string{"u1", "u-ghost"},
		Title:    "T",
		Content:  "C",
		Category: models.CategoryNotice,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MsgSendSuccess, resp.Message)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	ids, ok := data["messageIds"].([]any)
	require.True(t, ok)
	assert.Len(t, ids, 1)
}

func TestPushSendAll(t *testing.T) {
	router, _ := newTestRouter(t)

	w, resp := doPush(t, router, "sendAll", models.SendAllPushRequest{
		Title:    "T",
		Content:  "C",
		Category: models.CategoryNews,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["messageId"])
}

func TestFeedbackUnregistersToken(t *testing.T) {
	router, db := newTestRouter(t)

	_, resp := doPush(t, router, "register", models.RegisterTokenRequest{
		DeviceToken: "tok-1",
		UserIDs:     []string{"u1"},
	})
	require.True(t, resp.Success)

	body, err := json.Marshal(models.FeedbackRequest{
		Records: []models.FeedbackRecord{{Token: "tok-1", MessageID: "m-dead"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, db.items["d#tok-1|u#u1"])
	assert.Nil(t, db.items["u#u1|d#tok-1"])
}
