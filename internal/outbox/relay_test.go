package outbox

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"job-recommender/internal/config"
	"job-recommender/internal/storage"
	"job-recommender/internal/storage/models"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	args := m.Called(exchangeName, routingKey, string(message), persistent)
	return args.Error(0)
}

func TestRelayOptions(t *testing.T) {
	r := NewMessageRelay(nil, &mockPublisher{}, WithBatchSize(3), WithPollingInterval(0))
	assert.Equal(t, 3, r.batchSize)
	assert.Equal(t, defaultPollingInterval, r.pollingInterval, "非正数间隔保持默认值")
}

func TestRelayStopIsIdempotent(t *testing.T) {
	r := NewMessageRelay(nil, &mockPublisher{})
	r.Start()
	r.Stop()
	r.Stop()
}

func TestProcessPendingMessagesIntegration(t *testing.T) {
	host := os.Getenv("TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("未设置 TEST_MYSQL_HOST，跳过outbox集成测试")
	}
	cfg := config.Default().MySQL
	cfg.Host = host
	if port, err := strconv.Atoi(os.Getenv("TEST_MYSQL_PORT")); err == nil {
		cfg.Port = port
	}
	cfg.Username = os.Getenv("TEST_MYSQL_USER")
	cfg.Password = os.Getenv("TEST_MYSQL_PASSWORD")
	cfg.Database = "acc_portal_test"
	cfg.LogLevel = 1

	m, err := storage.NewMySQL(&cfg)
	require.NoError(t, err)
	defer m.Close()
	db := m.DB()
	require.NoError(t, db.Exec("DELETE FROM outbox_messages").Error)

	ok := models.OutboxMessage{AggregateID: "a", EventType: "recommendation.issued", Payload: `{"n":1}`,
		TargetExchange: "recommendation.events", TargetRoutingKey: "recommendation.issued", Status: models.OutboxStatusPending}
	bad := ok
	bad.AggregateID = "b"
	bad.Payload = `{"n":2}`
	bad.RetryCount = maxRetryCount - 1
	require.NoError(t, db.Create(&ok).Error)
	require.NoError(t, db.Create(&bad).Error)

	pub := &mockPublisher{}
	pub.On("PublishMessage", "recommendation.events", "recommendation.issued", `{"n":1}`, true).Return(nil)
	pub.On("PublishMessage", "recommendation.events", "recommendation.issued", `{"n":2}`, true).Return(errors.New("channel closed"))

	relay := NewMessageRelay(db, pub)
	n, err := relay.ProcessPendingMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	pub.AssertExpectations(t)

	var sent, failed models.OutboxMessage
	require.NoError(t, db.First(&sent, ok.ID).Error)
	require.NoError(t, db.First(&failed, bad.ID).Error)
	assert.Equal(t, models.OutboxStatusSent, sent.Status)
	assert.NotNil(t, sent.ProcessedAt)
	assert.Equal(t, models.OutboxStatusFailed, failed.Status)
	assert.Equal(t, "channel closed", failed.ErrorMessage)

	n, err = relay.ProcessPendingMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
