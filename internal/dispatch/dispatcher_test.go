package dispatch

import (
	"context"
	"errors"
	"sort"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orghub/internal/common"
	"orghub/internal/dbmysql"
	"orghub/internal/pushreg"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	args := m.Called(ctx, message)
	if resp := args.Get(0); resp != nil {
		return resp.(*messaging.BatchResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) AddToken(ctx context.Context, userID, token, platform string) error {
	args := m.Called(ctx, userID, token, platform)
	return args.Error(0)
}

func (m *MockTokenStore) TokensByUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if tokens := args.Get(0); tokens != nil {
		return tokens.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTokenStore) RemoveToken(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type MockDeliveryLogRepository struct {
	mock.Mock
}

func (m *MockDeliveryLogRepository) Create(ctx context.Context, entry *dbmysql.DeliveryLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDeliveryLogRepository) RecentByOrganization(ctx context.Context, organizationID string, limit int) ([]*dbmysql.DeliveryLog, error) {
	args := m.Called(ctx, organizationID, limit)
	if entries := args.Get(0); entries != nil {
		return entries.([]*dbmysql.DeliveryLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func billEvent() common.DispatchEvent {
	return common.DispatchEvent{
		Category:        common.CategoryBill,
		OrganizationID:  "org-1",
		ActorID:         "alice",
		AudienceUserIDs: []string{"alice", "bob", "carol"},
		Title:           "New bill",
		Body:            "Rent for September",
	}
}

func successResponse(n int) *messaging.BatchResponse {
	responses := make([]*messaging.SendResponse, n)
	for i := range responses {
		responses[i] = &messaging.SendResponse{Success: true}
	}
	return &messaging.BatchResponse{SuccessCount: n, Responses: responses}
}

func TestDispatchExcludesActorAndUnionsTokens(t *testing.T) {
	sender := new(MockSender)
	tokens := new(MockTokenStore)
	tokens.On("TokensByUser", mock.Anything, "bob").Return([]string{"t1", "t2"}, nil)
	tokens.On("TokensByUser", mock.Anything, "carol").Return([]string{"t2", "t3"}, nil)

	var sent *messaging.MulticastMessage
	sender.On("SendMulticast", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(*messaging.MulticastMessage)
		}).
		Return(successResponse(3), nil)

	dispatcher := NewDispatcher(sender, pushreg.NewRegistry(tokens), nil)
	result, err := dispatcher.Dispatch(context.Background(), billEvent())

	require.NoError(t, err)
	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)

	require.NotNil(t, sent)
	got := append([]string(nil), sent.Tokens...)
	sort.Strings(got)
	assert.Equal(t, []string{"t1", "t2", "t3"}, got, "duplicate t2 absorbed, actor's devices never resolved")
	assert.Equal(t, "bill", sent.Data["category"])
	assert.Equal(t, "org-1", sent.Data["organization_id"])
	assert.Equal(t, "alice", sent.Data["actor_id"])

	tokens.AssertNotCalled(t, "TokensByUser", mock.Anything, "alice")
}

func TestDispatchEmptyAudienceIsNoop(t *testing.T) {
	sender := new(MockSender)
	dispatcher := NewDispatcher(sender, pushreg.NewRegistry(new(MockTokenStore)), nil)

	event := billEvent()
	event.AudienceUserIDs = []string{"alice"} // only the actor

	result, err := dispatcher.Dispatch(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, common.DispatchResult{}, result)
	sender.AssertNotCalled(t, "SendMulticast", mock.Anything, mock.Anything)
}

func TestDispatchNoTokensIsNoop(t *testing.T) {
	sender := new(MockSender)
	tokens := new(MockTokenStore)
	tokens.On("TokensByUser", mock.Anything, mock.Anything).Return([]string{}, nil)

	dispatcher := NewDispatcher(sender, pushreg.NewRegistry(tokens), nil)
	result, err := dispatcher.Dispatch(context.Background(), billEvent())

	assert.NoError(t, err)
	assert.Equal(t, common.DispatchResult{}, result)
	sender.AssertNotCalled(t, "SendMulticast", mock.Anything, mock.Anything)
}

func TestDispatchToleratesPartialFailure(t *testing.T) {
	sender := new(MockSender)
	tokens := new(MockTokenStore)
	tokens.On("TokensByUser", mock.Anything, "bob").Return([]string{"t1"}, nil)
	tokens.On("TokensByUser", mock.Anything, "carol").Return([]string{"t2"}, nil)

	response := &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 1,
		Responses: []*messaging.SendResponse{
			{Success: true},
			{Success: false, Error: errors.New("upstream timeout")},
		},
	}
	sender.On("SendMulticast", mock.Anything, mock.Anything).Return(response, nil)

	dispatcher := NewDispatcher(sender, pushreg.NewRegistry(tokens), nil)
	dispatcher.staleToken = func(err error) bool { return false }

	result, err := dispatcher.Dispatch(context.Background(), billEvent())

	require.NoError(t, err, "partial failure is not a unit failure")
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	tokens.AssertNotCalled(t, "RemoveToken", mock.Anything, mock.Anything)
}

func TestDispatchEvictsStaleTokens(t *testing.T) {
	sender := new(MockSender)
	tokens := new(MockTokenStore)
	tokens.On("TokensByUser", mock.Anything, "bob").Return([]string{"t-live", "t-dead"}, nil)
	tokens.On("TokensByUser", mock.Anything, "carol").Return([]string{}, nil)
	tokens.On("RemoveToken", mock.Anything, "t-dead").Return(nil)

	staleErr := errors.New("registration-token-not-registered")
	response := &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 1,
		Responses: []*messaging.SendResponse{
			{Success: true},
			{Success: false, Error: staleErr},
		},
	}
	sender.On("SendMulticast", mock.Anything, mock.Anything).Return(response, nil)

	dispatcher := NewDispatcher(sender, pushreg.NewRegistry(tokens), nil)
	dispatcher.staleToken = func(err error) bool { return errors.Is(err, staleErr) }

	_, err := dispatcher.Dispatch(context.Background(), billEvent())

	require.NoError(t, err)
	tokens.AssertCalled(t, "RemoveToken", mock.Anything, "t-dead")
	tokens.AssertNotCalled(t, "RemoveToken", mock.Anything, "t-live")
}

func TestDispatchRecordsDeliveryLog(t *testing.T) {
	sender := new(MockSender)
	tokens := new(MockTokenStore)
	tokens.On("TokensByUser", mock.Anything, "bob").Return([]string{"t1"}, nil)
	tokens.On("TokensByUser", mock.Anything, "carol").Return([]string{"t2"}, nil)
	sender.On("SendMulticast", mock.Anything, mock.Anything).Return(successResponse(2), nil)

	logs := new(MockDeliveryLogRepository)
	var recorded *dbmysql.DeliveryLog
	logs.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			recorded = args.Get(1).(*dbmysql.DeliveryLog)
		}).
		Return(nil)

	dispatcher := NewDispatcher(sender, pushreg.NewRegistry(tokens), logs)
	_, err := dispatcher.Dispatch(context.Background(), billEvent())

	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.NotEmpty(t, recorded.ID)
	assert.Equal(t, "bill", recorded.Category)
	assert.Equal(t, "org-1", recorded.OrganizationID)
	assert.Equal(t, 2, recorded.Recipients)
	assert.Equal(t, 2, recorded.TokenCount)
	assert.Equal(t, 2, recorded.SuccessCount)
}

func TestDispatchTokenLookupFailureSkipsUser(t *testing.T) {
	sender := new(MockSender)
	tokens := new(MockTokenStore)
	tokens.On("TokensByUser", mock.Anything, "bob").Return(nil, errors.New("store down"))
	tokens.On("TokensByUser", mock.Anything, "carol").Return([]string{"t2"}, nil)

	var sent *messaging.MulticastMessage
	sender.On("SendMulticast", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(*messaging.MulticastMessage)
		}).
		Return(successResponse(1), nil)

	dispatcher := NewDispatcher(sender, pushreg.NewRegistry(tokens), nil)
	_, err := dispatcher.Dispatch(context.Background(), billEvent())

	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, []string{"t2"}, sent.Tokens)
}

func TestDispatchSendFailure(t *testing.T) {
	sender := new(MockSender)
	tokens := new(MockTokenStore)
	tokens.On("TokensByUser", mock.Anything, mock.Anything).Return([]string{"t1"}, nil)
	sender.On("SendMulticast", mock.Anything, mock.Anything).Return(nil, errors.New("network down"))

	dispatcher := NewDispatcher(sender, pushreg.NewRegistry(tokens), nil)
	_, err := dispatcher.Dispatch(context.Background(), billEvent())

	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestDispatchWithTransportDisabled(t *testing.T) {
	tokens := new(MockTokenStore)
	tokens.On("TokensByUser", mock.Anything, mock.Anything).Return([]string{"t1"}, nil)

	dispatcher := NewDispatcher(nil, pushreg.NewRegistry(tokens), nil)
	result, err := dispatcher.Dispatch(context.Background(), billEvent())

	assert.NoError(t, err)
	assert.Equal(t, common.DispatchResult{}, result)
}
