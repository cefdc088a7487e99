package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/internal/dto"
	"github.com/EiadSorour/Ticketr/internal/service"
	"github.com/EiadSorour/Ticketr/pkg/response"
)

// MockWaitlistService is a mock implementation of service.WaitlistService
type MockWaitlistService struct {
	mock.Mock
}

func (m *MockWaitlistService) Join(ctx context.Context, eventID, userID string, requested domain.TierCounts) (*service.QueueStatus, error) {
	args := m.Called(ctx, eventID, userID, requested)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.QueueStatus), args.Error(1)
}

func (m *MockWaitlistService) Status(ctx context.Context, eventID, userID string) (*service.QueueStatus, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.QueueStatus), args.Error(1)
}

// MockAllocationService is a mock implementation of service.AllocationService
type MockAllocationService struct {
	mock.Mock
}

func (m *MockAllocationService) ProcessQueue(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockAllocationService) ExpireOffer(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

func (m *MockAllocationService) ReleaseOffer(ctx context.Context, entryID, userID string) error {
	args := m.Called(ctx, entryID, userID)
	return args.Error(0)
}

func (m *MockAllocationService) RearmLiveOffers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAllocationService) ExpireDueOffers(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func setupQueueTestRouter(handler *QueueHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Stand-in for the JWT middleware: trust a header instead of a token
	router.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})

	api := router.Group("/api/v1")
	{
		api.POST("/queue/join", handler.Join)
		api.GET("/events/:id/queue/status", handler.Status)
		api.POST("/queue/entries/:id/release", handler.Release)
	}

	return router
}

func queueStatusFixture(status domain.EntryStatus, position int64) *service.QueueStatus {
	now := time.Now()
	return &service.QueueStatus{
		Entry: &domain.WaitingEntry{
			ID:         "entry-1",
			EventID:    "event-1",
			UserID:     "user-1",
			Requested:  domain.TierCounts{Silver: 2},
			Status:     status,
			ArrivalSeq: 7,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		Position: position,
	}
}

func TestQueueHandler_Join_Success(t *testing.T) {
	waitlist := new(MockWaitlistService)
	allocation := new(MockAllocationService)
	handler := NewQueueHandler(waitlist, allocation)
	router := setupQueueTestRouter(handler)

	waitlist.On("Join", mock.Anything, "event-1", "user-1", domain.TierCounts{Silver: 2}).
		Return(queueStatusFixture(domain.EntryStatusWaiting, 3), nil)

	body, _ := json.Marshal(dto.JoinQueueRequest{
		EventID:   "event-1",
		Requested: dto.TierCountsRequest{Silver: 2},
	})

	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp response.Response
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "entry-1", data["id"])
	assert.Equal(t, "waiting", data["status"])
	assert.Equal(t, float64(3), data["position"])

	waitlist.AssertExpectations(t)
}

func TestQueueHandler_Join_Unauthorized(t *testing.T) {
	waitlist := new(MockWaitlistService)
	handler := NewQueueHandler(waitlist, new(MockAllocationService))
	router := setupQueueTestRouter(handler)

	body, _ := json.Marshal(dto.JoinQueueRequest{
		EventID:   "event-1",
		Requested: dto.TierCountsRequest{Silver: 1},
	})

	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	// No X-User-ID header

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	waitlist.AssertNotCalled(t, "Join")
}

func TestQueueHandler_Join_InvalidRequest(t *testing.T) {
	waitlist := new(MockWaitlistService)
	handler := NewQueueHandler(waitlist, new(MockAllocationService))
	router := setupQueueTestRouter(handler)

	// Missing event_id
	body, _ := json.Marshal(map[string]interface{}{
		"requested": map[string]int{"silver": 1},
	})

	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	waitlist.AssertNotCalled(t, "Join")
}

func TestQueueHandler_Join_AlreadyInWaitingList(t *testing.T) {
	waitlist := new(MockWaitlistService)
	handler := NewQueueHandler(waitlist, new(MockAllocationService))
	router := setupQueueTestRouter(handler)

	waitlist.On("Join", mock.Anything, "event-1", "user-1", domain.TierCounts{Silver: 1}).
		Return(nil, domain.ErrAlreadyInWaitingList)

	body, _ := json.Marshal(dto.JoinQueueRequest{
		EventID:   "event-1",
		Requested: dto.TierCountsRequest{Silver: 1},
	})

	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp response.Response
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "ALREADY_IN_WAITING_LIST", resp.Error.Code)
}

func TestQueueHandler_Join_EventNotFound(t *testing.T) {
	waitlist := new(MockWaitlistService)
	handler := NewQueueHandler(waitlist, new(MockAllocationService))
	router := setupQueueTestRouter(handler)

	waitlist.On("Join", mock.Anything, "missing", "user-1", domain.TierCounts{Silver: 1}).
		Return(nil, domain.ErrEventNotFound)

	body, _ := json.Marshal(dto.JoinQueueRequest{
		EventID:   "missing",
		Requested: dto.TierCountsRequest{Silver: 1},
	})

	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueHandler_Join_RequestTooLarge(t *testing.T) {
	waitlist := new(MockWaitlistService)
	handler := NewQueueHandler(waitlist, new(MockAllocationService))
	router := setupQueueTestRouter(handler)

	waitlist.On("Join", mock.Anything, "event-1", "user-1", domain.TierCounts{Silver: 999}).
		Return(nil, domain.ErrCapacityExceeded)

	body, _ := json.Marshal(dto.JoinQueueRequest{
		EventID:   "event-1",
		Requested: dto.TierCountsRequest{Silver: 999},
	})

	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp response.Response
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CAPACITY_EXCEEDED", resp.Error.Code)
}

func TestQueueHandler_Status_Success(t *testing.T) {
	waitlist := new(MockWaitlistService)
	handler := NewQueueHandler(waitlist, new(MockAllocationService))
	router := setupQueueTestRouter(handler)

	st := queueStatusFixture(domain.EntryStatusOffered, 0)
	deadline := time.Now().Add(2 * time.Minute)
	st.Entry.OfferExpiresAt = &deadline

	waitlist.On("Status", mock.Anything, "event-1", "user-1").Return(st, nil)

	req, _ := http.NewRequest("GET", "/api/v1/events/event-1/queue/status", nil)
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "offered", data["status"])
	assert.NotEmpty(t, data["offer_expires_at"])
}

func TestQueueHandler_Status_NotFound(t *testing.T) {
	waitlist := new(MockWaitlistService)
	handler := NewQueueHandler(waitlist, new(MockAllocationService))
	router := setupQueueTestRouter(handler)

	waitlist.On("Status", mock.Anything, "event-1", "user-2").
		Return(nil, domain.ErrEntryNotFound)

	req, _ := http.NewRequest("GET", "/api/v1/events/event-1/queue/status", nil)
	req.Header.Set("X-User-ID", "user-2")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueHandler_Release_Success(t *testing.T) {
	allocation := new(MockAllocationService)
	handler := NewQueueHandler(new(MockWaitlistService), allocation)
	router := setupQueueTestRouter(handler)

	allocation.On("ReleaseOffer", mock.Anything, "entry-1", "user-1").Return(nil)

	req, _ := http.NewRequest("POST", "/api/v1/queue/entries/entry-1/release", nil)
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "entry-1", data["entry_id"])
	assert.Equal(t, "expired", data["status"])

	allocation.AssertExpectations(t)
}

func TestQueueHandler_Release_WrongUser(t *testing.T) {
	allocation := new(MockAllocationService)
	handler := NewQueueHandler(new(MockWaitlistService), allocation)
	router := setupQueueTestRouter(handler)

	allocation.On("ReleaseOffer", mock.Anything, "entry-1", "user-2").
		Return(domain.ErrEntryOwnershipMismatch)

	req, _ := http.NewRequest("POST", "/api/v1/queue/entries/entry-1/release", nil)
	req.Header.Set("X-User-ID", "user-2")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestQueueHandler_Release_NoActiveOffer(t *testing.T) {
	allocation := new(MockAllocationService)
	handler := NewQueueHandler(new(MockWaitlistService), allocation)
	router := setupQueueTestRouter(handler)

	allocation.On("ReleaseOffer", mock.Anything, "entry-1", "user-1").
		Return(domain.ErrOfferNotActive)

	req, _ := http.NewRequest("POST", "/api/v1/queue/entries/entry-1/release", nil)
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp response.Response
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OFFER_NOT_ACTIVE", resp.Error.Code)
}
