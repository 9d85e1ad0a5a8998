package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	awspkg "github.com/storefront-platform/backend/pkg/aws"
	"github.com/storefront-platform/backend/pkg/signing"
	"github.com/storefront-platform/backend/services/common/logger"
	"github.com/storefront-platform/backend/services/order-service/models"
	"github.com/storefront-platform/backend/services/order-service/repository"
)

// ServiceError is a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

var (
	errRequestFailed     = &ServiceError{StatusCode: http.StatusInternalServerError, Message: "request failed"}
	errInvalidPayload    = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid payload"}
	errInvalidAddress    = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid address"}
	errInvalidOwner      = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid owner address"}
	errInvalidKey        = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid public key"}
	errInvalidSignature  = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid signature"}
	errInvalidStoreID    = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid store id"}
	errOrderNotFound     = &ServiceError{StatusCode: http.StatusNotFound, Message: "order not found"}
	errStoreNotFound     = &ServiceError{StatusCode: http.StatusNotFound, Message: "store not found"}
	errUserNotFound      = &ServiceError{StatusCode: http.StatusNotFound, Message: "user not found"}
	errStoreExists       = &ServiceError{StatusCode: http.StatusConflict, Message: "store already exists"}
	errInvalidTransition = &ServiceError{StatusCode: http.StatusConflict, Message: "invalid status transition"}
	errStaleSettings     = &ServiceError{StatusCode: http.StatusConflict, Message: "stale settings"}
)

// EventPublisher is satisfied by *awspkg.SNSClient.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topicArn, eventType string, v any) error
}

// DashboardService performs the store owner's mutations. Signed messages
// reaching it have already been authorized; it checks that they describe the
// resource named by the route.
type DashboardService interface {
	CancelOrder(ctx context.Context, storeID, orderID string, msg signing.Message, actor string) (*models.OrderStatusResult, *ServiceError)
	FulfillOrder(ctx context.Context, storeID, orderID string, msg signing.Message, actor string) (*models.OrderStatusResult, *ServiceError)
	ListOrders(ctx context.Context, storeID string, page, limit int) (*models.PaginatedOrders, *ServiceError)
	CreateStore(ctx context.Context, req *signing.WalletPayload) (*models.Store, *ServiceError)
	UpdateStore(ctx context.Context, storeID string, msg signing.Message) (*models.Store, *ServiceError)
	UpdateAccount(ctx context.Context, address string, msg signing.Message) (*models.User, *ServiceError)
	RegisterKey(ctx context.Context, address string, req *signing.WalletPayload) (*models.KeyResult, *ServiceError)
}

type Deps struct {
	Stores    repository.StoreRepository
	Users     repository.UserRepository
	Orders    repository.OrderRepository
	Publisher EventPublisher
	Metrics   awspkg.Metrics
	TopicArn  string
	Logger    *zap.Logger
}

type dashboardServiceImpl struct {
	stores    repository.StoreRepository
	users     repository.UserRepository
	orders    repository.OrderRepository
	publisher EventPublisher
	metrics   awspkg.Metrics
	topicArn  string
	logger    *zap.Logger
	now       func() time.Time
}

func NewDashboardService(d Deps) DashboardService {
	return &dashboardServiceImpl{
		stores:    d.Stores,
		users:     d.Users,
		orders:    d.Orders,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		topicArn:  d.TopicArn,
		logger:    d.Logger,
		now:       time.Now,
	}
}

func (s *dashboardServiceImpl) CancelOrder(ctx context.Context, storeID, orderID string, msg signing.Message, actor string) (*models.OrderStatusResult, *ServiceError) {
	m, ok := msg.(signing.OrderCancel)
	if !ok || !sameID(m.StoreID, storeID) || !sameID(m.OrderID, orderID) {
		return nil, errInvalidPayload
	}
	return s.transition(ctx, storeID, orderID, models.StatusCanceled, actor)
}

func (s *dashboardServiceImpl) FulfillOrder(ctx context.Context, storeID, orderID string, msg signing.Message, actor string) (*models.OrderStatusResult, *ServiceError) {
	m, ok := msg.(signing.OrderFulfill)
	if !ok || !sameID(m.StoreID, storeID) || !sameID(m.OrderID, orderID) {
		return nil, errInvalidPayload
	}
	return s.transition(ctx, storeID, orderID, models.StatusFulfilled, actor)
}

func (s *dashboardServiceImpl) transition(ctx context.Context, storeID, orderID, to, actor string) (*models.OrderStatusResult, *ServiceError) {
	log := s.log(ctx).With(zap.String("store_id", storeID), zap.String("order_id", orderID))

	sid, err := uuid.Parse(storeID)
	if err != nil {
		return nil, errInvalidStoreID
	}
	oid, err := uuid.Parse(orderID)
	if err != nil {
		return nil, errOrderNotFound
	}

	order, err := s.orders.FindByIDAndStore(ctx, oid, sid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errOrderNotFound
	}
	if err != nil {
		log.Error("order lookup failed", zap.Error(err))
		return nil, errRequestFailed
	}
	if !models.CanTransition(order.Status, to) {
		return nil, errInvalidTransition
	}

	at := s.now().UTC()
	if err := s.orders.TransitionStatus(ctx, oid, order.Status, to, at); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, errInvalidTransition
		}
		log.Error("order status update failed", zap.String("status", to), zap.Error(err))
		return nil, errRequestFailed
	}
	log.Info("order status changed", zap.String("from", order.Status), zap.String("to", to), zap.String("actor", actor))

	event, metric := models.OrderCanceledEvent, awspkg.MetricOrdersCanceled
	if to == models.StatusFulfilled {
		event, metric = models.OrderFulfilledEvent, awspkg.MetricOrdersFulfilled
	}
	if s.publisher != nil {
		evt := models.OrderStatusEvent{
			Event:     event,
			OrderID:   oid.String(),
			StoreID:   sid.String(),
			Status:    to,
			Actor:     actor,
			Timestamp: at,
		}
		if err := s.publisher.PublishEvent(ctx, s.topicArn, event, evt); err != nil {
			log.Warn("failed to publish order status event", zap.String("event", event), zap.Error(err))
		}
	}
	if s.metrics != nil {
		_ = s.metrics.RecordCount(ctx, metric, map[string]string{"StoreID": sid.String()})
	}

	return &models.OrderStatusResult{OrderID: oid.String(), StoreID: sid.String(), Status: to}, nil
}

func (s *dashboardServiceImpl) ListOrders(ctx context.Context, storeID string, page, limit int) (*models.PaginatedOrders, *ServiceError) {
	sid, err := uuid.Parse(storeID)
	if err != nil {
		return nil, errInvalidStoreID
	}
	orders, total, err := s.orders.FindByStore(ctx, sid, page, limit)
	if err != nil {
		s.log(ctx).Error("failed to list orders", zap.String("store_id", storeID), zap.Error(err))
		return nil, errRequestFailed
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &models.PaginatedOrders{Orders: orders, Total: total, Page: page, Limit: limit}, nil
}

// CreateStore registers a new store owned by the wallet that signed the
// Store message.
func (s *dashboardServiceImpl) CreateStore(ctx context.Context, req *signing.WalletPayload) (*models.Store, *ServiceError) {
	if svcErr := verifyWallet(req); svcErr != nil {
		s.recordRejection(ctx, svcErr, "store")
		return nil, svcErr
	}
	msg, err := signing.DecodeTypedMessage(req.Data)
	if err != nil {
		return nil, errInvalidPayload
	}
	m, ok := msg.(signing.Store)
	if !ok {
		return nil, errInvalidPayload
	}
	sid := uuid.MustParse(m.StoreID)

	_, err = s.stores.FindByID(ctx, sid)
	if err == nil {
		return nil, errStoreExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.log(ctx).Error("store lookup failed", zap.String("store_id", m.StoreID), zap.Error(err))
		return nil, errRequestFailed
	}

	store := &models.Store{
		ID:           sid,
		OwnerAddress: signing.NormalizeAddress(req.Address),
		Name:         m.Name,
		Description:  m.Description,
		Currency:     currencyOrDefault(m.Currency),
		// the creation message must not be reusable as a settings update
		SettingsSignedAt: int64(m.Timestamp),
	}
	if err := s.stores.Create(ctx, store); err != nil {
		s.log(ctx).Error("failed to create store", zap.String("store_id", m.StoreID), zap.Error(err))
		return nil, errRequestFailed
	}
	s.log(ctx).Info("store created", zap.String("store_id", m.StoreID), zap.String("owner", store.OwnerAddress))
	return store, nil
}

func (s *dashboardServiceImpl) UpdateStore(ctx context.Context, storeID string, msg signing.Message) (*models.Store, *ServiceError) {
	m, ok := msg.(signing.Store)
	if !ok || !sameID(m.StoreID, storeID) {
		return nil, errInvalidPayload
	}
	sid, err := uuid.Parse(storeID)
	if err != nil {
		return nil, errInvalidStoreID
	}

	currency := ""
	if m.Currency != "" {
		currency = strings.ToUpper(m.Currency)
	}
	err = s.stores.UpdateSettings(ctx, sid, repository.StoreSettings{
		Name:        m.Name,
		Description: m.Description,
		Currency:    currency,
		SignedAt:    int64(m.Timestamp),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errStoreNotFound
	}
	if errors.Is(err, repository.ErrStaleSettings) {
		s.log(ctx).Info("stale store settings refused", zap.String("store_id", storeID), zap.Int64("signed_at", int64(m.Timestamp)))
		return nil, errStaleSettings
	}
	if err != nil {
		s.log(ctx).Error("failed to update store", zap.String("store_id", storeID), zap.Error(err))
		return nil, errRequestFailed
	}

	store, err := s.stores.FindByID(ctx, sid)
	if err != nil {
		s.log(ctx).Error("failed to reload store", zap.String("store_id", storeID), zap.Error(err))
		return nil, errRequestFailed
	}
	return store, nil
}

func (s *dashboardServiceImpl) UpdateAccount(ctx context.Context, address string, msg signing.Message) (*models.User, *ServiceError) {
	m, ok := msg.(signing.AccountDetails)
	if !ok || !signing.SameAddress(m.Address, address) {
		return nil, errInvalidPayload
	}
	addr := signing.NormalizeAddress(address)

	err := s.users.UpdateDetails(ctx, addr, m.Name, m.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		s.log(ctx).Error("failed to update account", zap.String("address", addr), zap.Error(err))
		return nil, errRequestFailed
	}

	user, err := s.users.FindByAddress(ctx, addr)
	if err != nil {
		s.log(ctx).Error("failed to reload account", zap.String("address", addr), zap.Error(err))
		return nil, errRequestFailed
	}
	return user, nil
}

// RegisterKey adds a dashboard signing key for address. The request must be
// GenerateSigningKey typed data signed by the address's wallet.
func (s *dashboardServiceImpl) RegisterKey(ctx context.Context, address string, req *signing.WalletPayload) (*models.KeyResult, *ServiceError) {
	if svcErr := verifyWallet(req); svcErr != nil {
		s.recordRejection(ctx, svcErr, "register_key")
		return nil, svcErr
	}
	if !signing.SameAddress(req.Address, address) {
		s.recordRejection(ctx, errInvalidOwner, "register_key")
		return nil, errInvalidOwner
	}

	msg, err := signing.DecodeTypedMessage(req.Data)
	if err != nil {
		return nil, errInvalidPayload
	}
	m, ok := msg.(signing.GenerateSigningKey)
	if !ok || !signing.SameAddress(m.Address, address) {
		return nil, errInvalidPayload
	}
	jwk, err := signing.ParseJWK(m.Key)
	if err != nil {
		return nil, errInvalidKey
	}

	addr := signing.NormalizeAddress(address)
	key := &models.SigningKey{
		Address:    addr,
		Thumbprint: jwk.Thumbprint(),
		JWK:        m.Key,
	}
	created, err := s.users.AddKey(ctx, key)
	if err != nil {
		s.log(ctx).Error("failed to register signing key", zap.String("address", addr), zap.Error(err))
		return nil, errRequestFailed
	}
	if created {
		s.log(ctx).Info("signing key registered", zap.String("address", addr), zap.String("thumbprint", key.Thumbprint))
	}
	return &models.KeyResult{Address: addr, Thumbprint: key.Thumbprint, Created: created}, nil
}

func verifyWallet(req *signing.WalletPayload) *ServiceError {
	err := signing.VerifyTypedData(req.Address, req.Data, req.Sig)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, signing.ErrInvalidAddress):
		return errInvalidAddress
	default:
		return errInvalidSignature
	}
}

func (s *dashboardServiceImpl) recordRejection(ctx context.Context, svcErr *ServiceError, flow string) {
	if s.metrics != nil {
		_ = s.metrics.RecordCount(ctx, awspkg.MetricSignatureRejected, map[string]string{"Reason": svcErr.Message, "Flow": flow})
	}
}

func (s *dashboardServiceImpl) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}

func sameID(a, b string) bool {
	return strings.EqualFold(a, b)
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "USD"
	}
	return strings.ToUpper(c)
}
