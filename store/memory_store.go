package store

import (
	"sync"

	"github.com/maratbg/tgfleet/types"
)

// MemoryStore is an in-process types.RecordStore with the same
// observable semantics as MongoStore. It backs tests and local runs;
// it obviously cannot be shared across bot processes.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[int64]types.UserRecord
	orders   map[int64][]types.Order
	subs     map[int64]*types.SubscriptionRecord
	template map[string]interface{}
	clock    types.Clock
}

var _ types.RecordStore = (*MemoryStore)(nil)

func NewMemoryStore(template map[string]interface{}) *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]types.UserRecord),
		orders:   make(map[int64][]types.Order),
		subs:     make(map[int64]*types.SubscriptionRecord),
		template: template,
		clock:    types.SystemClock{},
	}
}

func (s *MemoryStore) WithClock(c types.Clock) *MemoryStore {
	s.clock = c
	return s
}

func (s *MemoryStore) GetUser(userID int64) (types.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateUser(userID), nil
}

func (s *MemoryStore) getOrCreateUser(userID int64) types.UserRecord {
	if rec, ok := s.users[userID]; ok {
		return rec
	}
	rec := types.UserRecord{}
	for k, v := range s.template {
		rec[k] = v
	}
	rec["user_id"] = userID
	s.users[userID] = rec
	return rec
}

func (s *MemoryStore) UpdateUser(userID int64, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateUser(userID)
	for k, v := range fields {
		rec[k] = v
	}
	return nil
}

func (s *MemoryStore) AddOrder(userID int64, order types.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[userID] = append(s.orders[userID], order)
	return nil
}

func (s *MemoryStore) GetOrders(userID int64) ([]types.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Order, len(s.orders[userID]))
	copy(out, s.orders[userID])
	return out, nil
}

func (s *MemoryStore) UpdateOrder(userID int64, orderID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders[userID] {
		o := &s.orders[userID][i]
		if o.OrderID != orderID {
			continue
		}
		if v, ok := fields["status"].(string); ok {
			o.Status = v
		}
		if v, ok := fields["amount"].(int64); ok {
			o.Amount = v
		}
		if v, ok := fields["currency"].(string); ok {
			o.Currency = v
		}
		if v, ok := fields["date"].(string); ok {
			o.Date = v
		}
		return nil
	}
	// Missing order: silent no-op, same as a zero-match update.
	return nil
}

func (s *MemoryStore) GetSubscription(userID int64) (types.SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[userID]; ok {
		out := *sub
		out.Payments = append([]types.PaymentEvent(nil), sub.Payments...)
		return out, nil
	}
	return types.SubscriptionRecord{UserID: userID, IsPremium: false}, nil
}

func (s *MemoryStore) UpdateSubscription(userID int64, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.upsertSubscription(userID)
	if v, ok := fields["is_premium"].(bool); ok {
		sub.IsPremium = v
	}
	if v, ok := fields["premium_expiration"].(string); ok {
		sub.PremiumExpiration = v
	}
	if v, ok := fields["last_payment"].(string); ok {
		sub.LastPayment = v
	}
	return nil
}

func (s *MemoryStore) AddSubscriptionPayment(userID int64, payment types.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.upsertSubscription(userID)
	sub.Payments = append(sub.Payments, payment)
	sub.IsPremium = true
	sub.PremiumExpiration = payment.ExpirationDate
	sub.LastPayment = payment.Date
	return nil
}

func (s *MemoryStore) upsertSubscription(userID int64) *types.SubscriptionRecord {
	if sub, ok := s.subs[userID]; ok {
		return sub
	}
	sub := &types.SubscriptionRecord{UserID: userID}
	s.subs[userID] = sub
	return sub
}

func (s *MemoryStore) CheckSubscriptionStatus(userID int64) (bool, error) {
	sub, err := s.GetSubscription(userID)
	if err != nil {
		return false, err
	}
	if !sub.IsPremium || sub.PremiumExpiration == "" {
		return false, nil
	}
	exp, err := types.ParseTime(sub.PremiumExpiration)
	if err != nil {
		return false, nil
	}
	return exp.After(s.clock.Now()), nil
}
