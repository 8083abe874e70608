package types

// RecordStore is the sole persistence gateway for user profiles, orders
// and subscriptions. All durable state lives behind it so that any bot
// process observes any other process's writes on the next read.
//
// Store unavailability is returned as-is; the store does no retries.
type RecordStore interface {
	// GetUser returns the profile document, creating it from the
	// configured template on first access.
	GetUser(userID int64) (UserRecord, error)
	// UpdateUser merges fields into the profile. If no document matches
	// it creates one and re-applies the update. That is two separate
	// store calls, not one compound upsert: template defaults cannot be
	// populated atomically with a partial $set, and a concurrent writer
	// may win the create. Lost updates in that window are limited to
	// template-default fields.
	UpdateUser(userID int64, fields map[string]interface{}) error

	AddOrder(userID int64, order Order) error
	GetOrders(userID int64) ([]Order, error)
	// UpdateOrder merges fields into a matching order. A missing order
	// is a silent no-op so duplicate update attempts are safe to retry.
	UpdateOrder(userID int64, orderID string, fields map[string]interface{}) error

	// GetSubscription returns the stored record or a synthetic
	// non-premium default. It never creates a document; subscriptions
	// come into existence only through payments.
	GetSubscription(userID int64) (SubscriptionRecord, error)
	UpdateSubscription(userID int64, fields map[string]interface{}) error
	// AddSubscriptionPayment appends the payment and updates
	// is_premium/premium_expiration/last_payment in one store
	// operation, so no reader observes one effect without the other.
	AddSubscriptionPayment(userID int64, payment PaymentEvent) error

	// CheckSubscriptionStatus reports whether the subscription is
	// active right now: is_premium set and premium_expiration strictly
	// in the future. Missing or unparseable expirations count as not
	// premium.
	CheckSubscriptionStatus(userID int64) (bool, error)
}
