package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/maratbg/tgfleet/types"
)

const opTimeout = 5 * time.Second

// Config ties a MongoStore to its databases. Database holds the bot's
// own user profiles; SubscriptionDB is shared by the whole fleet and
// holds orders and subscriptions. Debug switches to *_test collections
// so staging bots never touch production documents.
type Config struct {
	Database       string
	SubscriptionDB string
	Debug          bool
	// UserTemplate supplies the default profile fields a bot wants on
	// newly created users. user_id is always added on top.
	UserTemplate map[string]interface{}
}

// MongoStore implements types.RecordStore on MongoDB.
type MongoStore struct {
	client   *Client
	users    *mongo.Collection
	orders   *mongo.Collection
	subs     *mongo.Collection
	template map[string]interface{}
	clock    types.Clock
}

var _ types.RecordStore = (*MongoStore)(nil)

func NewMongoStore(client *Client, cfg Config) *MongoStore {
	usersCol := "users"
	ordersCol := "order"
	if cfg.Debug {
		usersCol = "users_test"
		ordersCol = "order_test"
	}
	s := &MongoStore{
		client:   client,
		users:    client.Collection(cfg.Database, usersCol),
		orders:   client.Collection(cfg.SubscriptionDB, ordersCol),
		subs:     client.Collection(cfg.SubscriptionDB, "subscriptions"),
		template: cfg.UserTemplate,
		clock:    types.SystemClock{},
	}
	s.ensureIndexes()
	return s
}

// ensureIndexes creates the unique user_id index on the users
// collection. The duplicate-key re-read in createUser only fires when
// this index exists; without it concurrent first access from two
// processes can create the user twice.
func (s *MongoStore) ensureIndexes() {
	ctx, cancel := opCtx()
	defer cancel()

	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to ensure unique user_id index")
	}
}

// WithClock replaces the time source. Only tests need this.
func (s *MongoStore) WithClock(c types.Clock) *MongoStore {
	s.clock = c
	return s
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func (s *MongoStore) GetUser(userID int64) (types.UserRecord, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var rec types.UserRecord
	err := s.users.FindOne(ctx, bson.M{"user_id": userID}).Decode(&rec)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrap(err, "get user")
	}
	return s.createUser(userID)
}

func (s *MongoStore) createUser(userID int64) (types.UserRecord, error) {
	ctx, cancel := opCtx()
	defer cancel()

	rec := types.UserRecord{}
	for k, v := range s.template {
		rec[k] = v
	}
	rec["user_id"] = userID

	_, err := s.users.InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Another bot process created the user between our read and
			// insert. Their document wins; re-read it.
			var existing types.UserRecord
			if rerr := s.users.FindOne(ctx, bson.M{"user_id": userID}).Decode(&existing); rerr == nil {
				return existing, nil
			}
		}
		return nil, errors.Wrap(err, "create user")
	}
	return rec, nil
}

func (s *MongoStore) UpdateUser(userID int64, fields map[string]interface{}) error {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := s.users.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": fields})
	if err != nil {
		return errors.Wrap(err, "update user")
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// No document yet: create from the template, then re-apply. Two
	// separate calls on purpose; an upsert with a partial $set would
	// produce a document without the template defaults.
	if _, err := s.createUser(userID); err != nil {
		return err
	}
	_, err = s.users.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": fields})
	return errors.Wrap(err, "update user after create")
}

func (s *MongoStore) AddOrder(userID int64, order types.Order) error {
	ctx, cancel := opCtx()
	defer cancel()

	_, err := s.orders.InsertOne(ctx, bson.M{
		"user_id":  userID,
		"order_id": order.OrderID,
		"amount":   order.Amount,
		"currency": order.Currency,
		"status":   order.Status,
		"date":     order.Date,
	})
	return errors.Wrap(err, "add order")
}

func (s *MongoStore) GetOrders(userID int64) ([]types.Order, error) {
	ctx, cancel := opCtx()
	defer cancel()

	cur, err := s.orders.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, errors.Wrap(err, "get orders")
	}
	var orders []types.Order
	if err := cur.All(ctx, &orders); err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return orders, nil
}

func (s *MongoStore) UpdateOrder(userID int64, orderID string, fields map[string]interface{}) error {
	ctx, cancel := opCtx()
	defer cancel()

	// Zero matched documents is not an error: duplicate settlement
	// callbacks retry this update and must stay harmless.
	_, err := s.orders.UpdateOne(ctx,
		bson.M{"user_id": userID, "order_id": orderID},
		bson.M{"$set": fields})
	return errors.Wrap(err, "update order")
}

func (s *MongoStore) GetSubscription(userID int64) (types.SubscriptionRecord, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var sub types.SubscriptionRecord
	err := s.subs.FindOne(ctx, bson.M{"user_id": userID}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.SubscriptionRecord{UserID: userID, IsPremium: false}, nil
		}
		return types.SubscriptionRecord{}, errors.Wrap(err, "get subscription")
	}
	return sub, nil
}

func (s *MongoStore) UpdateSubscription(userID int64, fields map[string]interface{}) error {
	ctx, cancel := opCtx()
	defer cancel()

	_, err := s.subs.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": fields},
		options.UpdateOne().SetUpsert(true))
	return errors.Wrap(err, "update subscription")
}

func (s *MongoStore) AddSubscriptionPayment(userID int64, payment types.PaymentEvent) error {
	ctx, cancel := opCtx()
	defer cancel()

	// Single update so the appended payment and the refreshed premium
	// fields land together; readers never see one without the other.
	_, err := s.subs.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$push": bson.M{"payments": payment},
			"$set": bson.M{
				"is_premium":         true,
				"premium_expiration": payment.ExpirationDate,
				"last_payment":       payment.Date,
			},
		},
		options.UpdateOne().SetUpsert(true))
	return errors.Wrap(err, "add subscription payment")
}

func (s *MongoStore) CheckSubscriptionStatus(userID int64) (bool, error) {
	sub, err := s.GetSubscription(userID)
	if err != nil {
		return false, err
	}
	if !sub.IsPremium || sub.PremiumExpiration == "" {
		return false, nil
	}
	exp, err := types.ParseTime(sub.PremiumExpiration)
	if err != nil {
		log.Warn().Int64("user_id", userID).Str("premium_expiration", sub.PremiumExpiration).
			Msg("unparseable premium expiration, treating as not premium")
		return false, nil
	}
	return exp.After(s.clock.Now()), nil
}
