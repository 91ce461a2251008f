package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"orghub/internal/common"
	"orghub/internal/config"
)

// One collection per entity category.
var collections = map[common.Category]string{
	common.CategoryChat:         "messages",
	common.CategoryAnnouncement: "announcements",
	common.CategoryDocument:     "org_documents",
	common.CategoryBill:         "bills",
	common.CategoryPayment:      "payments",
}

const mongoUnauthorizedCode = 13

type EntityStore struct {
	db           *mongo.Database
	window       int64
	setupTimeout time.Duration
}

func NewEntityStore(mongoClient *MongoClient, cfg *config.Config) *EntityStore {
	window := cfg.Notification.WindowSize
	if window <= 0 {
		window = 100
	}
	setup := time.Duration(cfg.Notification.SetupTimeoutSec) * time.Second
	if setup <= 0 {
		setup = 10 * time.Second
	}
	return &EntityStore{
		db:           mongoClient.Database,
		window:       window,
		setupTimeout: setup,
	}
}

func (s *EntityStore) collection(category common.Category) (*mongo.Collection, error) {
	name, ok := collections[category]
	if !ok {
		return nil, fmt.Errorf("unknown entity category: %s", category)
	}
	return s.db.Collection(name), nil
}

func (s *EntityStore) filter(q common.Query) bson.M {
	f := bson.M{}
	if q.OrganizationID != "" {
		f["organizationId"] = q.OrganizationID
	}
	if q.UnpaidOnly {
		f["paymentStatus"] = common.PaymentStatusUnpaid
	}
	if q.ExcludeAnnouncements {
		f["isAnnouncement"] = bson.M{"$ne": true}
	}
	return f
}

// Fetch runs the capped one-shot query for q, newest entities first.
func (s *EntityStore) Fetch(ctx context.Context, q common.Query) ([]common.Entity, error) {
	coll, err := s.collection(q.Category)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.window
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cur, err := coll.Find(ctx, s.filter(q), opts)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	var entities []common.Entity
	if err := cur.All(ctx, &entities); err != nil {
		return nil, wrapStoreError(err)
	}
	for i := range entities {
		entities[i].Category = q.Category
	}
	return entities, nil
}

// Subscribe opens a live query: one initial snapshot, then a fresh capped
// snapshot on every change-stream event or explicit Refresh. Each snapshot
// reflects the full current window, so the latest callback always wins.
func (s *EntityStore) Subscribe(ctx context.Context, q common.Query, fn func(common.Snapshot)) (common.Subscription, error) {
	if _, err := s.collection(q.Category); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		store:   s,
		query:   q,
		fn:      fn,
		cancel:  cancel,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go sub.run(sctx)
	return sub, nil
}

// MarkViewed appends userID to the entity's viewedBy set. $addToSet makes
// a repeat call a no-op, not an error.
func (s *EntityStore) MarkViewed(ctx context.Context, category common.Category, entityID, userID string) error {
	coll, err := s.collection(category)
	if err != nil {
		return err
	}

	_, err = coll.UpdateOne(ctx,
		bson.M{"_id": entityID},
		bson.M{"$addToSet": bson.M{"viewedBy": userID}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark viewed: %w", wrapStoreError(err))
	}
	return nil
}

func (s *EntityStore) watch(ctx context.Context, q common.Query) (*mongo.ChangeStream, error) {
	coll, err := s.collection(q.Category)
	if err != nil {
		return nil, err
	}

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	return coll.Watch(ctx, changeStreamPipeline(q), opts)
}

// changeStreamPipeline scopes the stream to the organization. Delete
// events carry no fullDocument, so they must always pass the match; the
// re-query's own filter keeps foreign-org rows out of the snapshot.
func changeStreamPipeline(q common.Query) mongo.Pipeline {
	pipeline := mongo.Pipeline{}
	if q.OrganizationID != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{
			"$or": bson.A{
				bson.M{"operationType": "delete"},
				bson.M{"fullDocument.organizationId": q.OrganizationID},
			},
		}}})
	}
	return pipeline
}

func wrapStoreError(err error) error {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == mongoUnauthorizedCode {
		return fmt.Errorf("%w: %v", common.ErrPermissionDenied, err)
	}
	return err
}

type subscription struct {
	store   *EntityStore
	query   common.Query
	fn      func(common.Snapshot)
	cancel  context.CancelFunc
	refresh chan struct{}
	done    chan struct{}
}

func (sub *subscription) run(ctx context.Context) {
	defer close(sub.done)

	// Initial snapshot is bounded so a hung store surfaces a degraded
	// snapshot instead of hanging the category silently.
	setupCtx, setupCancel := context.WithTimeout(ctx, sub.store.setupTimeout)
	sub.deliver(setupCtx)
	setupCancel()

	events := make(chan struct{}, 1)
	stream, err := sub.store.watch(ctx, sub.query)
	if err != nil {
		log.Printf("Change stream unavailable for %s, refresh-only mode: %v", sub.query.Category, err)
	} else {
		go func() {
			defer stream.Close(context.Background())
			for stream.Next(ctx) {
				select {
				case events <- struct{}{}:
				default:
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
			sub.deliver(ctx)
		case <-sub.refresh:
			sub.deliver(ctx)
		}
	}
}

func (sub *subscription) deliver(ctx context.Context) {
	entities, err := sub.store.Fetch(ctx, sub.query)
	sub.fn(common.Snapshot{Category: sub.query.Category, Entities: entities, Err: err})
}

func (sub *subscription) Refresh(ctx context.Context) error {
	select {
	case sub.refresh <- struct{}{}:
	default:
		// a refresh is already pending
	}
	return nil
}

func (sub *subscription) Cancel() {
	sub.cancel()
	<-sub.done
}
