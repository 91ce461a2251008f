package dbmongo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"orghub/internal/common"
	"orghub/internal/config"
)

func testStore() *EntityStore {
	return NewEntityStore(&MongoClient{}, &config.Config{})
}

func TestFilterByOrganization(t *testing.T) {
	s := testStore()

	f := s.filter(common.Query{Category: common.CategoryChat, OrganizationID: "org-1"})
	assert.Equal(t, bson.M{"organizationId": "org-1"}, f)
}

func TestFilterUnpaidBills(t *testing.T) {
	s := testStore()

	f := s.filter(common.Query{
		Category:       common.CategoryBill,
		OrganizationID: "org-1",
		UnpaidOnly:     true,
	})
	assert.Equal(t, "unpaid", f["paymentStatus"])
}

func TestFilterChatExcludesAnnouncements(t *testing.T) {
	s := testStore()

	f := s.filter(common.Query{
		Category:             common.CategoryChat,
		OrganizationID:       "org-1",
		ExcludeAnnouncements: true,
	})
	assert.Equal(t, bson.M{"$ne": true}, f["isAnnouncement"])
}

func TestChangeStreamPassesDeleteEvents(t *testing.T) {
	// delete events have no fullDocument, so the org match alone would
	// swallow them and the window would never recompute on removal
	pipeline := changeStreamPipeline(common.Query{
		Category:       common.CategoryBill,
		OrganizationID: "org-1",
	})
	require.Len(t, pipeline, 1)

	match, ok := pipeline[0][0].Value.(bson.M)
	require.True(t, ok)
	or, ok := match["$or"].(bson.A)
	require.True(t, ok)
	assert.Contains(t, or, bson.M{"operationType": "delete"})
	assert.Contains(t, or, bson.M{"fullDocument.organizationId": "org-1"})
}

func TestChangeStreamUnfilteredWithoutOrganization(t *testing.T) {
	assert.Empty(t, changeStreamPipeline(common.Query{Category: common.CategoryChat}))
}

func TestCollectionPerCategory(t *testing.T) {
	for _, category := range common.Categories() {
		_, ok := collections[category]
		assert.True(t, ok, "no collection mapped for %s", category)
	}
}

func TestUnknownCategoryRejected(t *testing.T) {
	s := testStore()

	_, err := s.collection(common.Category("bogus"))
	assert.Error(t, err)
}

func TestWrapStoreErrorMapsUnauthorized(t *testing.T) {
	err := wrapStoreError(mongo.CommandError{Code: 13, Message: "not authorized"})
	assert.ErrorIs(t, err, common.ErrPermissionDenied)
}

func TestWrapStoreErrorPassesOthersThrough(t *testing.T) {
	plain := errors.New("connection reset")
	assert.Equal(t, plain, wrapStoreError(plain))

	other := mongo.CommandError{Code: 11000, Message: "duplicate key"}
	assert.NotErrorIs(t, wrapStoreError(other), common.ErrPermissionDenied)
}
