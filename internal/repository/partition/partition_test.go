package partition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestPartitionRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get existing", func(mt *mtest.T) {
		repo := NewPartitionRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.partitions", mtest.FirstBatch, bson.D{
			{Key: "name", Value: "state"},
			{Key: "value", Value: `{"staging":true}`},
		}))

		doc, err := repo.GetByName(context.Background(), "state")
		require.NoError(mt, err)
		require.NotNil(mt, doc)
		assert.Equal(mt, "state", doc.Name)
		assert.Equal(mt, `{"staging":true}`, doc.Value)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		repo := NewPartitionRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.partitions", mtest.FirstBatch))

		doc, err := repo.GetByName(context.Background(), "state")
		require.NoError(mt, err)
		assert.Nil(mt, doc)
	})

	mt.Run("put", func(mt *mtest.T) {
		repo := NewPartitionRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		doc := &Document{Name: "state", Value: `{}`}
		require.NoError(mt, repo.Put(context.Background(), doc))
		assert.False(mt, doc.UpdatedAt.IsZero())
	})
}
