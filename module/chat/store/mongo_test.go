package store

import (
	"testing"

	"CareChat/module/chat/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

func TestParticipantArraysNeverStoredAsNull(t *testing.T) {
	c := withParticipantArrays(model.Conversation{
		ID: "c1", VendorID: "CH1", Type: model.ConversationTypePlayground,
		Employees: []model.Participant{{VendorIdentity: "doc"}},
	})
	raw, err := bson.Marshal(c)
	require.NoError(t, err)

	for _, field := range []string{model.ConversationFieldEmployees, model.ConversationFieldPatients} {
		v, err := bson.Raw(raw).LookupErr(field)
		require.NoError(t, err, field)
		assert.Equal(t, bsontype.Array, v.Type, field)
	}
	assert.Len(t, c.Employees, 1)
}

func TestParticipantUpdatesTouchOneArrayEach(t *testing.T) {
	ups := participantUpdates("c1", "pat", bson.M{model.ParticipantFieldIsActive: false}, t0)
	require.Len(t, ups, 2)

	for i, field := range []string{model.ConversationFieldEmployees, model.ConversationFieldPatients} {
		u := ups[i]
		assert.Equal(t, "c1", u.filter[model.ConversationFieldID])
		assert.Equal(t, "pat", u.filter[field+"."+model.ParticipantFieldVendorIdentity], "only matches when the array holds the identity")

		set, ok := u.update["$set"].(bson.M)
		require.True(t, ok)
		assert.Equal(t, false, set[field+".$[p]."+model.ParticipantFieldIsActive])
		assert.Equal(t, t0, set[model.ConversationFieldUpdatedAt])
		assert.Len(t, set, 2, "no path into the other array")
	}
}
