package store

import (
	"context"
	"time"

	"CareChat/data/database"
	"CareChat/data/database/mgo/mongoutil"
	"CareChat/module/chat/model"
	"CareChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	ConvColl *mongo.Collection // conversation
	ReadColl *mongo.Collection // participant_read_index
	SentColl *mongo.Collection // participant_sent_index

	now func() time.Time
}

func NewMongoStore(db *mongo.Database, now func() time.Time) *MongoStore {
	if now == nil {
		now = time.Now
	}
	return &MongoStore{
		ConvColl: database.Collection(db, &model.Conversation{}),
		ReadColl: database.Collection(db, &model.ParticipantReadIndex{}),
		SentColl: database.Collection(db, &model.ParticipantSentIndex{}),
		now:      now,
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.ConvColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: model.ConversationFieldVendorID, Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: model.ConversationFieldState, Value: 1}, {Key: model.ConversationFieldLastMessageAt, Value: -1}}},
	})
	if err != nil {
		return errs.WrapMsg(err, "conversation indexes")
	}
	cursorKeys := bson.D{{Key: model.IndexFieldConversationVendorID, Value: 1}, {Key: model.IndexFieldIdentity, Value: 1}}
	if _, err = s.ReadColl.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: cursorKeys, Options: options.Index().SetUnique(true)}); err != nil {
		return errs.WrapMsg(err, "read index indexes")
	}
	if _, err = s.SentColl.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: cursorKeys, Options: options.Index().SetUnique(true)}); err != nil {
		return errs.WrapMsg(err, "sent index indexes")
	}
	return nil
}

func (s *MongoStore) GetConversationByVendorID(ctx context.Context, vendorID string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.ConvColl.FindOne(ctx, bson.M{model.ConversationFieldVendorID: vendorID}).Decode(&c)
	if mongoutil.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find conversation", "vendorId", vendorID)
	}
	return &c, nil
}

func (s *MongoStore) ListActiveConversationsSince(ctx context.Context, since time.Time) ([]model.Conversation, error) {
	cur, err := s.ConvColl.Find(ctx, bson.M{
		model.ConversationFieldState:         model.ConversationStateActive,
		model.ConversationFieldLastMessageAt: bson.M{"$gte": since},
	}, options.Find().SetSort(bson.D{{Key: model.ConversationFieldLastMessageAt, Value: -1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list active conversations")
	}
	var out []model.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode conversations")
	}
	return out, nil
}

func (s *MongoStore) UpsertConversation(ctx context.Context, c model.Conversation) error {
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c = withParticipantArrays(c)
	_, err := s.ConvColl.ReplaceOne(ctx, bson.M{model.ConversationFieldID: c.ID}, c, options.Replace().SetUpsert(true))
	return errs.WrapMsg(err, "upsert conversation", "id", c.ID)
}

func (s *MongoStore) RaiseConversationIndex(ctx context.Context, conversationID string, v int64) error {
	_, err := s.ConvColl.UpdateOne(ctx,
		bson.M{model.ConversationFieldID: conversationID},
		bson.M{
			"$max": bson.M{model.ConversationFieldIndex: v},
			"$set": bson.M{model.ConversationFieldHasMessages: true, model.ConversationFieldUpdatedAt: s.now()},
		})
	return errs.WrapMsg(err, "raise conversation index", "id", conversationID)
}

func (s *MongoStore) Rollup(ctx context.Context, conversationID string, v int64, lastMessageAt time.Time) error {
	_, err := s.ConvColl.UpdateOne(ctx,
		bson.M{model.ConversationFieldID: conversationID},
		bson.M{
			"$max": bson.M{model.ConversationFieldIndex: v, model.ConversationFieldLastMessageAt: lastMessageAt},
			"$set": bson.M{model.ConversationFieldHasMessages: true, model.ConversationFieldUpdatedAt: s.now()},
		})
	return errs.WrapMsg(err, "rollup conversation", "id", conversationID)
}

// withParticipantArrays 参与者数组始终存成 []，不存 null
func withParticipantArrays(c model.Conversation) model.Conversation {
	if c.Employees == nil {
		c.Employees = []model.Participant{}
	}
	if c.Patients == nil {
		c.Patients = []model.Participant{}
	}
	return c
}

type participantUpdate struct {
	filter bson.M
	update bson.M
}

// participantUpdates 员工、患者各一条更新；filter 要求该数组里确有此 identity，
// 空数组或 null 的一侧不会命中，array filter 也就不会落到非数组字段上
func participantUpdates(conversationID, identity string, set bson.M, now time.Time) []participantUpdate {
	out := make([]participantUpdate, 0, 2)
	for _, field := range []string{model.ConversationFieldEmployees, model.ConversationFieldPatients} {
		upd := bson.M{model.ConversationFieldUpdatedAt: now}
		for k, v := range set {
			upd[field+".$[p]."+k] = v
		}
		filter := bson.M{model.ConversationFieldID: conversationID}
		filter[field+"."+model.ParticipantFieldVendorIdentity] = identity
		out = append(out, participantUpdate{filter: filter, update: bson.M{"$set": upd}})
	}
	return out
}

func (s *MongoStore) setParticipant(ctx context.Context, conversationID, identity string, set bson.M) error {
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"p." + model.ParticipantFieldVendorIdentity: identity}},
	})
	for _, u := range participantUpdates(conversationID, identity, set, s.now()) {
		if _, err := s.ConvColl.UpdateOne(ctx, u.filter, u.update, opts); err != nil {
			return errs.WrapMsg(err, "update participant", "conversation", conversationID, "identity", identity)
		}
	}
	return nil
}

func (s *MongoStore) SetParticipantVendorID(ctx context.Context, conversationID, identity, participantSid string) error {
	return s.setParticipant(ctx, conversationID, identity, bson.M{model.ParticipantFieldVendorParticipantID: participantSid})
}

func (s *MongoStore) ClearParticipantVendorID(ctx context.Context, conversationID, identity string) error {
	return s.setParticipant(ctx, conversationID, identity, bson.M{model.ParticipantFieldVendorParticipantID: ""})
}

func (s *MongoStore) MarkParticipantRemoved(ctx context.Context, conversationID, identity string, at time.Time) error {
	return s.setParticipant(ctx, conversationID, identity, bson.M{
		model.ParticipantFieldIsActive:  false,
		model.ParticipantFieldRemovedAt: at,
	})
}

func cursorFilter(conversationVendorID, identity string) bson.M {
	return bson.M{model.IndexFieldConversationVendorID: conversationVendorID, model.IndexFieldIdentity: identity}
}

func (s *MongoStore) GetReadIndex(ctx context.Context, conversationVendorID, identity string) (*model.ParticipantReadIndex, error) {
	var r model.ParticipantReadIndex
	err := s.ReadColl.FindOne(ctx, cursorFilter(conversationVendorID, identity)).Decode(&r)
	if mongoutil.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find read index")
	}
	return &r, nil
}

func (s *MongoStore) ListReadIndexes(ctx context.Context, conversationVendorID string) ([]model.ParticipantReadIndex, error) {
	cur, err := s.ReadColl.Find(ctx, bson.M{model.IndexFieldConversationVendorID: conversationVendorID})
	if err != nil {
		return nil, errs.WrapMsg(err, "list read indexes")
	}
	var out []model.ParticipantReadIndex
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode read indexes")
	}
	return out, nil
}

func (s *MongoStore) writeReadIndex(ctx context.Context, conversationVendorID, identity, op string, v int64) (*model.ParticipantReadIndex, error) {
	now := s.now()
	set := bson.M{model.IndexFieldUpdatedAt: now}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			model.IndexFieldConversationVendorID: conversationVendorID,
			model.IndexFieldIdentity:             identity,
			model.IndexFieldCreatedAt:            now,
		},
	}
	if op == "$set" {
		set[model.IndexFieldLastReadIndex] = v
	} else {
		update[op] = bson.M{model.IndexFieldLastReadIndex: v}
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out model.ParticipantReadIndex
	err := s.ReadColl.FindOneAndUpdate(ctx, cursorFilter(conversationVendorID, identity), update, opts).Decode(&out)
	if mongoutil.IsDuplicate(err) {
		// 并发懒创建撞唯一索引，行已存在，再来一次即为普通更新
		err = s.ReadColl.FindOneAndUpdate(ctx, cursorFilter(conversationVendorID, identity), update, opts).Decode(&out)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "write read index", "conversation", conversationVendorID, "identity", identity)
	}
	return &out, nil
}

func (s *MongoStore) AdvanceReadIndex(ctx context.Context, conversationVendorID, identity string, v int64) (*model.ParticipantReadIndex, error) {
	return s.writeReadIndex(ctx, conversationVendorID, identity, "$max", v)
}

func (s *MongoStore) SetReadIndex(ctx context.Context, conversationVendorID, identity string, v int64) (*model.ParticipantReadIndex, error) {
	return s.writeReadIndex(ctx, conversationVendorID, identity, "$set", v)
}

func (s *MongoStore) GetSentIndex(ctx context.Context, conversationVendorID, identity string) (*model.ParticipantSentIndex, error) {
	var r model.ParticipantSentIndex
	err := s.SentColl.FindOne(ctx, cursorFilter(conversationVendorID, identity)).Decode(&r)
	if mongoutil.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find sent index")
	}
	return &r, nil
}

func (s *MongoStore) AdvanceSentIndex(ctx context.Context, in model.ParticipantSentIndex) (bool, error) {
	now := s.now()
	filter := cursorFilter(in.ConversationVendorID, in.Identity)
	filter["$or"] = bson.A{
		bson.M{model.IndexFieldLastSentIndex: bson.M{"$lt": in.LastSentIndex}},
		bson.M{model.IndexFieldLastSentIndex: in.LastSentIndex, model.IndexFieldLastSentAt: bson.M{"$lt": in.LastSentAt}},
	}
	res, err := s.SentColl.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		model.IndexFieldLastSentIndex: in.LastSentIndex,
		model.IndexFieldLastSentAt:    in.LastSentAt,
		model.IndexFieldUpdatedAt:     now,
	}})
	if err != nil {
		return false, errs.WrapMsg(err, "advance sent index")
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	// 没有更旧的行：要么不存在，要么已经不比它新
	in.CreatedAt, in.UpdatedAt = now, now
	if _, err = s.SentColl.InsertOne(ctx, in); err != nil {
		if mongoutil.IsDuplicate(err) {
			return false, nil
		}
		return false, errs.WrapMsg(err, "insert sent index")
	}
	return true, nil
}
