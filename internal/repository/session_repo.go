package repository

import (
	"codepair/internal/model"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Update is a single atomic update applied to a session document. Fields map
// onto the corresponding MongoDB update operators; empty fields are omitted.
type Update struct {
	Set      bson.M
	Unset    bson.M
	Inc      bson.M
	AddToSet bson.M
	Pull     bson.M
}

// Document renders the update, always bumping updatedAt.
func (u Update) Document(now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	for k, v := range u.Set {
		set[k] = v
	}
	doc := bson.M{"$set": set}
	if len(u.Unset) > 0 {
		doc["$unset"] = u.Unset
	}
	if len(u.Inc) > 0 {
		doc["$inc"] = u.Inc
	}
	if len(u.AddToSet) > 0 {
		doc["$addToSet"] = u.AddToSet
	}
	if len(u.Pull) > 0 {
		doc["$pull"] = u.Pull
	}
	return doc
}

type SessionRepo interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	UpdateByID(ctx context.Context, id string, update Update) (*model.Session, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
	GetActiveByParticipant(ctx context.Context, userID string) ([]*model.Session, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("sessions"),
	}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	// Schema guard: the service only enforces the maximum of 2.
	if len(session.Participants) < 2 {
		return fmt.Errorf("session requires at least 2 participants, got %d", len(session.Participants))
	}

	if session.ID == "" {
		session.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, session)
	return err
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateByID(ctx context.Context, id string, update Update) (*model.Session, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session model.Session
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update.Document(time.Now()), opts).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// DeleteExpired bulk-removes finished sessions untouched since cutoff. Used
// by the retention sweep, never by the coordinator itself.
func (r *sessionRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"status":    bson.M{"$in": []string{"expired", string(model.SessionEnded)}},
		"updatedAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// GetActiveByParticipant reads the durable store directly, bypassing the
// cache, so duplicate-session checks never trust a stale snapshot.
func (r *sessionRepo) GetActiveByParticipant(ctx context.Context, userID string) ([]*model.Session, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"participants.userId": userID,
		"status":              model.SessionActive,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	for cursor.Next(ctx) {
		var session model.Session
		if err := cursor.Decode(&session); err != nil {
			return nil, err
		}
		sessions = append(sessions, &session)
	}
	return sessions, cursor.Err()
}
