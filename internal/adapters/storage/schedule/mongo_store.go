package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mccenter/internal/domain/apperr"
	domain "mccenter/internal/domain/schedule"
)

// CollectionName is the MongoDB collection holding schedule documents.
const CollectionName = "class_schedules"

// scheduleDoc is the stored shape of a ClassSchedule: one document with the
// sessions embedded as an array.
type scheduleDoc struct {
	ID              string            `bson:"_id"`
	CourseID        string            `bson:"courseId"`
	ClassName       string            `bson:"className"`
	StartDate       string            `bson:"startDate"`
	EndDate         string            `bson:"endDate"`
	WeeklyPattern   []domain.Slot     `bson:"weeklyPattern"`
	Locations       []string          `bson:"locations"`
	Instructor      domain.Instructor `bson:"instructor"`
	MaxStudents     int               `bson:"maxStudents"`
	CurrentStudents int               `bson:"currentStudents"`
	Status          string            `bson:"status"`
	TotalSessions   int               `bson:"totalSessions"`
	Sessions        []domain.Session  `bson:"sessions"`
	IsActive        bool              `bson:"isActive"`
	IsDeleted       bool              `bson:"isDeleted"`
	Version         int               `bson:"version"`
	CreatedAt       time.Time         `bson:"createdAt"`
	UpdatedAt       time.Time         `bson:"updatedAt"`
}

func toDoc(cs domain.ClassSchedule) scheduleDoc {
	return scheduleDoc{
		ID: cs.ID, CourseID: cs.CourseID, ClassName: cs.ClassName,
		StartDate: cs.StartDate, EndDate: cs.EndDate,
		WeeklyPattern: nonNil(cs.WeeklyPattern), Locations: nonNil(cs.Locations),
		Instructor: cs.Instructor, MaxStudents: cs.MaxStudents, CurrentStudents: cs.CurrentStudents,
		Status: cs.Status, TotalSessions: cs.TotalSessions, Sessions: nonNil(cs.Sessions),
		IsActive: cs.IsActive, IsDeleted: cs.IsDeleted, Version: cs.Version,
		CreatedAt: cs.CreatedAt.UTC(), UpdatedAt: cs.UpdatedAt.UTC(),
	}
}

func (d scheduleDoc) toDomain() domain.ClassSchedule {
	return domain.ClassSchedule{
		ID: d.ID, CourseID: d.CourseID, ClassName: d.ClassName,
		StartDate: d.StartDate, EndDate: d.EndDate,
		WeeklyPattern: d.WeeklyPattern, Locations: d.Locations,
		Instructor: d.Instructor, MaxStudents: d.MaxStudents, CurrentStudents: d.CurrentStudents,
		Status: d.Status, TotalSessions: d.TotalSessions, Sessions: d.Sessions,
		IsActive: d.IsActive, IsDeleted: d.IsDeleted, Version: d.Version,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a schedule store over db.CollectionName.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the indexes the calendar queries rely on.
// PRE: collection is reachable
// POST: indexes exist; existing ones are left untouched
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "isActive", Value: 1}, {Key: "startDate", Value: 1}}},
		{Keys: bson.D{{Key: "sessions.date", Value: 1}}},
	})
	return err
}

// GetByID retrieves a schedule by its ID.
// PRE: id is non-empty
// POST: Returns the schedule or an apperr.NotFoundError
func (s *MongoStore) GetByID(ctx context.Context, id string) (domain.ClassSchedule, error) {
	var doc scheduleDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ClassSchedule{}, apperr.NotFound("schedule", id)
	}
	if err != nil {
		return domain.ClassSchedule{}, fmt.Errorf("find schedule %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

// Save inserts a new schedule or replaces the stored one when its version
// still matches.
// PRE: value has been validated; value.Version is the version last read
// POST: Document stored with version = value.Version+1, or ErrVersionConflict
func (s *MongoStore) Save(ctx context.Context, value domain.ClassSchedule) error {
	expected := value.Version
	doc := toDoc(value)
	doc.Version = expected + 1

	if expected == 0 {
		_, err := s.coll.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrVersionConflict
		}
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		return nil
	}

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": value.ID, "version": expected}, doc)
	if err != nil {
		return fmt.Errorf("replace schedule: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// SoftDelete flags a schedule as deleted and bumps its version.
// PRE: id is non-empty
// POST: isDeleted = true, or an apperr.NotFoundError
func (s *MongoStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{"isDeleted": true, "updatedAt": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("schedule", id)
	}
	return nil
}

// List returns every non-deleted schedule.
func (s *MongoStore) List(ctx context.Context) ([]domain.ClassSchedule, error) {
	return s.find(ctx, bson.M{"isDeleted": false},
		bson.D{{Key: "startDate", Value: 1}, {Key: "className", Value: 1}})
}

// ListActiveOnDate returns active, non-deleted schedules with a session on date.
func (s *MongoStore) ListActiveOnDate(ctx context.Context, date string) ([]domain.ClassSchedule, error) {
	return s.find(ctx, bson.M{
		"isActive":      true,
		"isDeleted":     false,
		"sessions.date": date,
	}, bson.D{{Key: "className", Value: 1}})
}

// ListActiveInRange returns active, non-deleted schedules with a session in
// [from, to] or a start date in [from, to].
func (s *MongoStore) ListActiveInRange(ctx context.Context, from, to string) ([]domain.ClassSchedule, error) {
	inRange := bson.M{"$gte": from, "$lte": to}
	return s.find(ctx, bson.M{
		"isActive":  true,
		"isDeleted": false,
		"$or": bson.A{
			bson.M{"sessions": bson.M{"$elemMatch": bson.M{"date": inRange}}},
			bson.M{"startDate": inRange},
		},
	}, bson.D{{Key: "startDate", Value: 1}, {Key: "className", Value: 1}})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, sort bson.D) ([]domain.ClassSchedule, error) {
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("find schedules: %w", err)
	}
	defer cursor.Close(ctx)

	out := []domain.ClassSchedule{}
	for cursor.Next(ctx) {
		var doc scheduleDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cursor.Err()
}
