package readmodel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	archivableDaysCollection = "archivable_days"
	availableSlotsCollection = "available_slots"
	bookedSlotsCollection    = "booked_slots"
)

type archivableDayDoc struct {
	ID   string    `bson:"_id"`
	Date time.Time `bson:"date"`
}

type availableSlotDoc struct {
	ID        string    `bson:"_id"`
	DayID     string    `bson:"dayId"`
	Date      string    `bson:"date"`
	StartTime time.Time `bson:"startTime"`
	Duration  int64     `bson:"durationSeconds"`
	IsBooked  bool      `bson:"isBooked"`
	Position  int64     `bson:"position"`
}

type bookedSlotDoc struct {
	ID        string `bson:"_id"`
	DayID     string `bson:"dayId"`
	Year      int    `bson:"year"`
	Month     int    `bson:"month"`
	IsBooked  bool   `bson:"isBooked"`
	PatientID string `bson:"patientId"`
	Position  int64  `bson:"position"`
}

// EnsureIndexes creates the indexes the queries below rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string]mongo.IndexModel{
		archivableDaysCollection: {Keys: bson.D{{Key: "date", Value: 1}}},
		availableSlotsCollection: {Keys: bson.D{{Key: "date", Value: 1}, {Key: "isBooked", Value: 1}}},
		bookedSlotsCollection:    {Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}}},
	}
	for coll, idx := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateOne(ctx, idx); err != nil {
			return fmt.Errorf("create index on %s: %w", coll, err)
		}
	}
	return nil
}

// insertIfAbsent upserts doc without touching an existing row.
func insertIfAbsent(ctx context.Context, coll *mongo.Collection, id string, doc any) error {
	_, err := coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

// guarded matches a row only when position is newer than the row's own.
func guarded(id string, position uint64) bson.M {
	return bson.M{"_id": id, "position": bson.M{"$lt": int64(position)}}
}

type MongoArchivableDays struct {
	coll *mongo.Collection
}

func NewMongoArchivableDays(db *mongo.Database) *MongoArchivableDays {
	return &MongoArchivableDays{coll: db.Collection(archivableDaysCollection)}
}

func (r *MongoArchivableDays) Add(ctx context.Context, d ArchivableDay) error {
	if err := insertIfAbsent(ctx, r.coll, d.ID, archivableDayDoc{ID: d.ID, Date: d.Date}); err != nil {
		return fmt.Errorf("add archivable day %s: %w", d.ID, err)
	}
	return nil
}

func (r *MongoArchivableDays) ScheduledOnOrBefore(ctx context.Context, date time.Time) ([]ArchivableDay, error) {
	cur, err := r.coll.Find(ctx, bson.M{"date": bson.M{"$lte": date}}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find archivable days: %w", err)
	}
	var docs []archivableDayDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode archivable days: %w", err)
	}
	out := make([]ArchivableDay, len(docs))
	for i, d := range docs {
		out[i] = ArchivableDay{ID: d.ID, Date: d.Date.UTC()}
	}
	return out, nil
}

type MongoAvailableSlots struct {
	coll *mongo.Collection
}

func NewMongoAvailableSlots(db *mongo.Database) *MongoAvailableSlots {
	return &MongoAvailableSlots{coll: db.Collection(availableSlotsCollection)}
}

func (r *MongoAvailableSlots) Add(ctx context.Context, s AvailableSlot) error {
	doc := availableSlotDoc{
		ID:        s.ID,
		DayID:     s.DayID,
		Date:      s.Date,
		StartTime: s.StartTime,
		Duration:  int64(s.Duration / time.Second),
		IsBooked:  s.IsBooked,
		Position:  int64(s.Position),
	}
	if err := insertIfAbsent(ctx, r.coll, s.ID, doc); err != nil {
		return fmt.Errorf("add available slot %s: %w", s.ID, err)
	}
	return nil
}

func (r *MongoAvailableSlots) SetBooked(ctx context.Context, id string, booked bool, position uint64) error {
	_, err := r.coll.UpdateOne(ctx, guarded(id, position), bson.M{
		"$set": bson.M{"isBooked": booked, "position": int64(position)},
	})
	if err != nil {
		return fmt.Errorf("update available slot %s: %w", id, err)
	}
	return nil
}

func (r *MongoAvailableSlots) Delete(ctx context.Context, id string, position uint64) error {
	if _, err := r.coll.DeleteOne(ctx, guarded(id, position)); err != nil {
		return fmt.Errorf("delete available slot %s: %w", id, err)
	}
	return nil
}

func (r *MongoAvailableSlots) AvailableOn(ctx context.Context, date string) ([]AvailableSlot, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"date": date, "isBooked": false},
		options.Find().SetSort(bson.M{"startTime": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find available slots on %s: %w", date, err)
	}
	var docs []availableSlotDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode available slots: %w", err)
	}
	out := make([]AvailableSlot, len(docs))
	for i, d := range docs {
		out[i] = AvailableSlot{
			ID:        d.ID,
			DayID:     d.DayID,
			Date:      d.Date,
			StartTime: d.StartTime.UTC(),
			Duration:  time.Duration(d.Duration) * time.Second,
			IsBooked:  d.IsBooked,
			Position:  uint64(d.Position),
		}
	}
	return out, nil
}

type MongoBookedSlots struct {
	coll *mongo.Collection
}

func NewMongoBookedSlots(db *mongo.Database) *MongoBookedSlots {
	return &MongoBookedSlots{coll: db.Collection(bookedSlotsCollection)}
}

func (r *MongoBookedSlots) Add(ctx context.Context, s BookedSlot) error {
	doc := bookedSlotDoc{
		ID:        s.ID,
		DayID:     s.DayID,
		Year:      s.Year,
		Month:     s.Month,
		IsBooked:  s.IsBooked,
		PatientID: s.PatientID,
		Position:  int64(s.Position),
	}
	if err := insertIfAbsent(ctx, r.coll, s.ID, doc); err != nil {
		return fmt.Errorf("add booked slot %s: %w", s.ID, err)
	}
	return nil
}

func (r *MongoBookedSlots) Get(ctx context.Context, id string) (BookedSlot, error) {
	var doc bookedSlotDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return BookedSlot{}, ErrNotFound
	}
	if err != nil {
		return BookedSlot{}, fmt.Errorf("get booked slot %s: %w", id, err)
	}
	return BookedSlot{
		ID:        doc.ID,
		DayID:     doc.DayID,
		Year:      doc.Year,
		Month:     doc.Month,
		IsBooked:  doc.IsBooked,
		PatientID: doc.PatientID,
		Position:  uint64(doc.Position),
	}, nil
}

func (r *MongoBookedSlots) MarkBooked(ctx context.Context, id, patientID string, position uint64) error {
	return r.set(ctx, id, position, bson.M{"isBooked": true, "patientId": patientID})
}

func (r *MongoBookedSlots) MarkAvailable(ctx context.Context, id string, position uint64) error {
	return r.set(ctx, id, position, bson.M{"isBooked": false, "patientId": ""})
}

func (r *MongoBookedSlots) set(ctx context.Context, id string, position uint64, fields bson.M) error {
	fields["position"] = int64(position)
	if _, err := r.coll.UpdateOne(ctx, guarded(id, position), bson.M{"$set": fields}); err != nil {
		return fmt.Errorf("update booked slot %s: %w", id, err)
	}
	return nil
}

func (r *MongoBookedSlots) Delete(ctx context.Context, id string, position uint64) error {
	if _, err := r.coll.DeleteOne(ctx, guarded(id, position)); err != nil {
		return fmt.Errorf("delete booked slot %s: %w", id, err)
	}
	return nil
}

func (r *MongoBookedSlots) CountBooked(ctx context.Context, patientID string, year, month int) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"patientId": patientID,
		"year":      year,
		"month":     month,
		"isBooked":  true,
	})
	if err != nil {
		return 0, fmt.Errorf("count bookings of %s: %w", patientID, err)
	}
	return int(n), nil
}
