package coldstorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
)

// GridFSStorage writes each archive as a GridFS file named after the stream.
// Re-archiving a stream adds a revision; reads return the newest.
type GridFSStorage struct {
	db     *mongo.Database
	bucket string
}

func NewGridFSStorage(db *mongo.Database, bucket string) *GridFSStorage {
	if bucket == "" {
		bucket = "archived_streams"
	}
	return &GridFSStorage{db: db, bucket: bucket}
}

// open returns a bucket bound to ctx's deadline. Buckets carry deadlines as
// state, so one is created per call.
func (s *GridFSStorage) open(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.bucket))
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", s.bucket, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := b.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
		if err := b.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (s *GridFSStorage) ArchiveStream(ctx context.Context, stream string, events []eventlog.RecordedEvent) error {
	data, err := marshal(events)
	if err != nil {
		return fmt.Errorf("archive %s: %w", stream, err)
	}
	b, err := s.open(ctx)
	if err != nil {
		return err
	}

	var last int64 = -1
	if n := len(events); n > 0 {
		last = events[n-1].Version
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{
		"stream":      stream,
		"events":      len(events),
		"lastVersion": last,
	})
	if _, err := b.UploadFromStream(stream, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("archive %s: %w", stream, err)
	}
	return nil
}

func (s *GridFSStorage) ReadArchive(ctx context.Context, stream string) ([]eventlog.RecordedEvent, error) {
	b, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := b.OpenDownloadStreamByName(stream)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, fmt.Errorf("read archive %s: %w", stream, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", stream, err)
	}
	defer ds.Close()

	data, err := io.ReadAll(ds)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", stream, err)
	}
	return unmarshal(data)
}
