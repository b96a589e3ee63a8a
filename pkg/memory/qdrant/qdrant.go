// Package qdrant stores memory entries as payload-only points of a Qdrant
// collection.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/memory"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "conductor_memory"

const scrollPage = 256

// keyNamespace derives point ids from entry keys, so a write with an
// existing key overwrites the same point.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/jllopis/conductor/memory"))

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	CollectionExists(ctx context.Context, in *pb.CollectionExistsRequest, opts ...grpc.CallOption) (*pb.CollectionExistsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store implements memory.Store on Qdrant. Entries carry a one-dimensional
// placeholder vector; all queries go through payload filters.
type Store struct {
	points      pointsAPI
	collections collectionsAPI
	collection  string
	conn        *grpc.ClientConn
}

// New connects to a Qdrant gRPC endpoint such as "localhost:6334".
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.New(errors.CodeTransportError, "connect qdrant", err).WithContext("addr", addr)
	}
	s := newStore(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	s.conn = conn
	return s, nil
}

func newStore(points pointsAPI, collections collectionsAPI, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{points: points, collections: collections, collection: collection}
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the collection when it does not exist yet.
func (s *Store) EnsureCollection(ctx context.Context) error {
	resp, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return errors.New(errors.CodeMemoryError, "check collection", err).WithContext("collection", s.collection)
	}
	if resp.GetResult().GetExists() {
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     1,
			Distance: pb.Distance_Dot,
		}),
	})
	if err != nil {
		return errors.New(errors.CodeMemoryError, "create collection", err).WithContext("collection", s.collection)
	}
	return nil
}

// PointID returns the point id used for key.
func PointID(key string) string {
	return uuid.NewSHA1(keyNamespace, []byte(key)).String()
}

// Write implements memory.Store.
func (s *Store) Write(ctx context.Context, entry memory.Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	tags := make([]*pb.Value, 0, len(entry.Tags))
	seen := make(map[string]bool, len(entry.Tags))
	for _, t := range entry.Tags {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, pb.NewValueString(t))
		}
	}
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id:      pb.NewID(PointID(entry.Key)),
			Vectors: pb.NewVectors(1),
			Payload: map[string]*pb.Value{
				"key":   pb.NewValueString(entry.Key),
				"value": pb.NewValueString(entry.Value),
				"kind":  pb.NewValueString(entry.Kind),
				"ts":    pb.NewValueInt(entry.Timestamp.UnixNano()),
				"tags":  pb.NewValueFromList(tags...),
			},
		}},
	})
	if err != nil {
		return errors.New(errors.CodeMemoryError, "upsert entry", err).WithContext("key", entry.Key)
	}
	return nil
}

// ReadByKey implements memory.Store.
func (s *Store) ReadByKey(ctx context.Context, key string) (memory.Entry, bool, error) {
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.collection,
		Ids:            []*pb.PointId{pb.NewID(PointID(key))},
		WithPayload:    pb.NewWithPayload(true),
	})
	if err != nil {
		return memory.Entry{}, false, errors.New(errors.CodeMemoryError, "get entry", err).WithContext("key", key)
	}
	for _, p := range resp.GetResult() {
		entry := fromPayload(p.GetPayload())
		if entry.Key == key {
			return entry, true, nil
		}
	}
	return memory.Entry{}, false, nil
}

// ReadRecent implements memory.Store. Ordering happens client side.
func (s *Store) ReadRecent(ctx context.Context, limit int) ([]memory.Entry, error) {
	entries, err := s.scroll(ctx, nil)
	if err != nil {
		return nil, err
	}
	memory.SortRecent(entries)
	return memory.Truncate(entries, limit), nil
}

// SearchByTag implements memory.Store.
func (s *Store) SearchByTag(ctx context.Context, tag string) ([]memory.Entry, error) {
	entries, err := s.scroll(ctx, &pb.Filter{Must: []*pb.Condition{pb.NewMatchKeyword("tags", tag)}})
	if err != nil {
		return nil, err
	}
	// Keyword matches are exact; this guards against collections indexed as text.
	out := entries[:0]
	for _, e := range entries {
		if e.HasTag(tag) {
			out = append(out, e)
		}
	}
	memory.SortRecent(out)
	return out, nil
}

func (s *Store) scroll(ctx context.Context, filter *pb.Filter) ([]memory.Entry, error) {
	var (
		entries []memory.Entry
		offset  *pb.PointId
	)
	limit := uint32(scrollPage)
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    pb.NewWithPayload(true),
		})
		if err != nil {
			return nil, errors.New(errors.CodeMemoryError, "scroll entries", err).WithContext("collection", s.collection)
		}
		for _, p := range resp.GetResult() {
			entries = append(entries, fromPayload(p.GetPayload()))
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return entries, nil
		}
	}
}

func fromPayload(payload map[string]*pb.Value) memory.Entry {
	entry := memory.Entry{
		Key:       payload["key"].GetStringValue(),
		Value:     payload["value"].GetStringValue(),
		Kind:      payload["kind"].GetStringValue(),
		Timestamp: time.Unix(0, payload["ts"].GetIntegerValue()).UTC(),
	}
	for _, v := range payload["tags"].GetListValue().GetValues() {
		entry.Tags = append(entry.Tags, v.GetStringValue())
	}
	return entry
}

// String describes the store for logs.
func (s *Store) String() string {
	return fmt.Sprintf("qdrant(%s)", s.collection)
}

var _ memory.Store = (*Store)(nil)
