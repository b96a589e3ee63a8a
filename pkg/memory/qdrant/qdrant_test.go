package qdrant

import (
	"context"
	"sort"
	"sync"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/jllopis/conductor/pkg/memory"
	"github.com/jllopis/conductor/pkg/memory/memorytest"
)

// fakeQdrant keeps points in memory and pages scrolls two points at a time.
type fakeQdrant struct {
	mu      sync.Mutex
	points  map[string]*pb.PointStruct
	created []string
	exists  bool
}

func newFake() *fakeQdrant {
	return &fakeQdrant{points: make(map[string]*pb.PointStruct)}
}

func (f *fakeQdrant) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range in.GetPoints() {
		f.points[p.GetId().GetUuid()] = p
	}
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakeQdrant) Get(_ context.Context, in *pb.GetPoints, _ ...grpc.CallOption) (*pb.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &pb.GetResponse{}
	for _, id := range in.GetIds() {
		if p, ok := f.points[id.GetUuid()]; ok {
			resp.Result = append(resp.Result, &pb.RetrievedPoint{Id: p.GetId(), Payload: p.GetPayload()})
		}
	}
	return resp, nil
}

func (f *fakeQdrant) Scroll(_ context.Context, in *pb.ScrollPoints, _ ...grpc.CallOption) (*pb.ScrollResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.points))
	for id, p := range f.points {
		if matches(p, in.GetFilter()) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	start := 0
	if off := in.GetOffset().GetUuid(); off != "" {
		start = sort.SearchStrings(ids, off)
	}
	end := start + 2
	resp := &pb.ScrollResponse{}
	if end < len(ids) {
		resp.NextPageOffset = pb.NewID(ids[end])
	} else {
		end = len(ids)
	}
	for _, id := range ids[start:end] {
		p := f.points[id]
		resp.Result = append(resp.Result, &pb.RetrievedPoint{Id: p.GetId(), Payload: p.GetPayload()})
	}
	return resp, nil
}

func matches(p *pb.PointStruct, filter *pb.Filter) bool {
	for _, cond := range filter.GetMust() {
		field := cond.GetField()
		want := field.GetMatch().GetKeyword()
		found := false
		for _, v := range p.GetPayload()[field.GetKey()].GetListValue().GetValues() {
			if v.GetStringValue() == want {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *fakeQdrant) CollectionExists(_ context.Context, _ *pb.CollectionExistsRequest, _ ...grpc.CallOption) (*pb.CollectionExistsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &pb.CollectionExistsResponse{Result: &pb.CollectionExists{Exists: f.exists}}, nil
}

func (f *fakeQdrant) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in.GetCollectionName())
	f.exists = true
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func TestStoreConformance(t *testing.T) {
	memorytest.Run(t, func(*testing.T) memory.Store {
		fake := newFake()
		return newStore(fake, fake, "")
	})
}

func TestEnsureCollection(t *testing.T) {
	fake := newFake()
	store := newStore(fake, fake, "memories")
	for i := 0; i < 2; i++ {
		if err := store.EnsureCollection(context.Background()); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	if len(fake.created) != 1 || fake.created[0] != "memories" {
		t.Fatalf("expected a single create, got %v", fake.created)
	}
}

func TestPointIDIsStable(t *testing.T) {
	if PointID("summary_1") != PointID("summary_1") {
		t.Fatal("point ids must be deterministic")
	}
	if PointID("a") == PointID("b") {
		t.Fatal("distinct keys must map to distinct ids")
	}
}
