package index

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/ppiankov/originality/internal/model"
)

// --- Mocks ---

type mockPoints struct {
	stored     map[string]*pb.PointStruct
	upserts    []*pb.UpsertPoints
	deletes    []*pb.DeletePoints
	searches   []*pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
	upsertErr  error
}

func newMockPoints() *mockPoints {
	return &mockPoints{stored: make(map[string]*pb.PointStruct)}
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	m.upserts = append(m.upserts, in)
	for _, p := range in.GetPoints() {
		m.stored[p.GetId().GetUuid()] = p
	}
	return &pb.PointsOperationResponse{}, nil
}

func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deletes = append(m.deletes, in)
	return &pb.PointsOperationResponse{}, nil
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searches = append(m.searches, in)
	return m.searchResp, m.searchErr
}

func (m *mockPoints) Get(_ context.Context, in *pb.GetPoints, _ ...grpc.CallOption) (*pb.GetResponse, error) {
	resp := &pb.GetResponse{}
	for _, id := range in.GetIds() {
		if p, ok := m.stored[id.GetUuid()]; ok {
			resp.Result = append(resp.Result, &pb.RetrievedPoint{Id: p.GetId(), Payload: p.GetPayload()})
		}
	}
	return resp, nil
}

func (m *mockPoints) Count(_ context.Context, in *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	repo := in.GetFilter().GetMust()[0].GetField().GetMatch().GetKeyword()
	var n uint64
	for _, p := range m.stored {
		if p.GetPayload()[payloadRepoID].GetStringValue() == repo {
			n++
		}
	}
	return &pb.CountResponse{Result: &pb.CountResult{Count: n}}, nil
}

func (m *mockPoints) Scroll(_ context.Context, _ *pb.ScrollPoints, _ ...grpc.CallOption) (*pb.ScrollResponse, error) {
	resp := &pb.ScrollResponse{}
	for _, p := range m.stored {
		resp.Result = append(resp.Result, &pb.RetrievedPoint{Id: p.GetId(), Payload: p.GetPayload()})
	}
	return resp, nil
}

type mockCollections struct {
	names     []string
	created   []*pb.CreateCollection
	listErr   error
	createErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	resp := &pb.ListCollectionsResponse{}
	for _, n := range m.names {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: n})
	}
	return resp, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, in)
	m.names = append(m.names, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: true}, nil
}

// --- Tests ---

func TestQdrantStore_AppendCreatesCollectionAndDedupes(t *testing.T) {
	pts := newMockPoints()
	cols := &mockCollections{}
	s := newQdrantStore(pts, cols, "fragments", nil)
	ctx := context.Background()

	added, err := s.Append(ctx, "alpha", []model.IndexEntry{
		{Text: "one", Vector: []float32{1, 0}},
		{Text: "two", Vector: []float32{0, 1}},
		{Text: "one", Vector: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 added, got %d", added)
	}
	if len(cols.created) != 1 {
		t.Fatalf("expected collection to be created once, got %d", len(cols.created))
	}
	params := cols.created[0].GetVectorsConfig().GetParams()
	if params.GetDistance() != pb.Distance_Euclid || params.GetSize() != 2 {
		t.Errorf("expected Euclid/2, got %v/%d", params.GetDistance(), params.GetSize())
	}

	added, err = s.Append(ctx, "alpha", []model.IndexEntry{{Text: "two", Vector: []float32{0, 1}}})
	if err != nil {
		t.Fatalf("second Append failed: %v", err)
	}
	if added != 0 {
		t.Errorf("expected re-append to add nothing, got %d", added)
	}
	if len(pts.upserts) != 1 {
		t.Errorf("expected a single upsert call, got %d", len(pts.upserts))
	}
}

func TestQdrantStore_PointIDIsDeterministic(t *testing.T) {
	if PointID("a", "text") != PointID("a", "text") {
		t.Error("expected stable point id")
	}
	if PointID("a", "text") == PointID("b", "text") {
		t.Error("expected repository to change the point id")
	}
}

func TestQdrantStore_SearchFiltersOutOwnRepository(t *testing.T) {
	pts := newMockPoints()
	pts.searchResp = &pb.SearchResponse{
		Result: []*pb.ScoredPoint{
			{
				Id:    uuidPoint("p2"),
				Score: 2.5,
				Payload: map[string]*pb.Value{
					payloadRepoID:   stringValue("beta"),
					payloadText:     stringValue("far"),
					payloadPosition: {Kind: &pb.Value_IntegerValue{IntegerValue: 3}},
				},
			},
			{
				Id:    uuidPoint("p1"),
				Score: 0.5,
				Payload: map[string]*pb.Value{
					payloadRepoID: stringValue("gamma"),
					payloadText:   stringValue("near"),
				},
			},
		},
	}
	s := newQdrantStore(pts, &mockCollections{names: []string{"fragments"}}, "fragments", nil)

	res, err := s.Search(context.Background(), "alpha", [][]float32{{1, 0}}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(pts.searches) != 1 {
		t.Fatalf("expected 1 search call, got %d", len(pts.searches))
	}
	mustNot := pts.searches[0].GetFilter().GetMustNot()
	if len(mustNot) != 1 || mustNot[0].GetField().GetMatch().GetKeyword() != "alpha" {
		t.Errorf("expected must_not repo_id=alpha filter, got %v", pts.searches[0].GetFilter())
	}
	if len(res[0]) != 2 || res[0][0].Entry.Text != "near" || res[0][1].Position != 3 {
		t.Errorf("unexpected neighbors: %+v", res[0])
	}
}

func TestQdrantStore_QueryUsesMustFilter(t *testing.T) {
	pts := newMockPoints()
	pts.searchResp = &pb.SearchResponse{}
	s := newQdrantStore(pts, &mockCollections{names: []string{"fragments"}}, "fragments", nil)

	if _, err := s.Query(context.Background(), "alpha", [][]float32{{1}}, 1); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	must := pts.searches[0].GetFilter().GetMust()
	if len(must) != 1 || must[0].GetField().GetKey() != payloadRepoID {
		t.Errorf("expected must repo_id filter, got %v", pts.searches[0].GetFilter())
	}
}

func TestQdrantStore_RepositoryIDIgnoresCase(t *testing.T) {
	pts := newMockPoints()
	pts.searchResp = &pb.SearchResponse{}
	s := newQdrantStore(pts, &mockCollections{}, "fragments", nil)
	ctx := context.Background()

	if _, err := s.Append(ctx, "Foo/Bar", []model.IndexEntry{{Text: "one", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	added, err := s.Append(ctx, "foo/bar", []model.IndexEntry{{Text: "one", Vector: []float32{1, 0}}})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if added != 0 {
		t.Errorf("expected differently cased id to dedupe, added %d", added)
	}
	for _, p := range pts.stored {
		if got := p.GetPayload()[payloadRepoID].GetStringValue(); got != "foo/bar" {
			t.Errorf("expected folded repo_id payload, got %q", got)
		}
	}

	if _, err := s.Search(ctx, "FOO/bar", [][]float32{{1, 0}}, 1); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	mustNot := pts.searches[0].GetFilter().GetMustNot()
	if len(mustNot) != 1 || mustNot[0].GetField().GetMatch().GetKeyword() != "foo/bar" {
		t.Errorf("expected must_not repo_id=foo/bar, got %v", pts.searches[0].GetFilter())
	}
}

func TestQdrantStore_MissingCollectionQueriesEmpty(t *testing.T) {
	pts := newMockPoints()
	s := newQdrantStore(pts, &mockCollections{}, "fragments", nil)

	res, err := s.Search(context.Background(), "alpha", [][]float32{{1}}, 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res) != 1 || len(res[0]) != 0 {
		t.Errorf("expected empty result, got %v", res)
	}
	if len(pts.searches) != 0 {
		t.Error("expected no search call without a collection")
	}
}

func TestQdrantStore_Errors(t *testing.T) {
	pts := newMockPoints()
	pts.searchErr = errors.New("rpc fail")
	s := newQdrantStore(pts, &mockCollections{names: []string{"fragments"}}, "fragments", nil)
	if _, err := s.Search(context.Background(), "alpha", [][]float32{{1}}, 1); err == nil {
		t.Error("expected search error")
	}

	s = newQdrantStore(newMockPoints(), &mockCollections{listErr: errors.New("down")}, "fragments", nil)
	if _, err := s.Append(context.Background(), "alpha", []model.IndexEntry{{Text: "x", Vector: []float32{1}}}); err == nil {
		t.Error("expected list error to surface from Append")
	}

	s = newQdrantStore(newMockPoints(), &mockCollections{}, "fragments", nil)
	_, err := s.Append(context.Background(), "alpha", []model.IndexEntry{
		{Text: "x", Vector: []float32{1}},
		{Text: "y", Vector: []float32{1, 2}},
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestQdrantStore_RepositoriesAndDelete(t *testing.T) {
	pts := newMockPoints()
	s := newQdrantStore(pts, &mockCollections{}, "fragments", nil)
	ctx := context.Background()

	_, _ = s.Append(ctx, "b", []model.IndexEntry{{Text: "x", Vector: []float32{1}}})
	_, _ = s.Append(ctx, "a", []model.IndexEntry{{Text: "y", Vector: []float32{2}}, {Text: "z", Vector: []float32{3}}})

	repos, err := s.Repositories(ctx)
	if err != nil {
		t.Fatalf("Repositories failed: %v", err)
	}
	if len(repos) != 2 || repos[0] != "a" || repos[1] != "b" {
		t.Errorf("expected [a b], got %v", repos)
	}

	stats, _ := s.Stats(ctx)
	if len(stats) != 2 || stats[0].Entries != 2 || stats[0].Dimension != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(pts.deletes) != 1 {
		t.Fatalf("expected 1 delete call, got %d", len(pts.deletes))
	}
	filter := pts.deletes[0].GetPoints().GetFilter()
	if filter.GetMust()[0].GetField().GetMatch().GetKeyword() != "a" {
		t.Errorf("expected delete filtered on repo a, got %v", filter)
	}
}
