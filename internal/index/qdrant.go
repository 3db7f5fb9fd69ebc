package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ppiankov/originality/internal/model"
)

const (
	payloadRepoID   = "repo_id"
	payloadText     = "text"
	payloadHash     = "text_hash"
	payloadPosition = "position"

	scrollPageSize = 256
)

var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ppiankov/originality/index"))

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// QdrantStore keeps every repository in one shared collection and separates
// them with a repo_id payload filter. Point ids are derived from repository
// and content, so re-appending the same text is a no-op.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	logger      *slog.Logger
	locks       *keyedMutex

	mu     sync.Mutex
	exists bool
	dim    int
}

// NewQdrantStore connects to Qdrant at the given gRPC address
func NewQdrantStore(addr, collection string, logger *slog.Logger) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	s := newQdrantStore(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, logger)
	s.conn = conn
	return s, nil
}

func newQdrantStore(points pointsAPI, collections collectionsAPI, collection string, logger *slog.Logger) *QdrantStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QdrantStore{
		points:      points,
		collections: collections,
		collection:  collection,
		logger:      logger,
		locks:       newKeyedMutex(),
	}
}

// Close closes the gRPC connection
func (s *QdrantStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Append upserts entries not yet stored for the repository
func (s *QdrantStore) Append(ctx context.Context, repoID string, entries []model.IndexEntry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	repoID = CanonicalID(repoID)
	dim := len(entries[0].Vector)
	for _, e := range entries {
		if len(e.Vector) == 0 || len(e.Vector) != dim {
			return 0, fmt.Errorf("append to %s: mixed dimensions %d and %d: %w", repoID, dim, len(e.Vector), ErrDimensionMismatch)
		}
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(repoID)
	defer unlock()

	ids := make([]*pb.PointId, 0, len(entries))
	fresh := make([]model.IndexEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		id := PointID(repoID, e.Text)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, uuidPoint(id))
		fresh = append(fresh, e)
	}

	existing, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.collection,
		Ids:            ids,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant get: %w", err)
	}
	stored := make(map[string]struct{}, len(existing.GetResult()))
	for _, p := range existing.GetResult() {
		stored[p.GetId().GetUuid()] = struct{}{}
	}

	base, err := s.count(ctx, repoID)
	if err != nil {
		return 0, err
	}

	points := make([]*pb.PointStruct, 0, len(fresh))
	for _, e := range fresh {
		id := PointID(repoID, e.Text)
		if _, ok := stored[id]; ok {
			continue
		}
		points = append(points, &pb.PointStruct{
			Id: uuidPoint(id),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}},
			},
			Payload: map[string]*pb.Value{
				payloadRepoID:   stringValue(repoID),
				payloadText:     stringValue(e.Text),
				payloadHash:     stringValue(TextHash(e.Text)),
				payloadPosition: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(base) + int64(len(points))}},
			},
		})
	}
	if len(points) == 0 {
		return 0, nil
	}

	wait := true
	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return 0, fmt.Errorf("qdrant upsert %d points: %w", len(points), err)
	}
	return len(points), nil
}

// Query searches one repository's points
func (s *QdrantStore) Query(ctx context.Context, repoID string, vectors [][]float32, k int) ([][]Neighbor, error) {
	return s.search(ctx, vectors, k, &pb.Filter{Must: []*pb.Condition{fieldMatch(payloadRepoID, CanonicalID(repoID))}})
}

// Search searches every repository except excludeRepoID
func (s *QdrantStore) Search(ctx context.Context, excludeRepoID string, vectors [][]float32, k int) ([][]Neighbor, error) {
	return s.search(ctx, vectors, k, &pb.Filter{MustNot: []*pb.Condition{fieldMatch(payloadRepoID, CanonicalID(excludeRepoID))}})
}

// Delete removes every point of the repository
func (s *QdrantStore) Delete(ctx context.Context, repoID string) error {
	ok, err := s.collectionExists(ctx)
	if err != nil || !ok {
		return err
	}

	repoID = CanonicalID(repoID)
	unlock := s.locks.Lock(repoID)
	defer unlock()

	wait := true
	_, err = s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{Must: []*pb.Condition{fieldMatch(payloadRepoID, repoID)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete %s: %w", repoID, err)
	}
	return nil
}

// Repositories scrolls the collection for distinct repo_id payloads
func (s *QdrantStore) Repositories(ctx context.Context) ([]string, error) {
	counts, err := s.scrollRepos(ctx)
	if err != nil {
		return nil, err
	}
	repos := make([]string, 0, len(counts))
	for id := range counts {
		repos = append(repos, id)
	}
	sort.Strings(repos)
	return repos, nil
}

// Stats reports point counts per repository
func (s *QdrantStore) Stats(ctx context.Context) ([]RepoStats, error) {
	counts, err := s.scrollRepos(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()

	stats := make([]RepoStats, 0, len(counts))
	for id, n := range counts {
		stats = append(stats, RepoStats{RepoID: id, Entries: n, Dimension: dim})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].RepoID < stats[j].RepoID })
	return stats, nil
}

func (s *QdrantStore) search(ctx context.Context, vectors [][]float32, k int, filter *pb.Filter) ([][]Neighbor, error) {
	results := emptyResults(len(vectors))
	ok, err := s.collectionExists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || k <= 0 {
		return results, nil
	}

	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()

	for i, v := range vectors {
		if dim > 0 && len(v) != dim {
			return nil, fmt.Errorf("query of dimension %d against collection of dimension %d: %w", len(v), dim, ErrDimensionMismatch)
		}
		resp, err := s.points.Search(ctx, &pb.SearchPoints{
			CollectionName: s.collection,
			Vector:         v,
			Limit:          uint64(k),
			Filter:         filter,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant search: %w", err)
		}
		for _, p := range resp.GetResult() {
			payload := p.GetPayload()
			repo := payload[payloadRepoID].GetStringValue()
			results[i] = append(results[i], Neighbor{
				RepoID:   repo,
				Position: int(payload[payloadPosition].GetIntegerValue()),
				Distance: float64(p.GetScore()),
				Entry: model.IndexEntry{
					Text:   payload[payloadText].GetStringValue(),
					RepoID: repo,
				},
			})
		}
		sort.SliceStable(results[i], func(a, b int) bool {
			return results[i][a].Distance < results[i][b].Distance
		})
	}
	return results, nil
}

func (s *QdrantStore) count(ctx context.Context, repoID string) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Filter:         &pb.Filter{Must: []*pb.Condition{fieldMatch(payloadRepoID, repoID)}},
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count %s: %w", repoID, err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (s *QdrantStore) scrollRepos(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	ok, err := s.collectionExists(ctx)
	if err != nil || !ok {
		return counts, err
	}

	limit := uint32(scrollPageSize)
	var offset *pb.PointId
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: []string{payloadRepoID}},
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll: %w", err)
		}
		for _, p := range resp.GetResult() {
			counts[p.GetPayload()[payloadRepoID].GetStringValue()]++
		}
		offset = resp.GetNextPageOffset()
		if offset == nil || len(resp.GetResult()) == 0 {
			return counts, nil
		}
	}
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	known := s.exists
	s.mu.Unlock()
	if known {
		return true, nil
	}

	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("qdrant list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			s.mu.Lock()
			s.exists = true
			s.mu.Unlock()
			return true, nil
		}
	}
	return false, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dim int) error {
	ok, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		_, err = s.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     uint64(dim),
						Distance: pb.Distance_Euclid,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("qdrant create collection %s: %w", s.collection, err)
		}
		s.logger.Info("created qdrant collection", "collection", s.collection, "dimension", dim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = true
	if s.dim == 0 {
		s.dim = dim
	} else if s.dim != dim {
		return fmt.Errorf("collection %s has dimension %d, got %d: %w", s.collection, s.dim, dim, ErrDimensionMismatch)
	}
	return nil
}

// PointID derives the deterministic point id of a repository's text
func PointID(repoID, text string) string {
	return uuid.NewSHA1(pointNamespace, []byte(repoID+":"+TextHash(text))).String()
}

func uuidPoint(id string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
