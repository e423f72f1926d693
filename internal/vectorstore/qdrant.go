package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"notesearch/internal/contextutil"
	"notesearch/internal/service"
)

// QdrantStore implements Store using Qdrant over gRPC.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a new Qdrant vector store client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantStore(urlStr, apiKey, collection string) (*QdrantStore, error) {
	if collection == "" {
		return nil, &service.ConfigurationError{Setting: "COLLECTION", Message: "collection name is required"}
	}

	host, port, useTLS, err := grpcAddress(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: collection,
	}, nil
}

// grpcAddress derives the gRPC host and port from the Qdrant HTTP URL.
func grpcAddress(urlStr string) (host string, port int, useTLS bool, err error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, false, &service.ConfigurationError{Setting: "QDRANT_URL", Message: err.Error()}
	}

	host = parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port = 6334
	if parsedURL.Port() != "" {
		httpPort, convErr := strconv.Atoi(parsedURL.Port())
		if convErr == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}

	return host, port, parsedURL.Scheme == "https", nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureSchema ensures the collection exists with the given vector size and cosine distance.
func (s *QdrantStore) EnsureSchema(ctx context.Context, dims int) error {
	logger := contextutil.LoggerFromContext(ctx)

	if dims <= 0 {
		return &service.ConfigurationError{Setting: "EMBEDDING_DIMENSIONS", Message: "must be greater than 0"}
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return classifyGRPC("collection exists", fmt.Errorf("failed to check collection existence: %w", err))
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", s.collection, "vector_size", dims)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dims),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return classifyGRPC("create collection", fmt.Errorf("failed to create collection: %w", err))
		}
		logger.InfoContext(ctx, "collection created", "collection", s.collection, "vector_size", dims)
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return classifyGRPC("collection info", fmt.Errorf("failed to get collection info: %w", err))
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil || params.Size == 0 {
		return &service.ConfigurationError{
			Setting: "COLLECTION",
			Message: fmt.Sprintf("collection %s has no single unnamed vector config", s.collection),
		}
	}

	if err := validateSchema(int(params.Size), params.Distance == qdrant.Distance_Cosine, dims); err != nil {
		return err
	}

	logger.InfoContext(ctx, "collection validated", "collection", s.collection, "vector_size", dims)
	return nil
}

// validateSchema compares an existing collection with the expected shape.
func validateSchema(actualSize int, cosine bool, dims int) error {
	if actualSize != dims {
		return &service.ConfigurationError{
			Setting: "EMBEDDING_DIMENSIONS",
			Message: fmt.Sprintf("collection vector size mismatch: expected %d, got %d", dims, actualSize),
		}
	}
	if !cosine {
		return &service.ConfigurationError{
			Setting: "COLLECTION",
			Message: "collection distance metric is not cosine",
		}
	}
	return nil
}

// Upsert inserts or updates points in the collection.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		payload, err := qdrant.TryValueMap(point.Payload.Map())
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s: %w", point.ID, err)
		}
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: payload,
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         qdrantPoints,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", s.collection, "count", len(points), "error", err)
		return classifyGRPC("upsert", fmt.Errorf("failed to upsert points: %w", err))
	}

	logger.DebugContext(ctx, "upserted points", "collection", s.collection, "count", len(points))
	return nil
}

// Query performs a similarity search with an optional payload filter.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if topK <= 0 {
		return nil, fmt.Errorf("topK must be greater than 0")
	}

	limit := uint64(topK)
	queryReq := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildQdrantFilter(filter),
	}

	scoredPoints, err := s.client.Query(ctx, queryReq)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", s.collection, "top_k", topK, "error", err)
		return nil, classifyGRPC("query", fmt.Errorf("failed to search points: %w", err))
	}

	hits := make([]Hit, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		hits = append(hits, Hit{
			ID:      pointIDString(point.GetId()),
			Score:   point.GetScore(),
			Payload: convertPayloadToMap(point.GetPayload()),
		})
	}

	logger.DebugContext(ctx, "search completed", "collection", s.collection, "top_k", topK, "results", len(hits))
	return hits, nil
}

// ContentHashes fetches only the content_hash payload field for the given ids.
func (s *QdrantStore) ContentHashes(ctx context.Context, ids []string) (map[string]string, error) {
	hashes := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return hashes, nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayloadInclude(FieldContentHash),
	})
	if err != nil {
		return nil, classifyGRPC("get points", fmt.Errorf("failed to get points: %w", err))
	}

	for _, point := range points {
		if v, ok := point.GetPayload()[FieldContentHash]; ok {
			hashes[pointIDString(point.GetId())] = v.GetStringValue()
		}
	}
	return hashes, nil
}

// buildQdrantFilter translates a Filter into Qdrant must conditions.
func buildQdrantFilter(filter *Filter) *qdrant.Filter {
	if filter.IsEmpty() {
		return nil
	}

	var must []*qdrant.Condition
	if len(filter.Kinds) > 0 {
		must = append(must, qdrant.NewMatchKeywords(FieldKind, filter.Kinds...))
	}
	if filter.Heading != "" {
		must = append(must, qdrant.NewMatch(FieldTopHeading, filter.Heading))
	}
	return &qdrant.Filter{Must: must}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
