// Package qdrant stores records in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
	"github.com/andrew/textbook-rag/pkg/vector"
)

// Payload keys
const (
	keyContent    = "page_content"
	keyMetadata   = "metadata"
	keySource     = "source"
	keyPageNumber = "page_number"
	keyType       = "type"
)

// Store is a vector.Store backed by one Qdrant collection
type Store struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	collection  string
}

var _ vector.Store = (*Store)(nil)

// Dial connects to the Qdrant gRPC endpoint at addr. apiKey is sent with
// every call when set.
func Dial(addr, collection, apiKey string) (*Store, error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if apiKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(apiKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	s := New(conn, collection)
	s.conn = conn
	logger.Debug("Connected to Qdrant at %s", addr)
	return s, nil
}

// New wraps an existing connection. Close does not close conn.
func New(conn grpc.ClientConnInterface, collection string) *Store {
	return &Store{
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		collection:  collection,
	}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Exists checks the collection list for our collection
func (s *Store) Exists(ctx context.Context) (bool, error) {
	collections, err := s.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}

	for _, col := range collections.GetCollections() {
		if col.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// Recreate deletes the collection if it exists and creates it again
func (s *Store) Recreate(ctx context.Context, dim int) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}

	if exists {
		logger.Debug("🗑️ Deleting existing collection: %s", s.collection)
		_, err := s.collections.Delete(ctx, &qdrantclient.DeleteCollection{
			CollectionName: s.collection,
		})
		if err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}

	logger.Debug("🆕 Creating collection %s (dim %d, cosine)", s.collection, dim)
	_, err = s.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(dim),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Upsert writes the records as points in a single request
func (s *Store) Upsert(ctx context.Context, records []models.Record, vectors [][]float32) error {
	if err := vector.CheckUpsert(records, vectors, 0); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrantclient.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: vectors[i]},
				},
			},
			Payload: toPayload(r),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search returns the k nearest points with their payloads
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	resp, err := s.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: s.collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search in Qdrant: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		r := fromPayload(point.GetPayload())
		r.ID = point.GetId().GetUuid()
		results = append(results, models.SearchResult{Record: r, Score: point.GetScore()})
	}
	return results, nil
}

// Close closes the connection opened by Dial
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func toPayload(r models.Record) map[string]*qdrantclient.Value {
	return map[string]*qdrantclient.Value{
		keyContent: stringValue(r.Content),
		keyMetadata: {Kind: &qdrantclient.Value_StructValue{StructValue: &qdrantclient.Struct{
			Fields: map[string]*qdrantclient.Value{
				keySource:     stringValue(r.Metadata.Source),
				keyPageNumber: {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(r.Metadata.PageNumber)}},
				keyType:       stringValue(r.Metadata.Type),
			},
		}}},
	}
}

func fromPayload(payload map[string]*qdrantclient.Value) models.Record {
	var r models.Record
	r.Content = payload[keyContent].GetStringValue()

	meta := payload[keyMetadata].GetStructValue().GetFields()
	r.Metadata.Source = meta[keySource].GetStringValue()
	r.Metadata.Type = meta[keyType].GetStringValue()

	page := meta[keyPageNumber]
	switch page.GetKind().(type) {
	case *qdrantclient.Value_IntegerValue:
		r.Metadata.PageNumber = int(page.GetIntegerValue())
	case *qdrantclient.Value_DoubleValue:
		r.Metadata.PageNumber = int(page.GetDoubleValue())
	}
	return r
}

func stringValue(s string) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: s}}
}
