// Package qdrant provides a VectorIndex adapter backed by a Qdrant
// server over gRPC. It is an alternative to the default file-backed
// index for sessions that outgrow a single process.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// payloadDocID is the payload field carrying the owning document ID,
// used for filtered queries and bulk deletes.
const payloadDocID = "document_id"

// Index stores chunk vectors in a Qdrant collection.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
}

// New connects to Qdrant at addr and ensures the collection exists with
// cosine distance and the given dimensionality.
func New(ctx context.Context, addr, collection string, dimension int) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial qdrant %s: %v", domain.ErrIndexUnavailable, addr, err)
	}

	idx := &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimension:   dimension,
	}

	if err := idx.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) ensureCollection(ctx context.Context) error {
	list, err := idx.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", domain.ErrIndexUnavailable, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == idx.collection {
			return nil
		}
	}

	_, err = idx.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: idx.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(idx.dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %v", domain.ErrIndexUnavailable, idx.collection, err)
	}
	return nil
}

// Upsert stores or replaces the vector for a chunk. Qdrant upserts by
// point ID, which gives the idempotency the write path relies on.
func (idx *Index) Upsert(ctx context.Context, chunkID, documentID string, embedding []float32) error {
	if len(embedding) != idx.dimension {
		return fmt.Errorf("qdrant: embedding dimension %d, collection expects %d", len(embedding), idx.dimension)
	}

	wait := true
	_, err := idx.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: idx.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: chunkID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: embedding}},
			},
			Payload: map[string]*pb.Value{
				payloadDocID: {Kind: &pb.Value_StringValue{StringValue: documentID}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("%w: upsert point %s: %v", domain.ErrIndexUnavailable, chunkID, err)
	}
	return nil
}

// Query finds the k nearest neighbours, optionally restricted to a set
// of documents.
func (idx *Index) Query(ctx context.Context, embedding []float32, k int, documentIDs []string) ([]driven.VectorHit, error) {
	if len(embedding) != idx.dimension {
		return nil, fmt.Errorf("qdrant: query dimension %d, collection expects %d", len(embedding), idx.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	req := &pb.SearchPoints{
		CollectionName: idx.collection,
		Vector:         embedding,
		Limit:          uint64(k),
	}
	if len(documentIDs) > 0 {
		req.Filter = &pb.Filter{
			Must: []*pb.Condition{{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: payloadDocID,
						Match: &pb.Match{
							MatchValue: &pb.Match_Keywords{
								Keywords: &pb.RepeatedStrings{Strings: documentIDs},
							},
						},
					},
				},
			}},
		}
	}

	resp, err := idx.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrIndexUnavailable, err)
	}

	hits := make([]driven.VectorHit, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		hits = append(hits, driven.VectorHit{
			ChunkID:    point.GetId().GetUuid(),
			Similarity: float64(point.GetScore()),
		})
	}
	return hits, nil
}

// DeleteByDocument removes all points carrying the document's payload.
func (idx *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	wait := true
	_, err := idx.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: idx.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{{
						ConditionOneOf: &pb.Condition_Field{
							Field: &pb.FieldCondition{
								Key: payloadDocID,
								Match: &pb.Match{
									MatchValue: &pb.Match_Keyword{Keyword: documentID},
								},
							},
						},
					}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: delete by document %s: %v", domain.ErrIndexUnavailable, documentID, err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (idx *Index) Close() error {
	return idx.conn.Close()
}
