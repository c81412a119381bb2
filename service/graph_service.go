package service

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"

	"github.com/kartikbazzad/entgraph/authz"
	"github.com/kartikbazzad/entgraph/graph"
	"github.com/kartikbazzad/entgraph/graphErr"
	"github.com/kartikbazzad/entgraph/logging"
	"github.com/kartikbazzad/entgraph/schema"
	"github.com/kartikbazzad/entgraph/wire"
)

// ObjectResponse is the wire shape returned for every Object-producing RPC.
type ObjectResponse struct {
	ID       int64           `json:"id"`
	TypeName string          `json:"type"`
	Owner    string          `json:"owner"`
	Metadata json.RawMessage `json:"metadata"`
}

// EdgeResponse is the wire shape returned for every Edge-producing RPC.
type EdgeResponse struct {
	ID       int64           `json:"id"`
	FromType string          `json:"from_type"`
	FromID   int64           `json:"from_id"`
	Relation string          `json:"relation"`
	ToType   string          `json:"to_type"`
	ToID     int64           `json:"to_id"`
	Metadata json.RawMessage `json:"metadata"`
	Owner    string          `json:"owner"`
}

// GraphService implements every GraphService RPC in spec.md §6: it
// authenticates the caller, validates metadata against any schema registered
// for the object's type, enforces ownership, and mints a zookie on every
// mutation.
type GraphService struct {
	verifier TokenVerifier
	store    *graph.Store
	schemas  *schema.Registry
	gate     *authz.Gate
}

// NewGraphService wires a GraphService from its collaborators.
func NewGraphService(verifier TokenVerifier, store *graph.Store, schemas *schema.Registry, gate *authz.Gate) *GraphService {
	return &GraphService{verifier: verifier, store: store, schemas: schemas, gate: gate}
}

func toObjectResponse(o graph.Object) ObjectResponse {
	return ObjectResponse{ID: o.ID, TypeName: o.TypeName, Owner: o.Owner, Metadata: o.Metadata}
}

func toEdgeResponse(e graph.Edge) EdgeResponse {
	return EdgeResponse{
		ID: e.ID, FromType: e.FromType, FromID: e.FromID, Relation: e.Relation,
		ToType: e.ToType, ToID: e.ToID, Metadata: e.Metadata, Owner: e.Owner,
	}
}

// validateMetadata normalizes metadata to StructuredValue rules and checks
// it against typeName's registered schema, if any. Validation runs before
// any write transaction opens, per spec.md §5's propagation rule.
func (s *GraphService) validateMetadata(typeName string, metadata json.RawMessage) (json.RawMessage, error) {
	normalized, err := wire.Normalize(metadata)
	if err != nil {
		return nil, graphErr.InvalidArgument("metadata is not valid JSON: %v", err)
	}
	ok, err := s.schemas.ValidateObjectMetadata(typeName, normalized)
	if err != nil {
		return nil, graphErr.Internal("schema validation: %v", err)
	}
	if !ok {
		return nil, graphErr.InvalidArgument("metadata does not conform to schema registered for type %q", typeName)
	}
	return normalized, nil
}

// CreateObject implements GraphService.CreateObject.
func (s *GraphService) CreateObject(ctx context.Context, authorizationHeader, typeName string, metadata json.RawMessage) (ObjectResponse, string, error) {
	principal, err := authenticate(s.verifier, authorizationHeader)
	if err != nil {
		return ObjectResponse{}, "", err
	}

	normalized, err := s.validateMetadata(typeName, metadata)
	if err != nil {
		return ObjectResponse{}, "", err
	}

	obj, rev, err := s.store.CreateObject(ctx, principal, typeName, normalized)
	if err != nil {
		return ObjectResponse{}, "", err
	}
	return toObjectResponse(obj), encodeRevision(rev), nil
}

// UpdateObject implements GraphService.UpdateObject.
func (s *GraphService) UpdateObject(ctx context.Context, authorizationHeader string, objectID int64, metadata json.RawMessage) (ObjectResponse, string, error) {
	principal, err := authenticate(s.verifier, authorizationHeader)
	if err != nil {
		return ObjectResponse{}, "", err
	}

	owned, err := s.gate.CheckObjectOwnership(ctx, objectID, principal)
	if err != nil {
		return ObjectResponse{}, "", err
	}
	if !owned {
		return ObjectResponse{}, "", graphErr.PermissionDenied("principal does not own object %d", objectID)
	}

	typeName, err := s.store.ObjectTypeName(ctx, objectID)
	if err != nil {
		return ObjectResponse{}, "", err
	}
	normalized, err := s.validateMetadata(typeName, metadata)
	if err != nil {
		return ObjectResponse{}, "", err
	}

	obj, rev, err := s.store.UpdateObject(ctx, principal, objectID, normalized)
	if err != nil {
		return ObjectResponse{}, "", err
	}
	return toObjectResponse(obj), encodeRevision(rev), nil
}

// GetObject implements GraphService.GetObject.
func (s *GraphService) GetObject(ctx context.Context, authorizationHeader string, objectID int64, req *ConsistencyRequirement) (ObjectResponse, error) {
	principal, err := authenticate(s.verifier, authorizationHeader)
	if err != nil {
		return ObjectResponse{}, err
	}

	owned, err := s.gate.CheckObjectOwnership(ctx, objectID, principal)
	if err != nil {
		return ObjectResponse{}, err
	}
	if !owned {
		return ObjectResponse{}, graphErr.PermissionDenied("principal does not own object %d", objectID)
	}

	mode, err := resolveConsistency(req)
	if err != nil {
		return ObjectResponse{}, err
	}
	obj, err := s.store.GetObject(ctx, objectID, mode)
	if err != nil {
		return ObjectResponse{}, err
	}
	return toObjectResponse(obj), nil
}

// CreateEdge implements GraphService.CreateEdge.
func (s *GraphService) CreateEdge(ctx context.Context, authorizationHeader, fromType string, fromID int64, toType, relation string, toID int64, metadata json.RawMessage) (EdgeResponse, string, error) {
	principal, err := authenticate(s.verifier, authorizationHeader)
	if err != nil {
		return EdgeResponse{}, "", err
	}

	normalized, err := wire.Normalize(metadata)
	if err != nil {
		return EdgeResponse{}, "", graphErr.InvalidArgument("metadata is not valid JSON: %v", err)
	}

	edge, rev, err := s.store.CreateEdge(ctx, principal, fromType, fromID, relation, toType, toID, normalized)
	if err != nil {
		return EdgeResponse{}, "", err
	}
	return toEdgeResponse(edge), encodeRevision(rev), nil
}

// UpdateEdge implements GraphService.UpdateEdge.
func (s *GraphService) UpdateEdge(ctx context.Context, authorizationHeader string, edgeID int64, metadata json.RawMessage) (EdgeResponse, string, error) {
	principal, err := authenticate(s.verifier, authorizationHeader)
	if err != nil {
		return EdgeResponse{}, "", err
	}

	normalized, err := wire.Normalize(metadata)
	if err != nil {
		return EdgeResponse{}, "", graphErr.InvalidArgument("metadata is not valid JSON: %v", err)
	}

	edge, rev, err := s.store.UpdateEdge(ctx, principal, edgeID, normalized)
	if err != nil {
		return EdgeResponse{}, "", err
	}
	return toEdgeResponse(edge), encodeRevision(rev), nil
}

// GetEdge implements GraphService.GetEdge: it resolves the single matching
// edge under objectID/edgeType and fans out to the target Object, per
// spec.md §6's signature returning the target, not the edge row itself.
func (s *GraphService) GetEdge(ctx context.Context, authorizationHeader string, objectID int64, edgeType string, req *ConsistencyRequirement) (ObjectResponse, error) {
	if _, err := authenticate(s.verifier, authorizationHeader); err != nil {
		return ObjectResponse{}, err
	}

	mode, err := resolveConsistency(req)
	if err != nil {
		return ObjectResponse{}, err
	}

	edges, err := s.store.GetEdges(ctx, objectID, edgeType, mode)
	if err != nil {
		return ObjectResponse{}, err
	}
	if len(edges) == 0 {
		return ObjectResponse{}, graphErr.NotFound("no edge %q from object %d visible at requested consistency", edgeType, objectID)
	}

	target, err := s.store.GetObject(ctx, edges[0].ToID, mode)
	if err != nil {
		if graphErr.Code(err) == codes.NotFound {
			return ObjectResponse{}, graphErr.NotFound("Target object not found")
		}
		return ObjectResponse{}, err
	}
	return toObjectResponse(target), nil
}

// GetEdges implements GraphService.GetEdges: list the edges from objectID
// with relation edgeType, then fan out to each target Object under the same
// consistency mode (spec.md §9's "related-object fan-out"). Targets that no
// longer resolve are skipped with a warning rather than failing the whole
// call, per spec.md §4.4.5.
func (s *GraphService) GetEdges(ctx context.Context, authorizationHeader string, objectID int64, edgeType string, req *ConsistencyRequirement) ([]ObjectResponse, error) {
	if _, err := authenticate(s.verifier, authorizationHeader); err != nil {
		return nil, err
	}

	mode, err := resolveConsistency(req)
	if err != nil {
		return nil, err
	}

	edges, err := s.store.GetEdges(ctx, objectID, edgeType, mode)
	if err != nil {
		return nil, err
	}

	out := make([]ObjectResponse, 0, len(edges))
	for _, edge := range edges {
		target, err := s.store.GetObject(ctx, edge.ToID, mode)
		if err != nil {
			if graphErr.Code(err) == codes.NotFound {
				logging.FromContext(ctx).Warn("edge target not found, skipping",
					"from_id", objectID, "relation", edgeType, "to_id", edge.ToID)
				continue
			}
			return nil, err
		}
		out = append(out, toObjectResponse(target))
	}
	return out, nil
}
