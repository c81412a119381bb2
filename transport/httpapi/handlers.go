// Package httpapi is the thin net/http stand-in for the RPC framework
// spec.md §6 describes: gRPC wire framing itself is out of scope (spec.md
// §1's Non-goals), so this package exposes the same service.GraphService and
// service.SchemaService methods as one JSON handler per RPC, grounded on
// bundoc-server's handlers.DocumentHandlers (writeJSON/writeError/status
// mapping, one HandleXxx method per operation, path parsing by hand).
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/kartikbazzad/entgraph/graphErr"
	"github.com/kartikbazzad/entgraph/logging"
	"github.com/kartikbazzad/entgraph/service"
)

// Handlers wires service.GraphService and service.SchemaService to
// net/http.
type Handlers struct {
	graph  *service.GraphService
	schema *service.SchemaService
}

// NewHandlers returns a Handlers backed by graphSvc and schemaSvc.
func NewHandlers(graphSvc *service.GraphService, schemaSvc *service.SchemaService) *Handlers {
	return &Handlers{graph: graphSvc, schema: schemaSvc}
}

// Mux builds the routing table: one path per RPC, dispatched by method.
func (h *Handlers) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/schemas", h.HandleCreateSchema)
	mux.HandleFunc("/v1/objects", h.HandleCreateObject)
	mux.HandleFunc("/v1/objects/", h.HandleObjectByID)
	mux.HandleFunc("/v1/edges", h.HandleCreateEdge)
	mux.HandleFunc("/v1/edges/", h.HandleEdgeByID)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

type createSchemaRequest struct {
	TypeName    string `json:"type_name"`
	Schema      string `json:"schema"`
	Description string `json:"description"`
}

// HandleCreateSchema implements POST /v1/schemas -> SchemaService.CreateSchema.
func (h *Handlers) HandleCreateSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req createSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.schema.CreateSchema(r.Context(), r.Header.Get("Authorization"), req.TypeName, req.Schema, req.Description)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"schema_id": id})
}

type createObjectRequest struct {
	Type     string          `json:"type"`
	Metadata json.RawMessage `json:"metadata"`
}

// HandleCreateObject implements POST /v1/objects -> GraphService.CreateObject.
func (h *Handlers) HandleCreateObject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req createObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	obj, zookie, err := h.graph.CreateObject(r.Context(), r.Header.Get("Authorization"), req.Type, req.Metadata)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"object": obj, "revision": zookie})
}

// HandleObjectByID routes GET/PATCH /v1/objects/{id}[/edges/{relation}] to the
// matching GraphService method.
func (h *Handlers) HandleObjectByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/objects/")
	parts := strings.Split(rest, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid object id")
		return
	}

	if len(parts) == 3 && parts[1] == "edges" {
		h.handleObjectEdges(w, r, id, parts[2])
		return
	}
	if len(parts) == 3 && parts[1] == "edge" {
		h.handleObjectEdge(w, r, id, parts[2])
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetObject(w, r, id)
	case http.MethodPatch:
		h.handleUpdateObject(w, r, id)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handlers) handleGetObject(w http.ResponseWriter, r *http.Request, id int64) {
	req, err := consistencyFromHeaders(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	obj, err := h.graph.GetObject(r.Context(), r.Header.Get("Authorization"), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, obj)
}

func (h *Handlers) handleUpdateObject(w http.ResponseWriter, r *http.Request, id int64) {
	var body struct {
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	obj, zookie, err := h.graph.UpdateObject(r.Context(), r.Header.Get("Authorization"), id, body.Metadata)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"object": obj, "revision": zookie})
}

func (h *Handlers) handleObjectEdges(w http.ResponseWriter, r *http.Request, id int64, relation string) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, err := consistencyFromHeaders(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	targets, err := h.graph.GetEdges(r.Context(), r.Header.Get("Authorization"), id, relation, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"targets": targets})
}

// handleObjectEdge implements GET /v1/objects/{id}/edge/{relation} ->
// GraphService.GetEdge (the single-target RPC, distinct from the
// list-returning GetEdges wired at /v1/objects/{id}/edges/{relation}).
func (h *Handlers) handleObjectEdge(w http.ResponseWriter, r *http.Request, id int64, relation string) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, err := consistencyFromHeaders(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := h.graph.GetEdge(r.Context(), r.Header.Get("Authorization"), id, relation, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, target)
}

type createEdgeRequest struct {
	FromType string          `json:"from_type"`
	FromID   int64           `json:"from_id"`
	ToType   string          `json:"to_type"`
	ToID     int64           `json:"to_id"`
	Relation string          `json:"relation"`
	Metadata json.RawMessage `json:"metadata"`
}

// HandleCreateEdge implements POST /v1/edges -> GraphService.CreateEdge.
func (h *Handlers) HandleCreateEdge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	edge, zookie, err := h.graph.CreateEdge(r.Context(), r.Header.Get("Authorization"),
		req.FromType, req.FromID, req.ToType, req.Relation, req.ToID, req.Metadata)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"edge": edge, "revision": zookie})
}

// HandleEdgeByID implements PATCH /v1/edges/{id} -> GraphService.UpdateEdge.
func (h *Handlers) HandleEdgeByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/v1/edges/"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}

	var body struct {
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	edge, zookie, err := h.graph.UpdateEdge(r.Context(), r.Header.Get("Authorization"), id, body.Metadata)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"edge": edge, "revision": zookie})
}

// consistencyFromHeaders decodes the optional x-ent-consistency/x-ent-zookie
// header pair into the tagged ConsistencyRequirement the service layer
// expects, absent headers meaning MinimizeLatency (nil).
func consistencyFromHeaders(r *http.Request) (*service.ConsistencyRequirement, error) {
	kind := r.Header.Get("x-ent-consistency")
	if kind == "" {
		return nil, nil
	}
	return &service.ConsistencyRequirement{Kind: kind, Zookie: r.Header.Get("x-ent-zookie")}, nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a graphErr-tagged error onto an HTTP status code
// and logs the original error server-side under the request's correlation
// id. Internal errors reach the client only as a generic message; every
// other code carries the error's own message.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFromGrpcCode(err)
	logging.FromContext(r.Context()).Error("request failed", "error", err, "status", code)
	if code == http.StatusInternalServerError {
		h.writeError(w, code, "internal error")
		return
	}
	h.writeError(w, code, err.Error())
}

func statusFromGrpcCode(err error) int {
	switch graphErr.Code(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Aborted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
