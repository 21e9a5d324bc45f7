// Package stubserver is an in-memory stand-in for the managed backend,
// covering the slice of its surface the client exercises: filtered row
// reads, row mutations with conflict and permission verdicts, a handful of
// RPCs, and a websocket change feed. Tests and the CLI's demo mode run
// against it; it is not a product surface.
package stubserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Row is one stored record.
type Row = map[string]any

// RpcFunc handles one named procedure.
type RpcFunc func(s *Server, params map[string]any) (any, error)

// DenyFunc lets tests simulate row-level security: return true to reject
// the operation with 403.
type DenyFunc func(method, table string) bool

// Server is the stub backend. Create with New, mount via Handler.
type Server struct {
	mu     sync.Mutex
	tables map[string][]Row
	rpcs   map[string]RpcFunc
	nextID int

	failNext map[string]int // "POST thought_likes" -> remaining forced 500s
	deny     DenyFunc

	subMu    sync.Mutex
	subs     map[*subscriber]struct{}
	upgrader websocket.Upgrader

	router chi.Router
}

type subscriber struct {
	conn   *websocket.Conn
	writeM sync.Mutex
	topics []subTopic
}

type subTopic struct {
	topic  string
	table  string
	filter string
	events map[string]bool
}

// New creates an empty stub backend with the standard RPCs registered.
func New() *Server {
	s := &Server{
		tables:   make(map[string][]Row),
		rpcs:     make(map[string]RpcFunc),
		failNext: make(map[string]int),
		subs:     make(map[*subscriber]struct{}),
	}
	s.registerStandardRpcs()

	r := chi.NewRouter()
	r.Get("/rest/v1/{table}", s.handleGet)
	r.Post("/rest/v1/{table}", s.handleInsert)
	r.Patch("/rest/v1/{table}", s.handleUpdate)
	r.Delete("/rest/v1/{table}", s.handleDelete)
	r.Post("/rest/v1/rpc/{name}", s.handleRpc)
	r.Get("/realtime", s.handleRealtime)
	s.router = r
	return s
}

// Handler returns the HTTP handler to mount in httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Seed inserts rows without broadcasting change events.
func (s *Server) Seed(table string, rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.tables[table] = append(s.tables[table], s.withDefaults(row))
	}
}

// Rows returns a copy of a table's rows.
func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.tables[table]))
	copy(out, s.tables[table])
	return out
}

// FailNext forces the next n requests of method on table to return 500.
func (s *Server) FailNext(method, table string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[method+" "+table] = n
}

// SetDeny installs a row-level security simulation.
func (s *Server) SetDeny(fn DenyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deny = fn
}

// RegisterRpc installs or replaces a procedure.
func (s *Server) RegisterRpc(name string, fn RpcFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpcs[name] = fn
}

// DropSubscribers closes every realtime connection, for reconnect tests.
func (s *Server) DropSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subs {
		sub.conn.Close()
	}
}

func (s *Server) withDefaults(row Row) Row {
	out := make(Row, len(row)+2)
	for k, v := range row {
		out[k] = v
	}
	if _, ok := out["id"]; !ok {
		s.nextID++
		out["id"] = fmt.Sprintf("srv-%d", s.nextID)
	}
	if _, ok := out["created_at"]; !ok {
		out["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return out
}

func (s *Server) gate(w http.ResponseWriter, r *http.Request, table string) bool {
	if r.Header.Get("apikey") == "" {
		writeError(w, http.StatusUnauthorized, "missing api key")
		return false
	}
	s.mu.Lock()
	key := r.Method + " " + table
	if s.failNext[key] > 0 {
		s.failNext[key]--
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "forced failure")
		return false
	}
	deny := s.deny
	s.mu.Unlock()
	if deny != nil && deny(r.Method, table) {
		writeError(w, http.StatusForbidden, "row-level security policy violation")
		return false
	}
	return true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !s.gate(w, r, table) {
		return
	}
	filters, order, limit, offset, sel := parseQuery(r.URL.Query())

	s.mu.Lock()
	var matched []Row
	for _, row := range s.tables[table] {
		if filters.match(row) {
			matched = append(matched, row)
		}
	}
	if strings.Contains(sel, "author:profiles") {
		matched = s.joinAuthors(matched)
	}
	s.mu.Unlock()

	applyOrder(matched, order)
	matched = applyPage(matched, limit, offset)
	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !s.gate(w, r, table) {
		return
	}
	var row Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	if conflictKey := uniquePair(table); conflictKey != nil {
		for _, existing := range s.tables[table] {
			if existing[conflictKey[0]] == row[conflictKey[0]] && existing[conflictKey[1]] == row[conflictKey[1]] {
				s.mu.Unlock()
				writeError(w, http.StatusConflict, "duplicate key value violates unique constraint")
				return
			}
		}
	}
	stored := s.withDefaults(row)
	s.tables[table] = append(s.tables[table], stored)
	s.maintainAggregates(table, stored, +1)
	s.mu.Unlock()

	s.broadcast(table, "INSERT", stored, nil)
	writeJSON(w, http.StatusCreated, []Row{stored})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !s.gate(w, r, table) {
		return
	}
	var values Row
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	filters, _, _, _, _ := parseQuery(r.URL.Query())

	s.mu.Lock()
	var updated []Row
	for i, row := range s.tables[table] {
		if !filters.match(row) {
			continue
		}
		next := make(Row, len(row)+len(values))
		for k, v := range row {
			next[k] = v
		}
		for k, v := range values {
			next[k] = v
		}
		s.tables[table][i] = next
		updated = append(updated, next)
	}
	s.mu.Unlock()

	for _, row := range updated {
		s.broadcast(table, "UPDATE", row, nil)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !s.gate(w, r, table) {
		return
	}
	filters, _, _, _, _ := parseQuery(r.URL.Query())

	s.mu.Lock()
	var kept, removed []Row
	for _, row := range s.tables[table] {
		if filters.match(row) {
			removed = append(removed, row)
			s.maintainAggregates(table, row, -1)
		} else {
			kept = append(kept, row)
		}
	}
	s.tables[table] = kept
	s.mu.Unlock()

	for _, row := range removed {
		s.broadcast(table, "DELETE", nil, row)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRpc(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.gate(w, r, "rpc:"+name) {
		return
	}
	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		params = map[string]any{}
	}
	s.mu.Lock()
	fn, ok := s.rpcs[name]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown function "+name)
		return
	}
	result, err := fn(s, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// uniquePair returns the column pair enforced unique on table, nil if none.
func uniquePair(table string) []string {
	switch table {
	case "thought_likes":
		return []string{"thought_id", "user_id"}
	case "saved_thoughts":
		return []string{"thought_id", "user_id"}
	case "connections":
		return []string{"requester_id", "addressee_id"}
	}
	return nil
}

// maintainAggregates mirrors the backend triggers that keep counters on
// thoughts in step with their child tables.
func (s *Server) maintainAggregates(table string, row Row, delta int) {
	var column string
	switch table {
	case "thought_likes":
		column = "likes_count"
	case "thought_comments":
		column = "comments_count"
	default:
		return
	}
	thoughtID, _ := row["thought_id"].(string)
	for i, t := range s.tables["thoughts"] {
		if t["id"] == thoughtID {
			n := asInt(t[column]) + delta
			if n < 0 {
				n = 0
			}
			next := make(Row, len(t))
			for k, v := range t {
				next[k] = v
			}
			next[column] = n
			s.tables["thoughts"][i] = next
			updated := next
			go s.broadcast("thoughts", "UPDATE", updated, nil)
			return
		}
	}
}

func (s *Server) joinAuthors(rows []Row) []Row {
	profiles := make(map[any]Row)
	for _, p := range s.tables["profiles"] {
		profiles[p["id"]] = p
	}
	out := make([]Row, len(rows))
	for i, row := range rows {
		next := make(Row, len(row)+1)
		for k, v := range row {
			next[k] = v
		}
		if p, ok := profiles[row["user_id"]]; ok {
			next["author"] = p
		}
		out[i] = next
	}
	return out
}

func (s *Server) registerStandardRpcs() {
	s.rpcs["create_like_notification_rpc"] = func(s *Server, params map[string]any) (any, error) {
		return s.notifyThoughtOwner(params, "like", "liked your thought")
	}
	s.rpcs["create_comment_notification_rpc"] = func(s *Server, params map[string]any) (any, error) {
		return s.notifyThoughtOwner(params, "comment", "commented on your thought")
	}
	s.rpcs["create_connection_notification_rpc"] = func(s *Server, params map[string]any) (any, error) {
		addressee, _ := params["p_addressee_id"].(string)
		if addressee == "" {
			return nil, fmt.Errorf("p_addressee_id required")
		}
		s.InsertRow("notifications", Row{
			"user_id": addressee,
			"type":    "connection",
			"title":   "New connection request",
			"is_read": false,
		})
		return nil, nil
	}
	s.rpcs["mark_all_notifications_read"] = func(s *Server, params map[string]any) (any, error) {
		userID, _ := params["p_user_id"].(string)
		s.mu.Lock()
		for i, n := range s.tables["notifications"] {
			if n["user_id"] == userID {
				next := make(Row, len(n))
				for k, v := range n {
					next[k] = v
				}
				next["is_read"] = true
				s.tables["notifications"][i] = next
			}
		}
		s.mu.Unlock()
		return nil, nil
	}
	s.rpcs["assign_referral_code"] = func(s *Server, params map[string]any) (any, error) {
		return strings.ToUpper(uuid.NewString()[:8]), nil
	}
	s.rpcs["create_mention_notifications_rpc"] = func(s *Server, params map[string]any) (any, error) {
		return nil, nil
	}
}

// notifyThoughtOwner inserts a notification for the owner of the thought in
// params, skipping self-notification.
func (s *Server) notifyThoughtOwner(params map[string]any, kind, title string) (any, error) {
	thoughtID, _ := params["p_thought_id"].(string)
	var actor string
	for _, k := range []string{"p_liker_id", "p_commenter_id"} {
		if v, ok := params[k].(string); ok && v != "" {
			actor = v
		}
	}
	s.mu.Lock()
	var owner string
	for _, t := range s.tables["thoughts"] {
		if t["id"] == thoughtID {
			owner, _ = t["user_id"].(string)
			break
		}
	}
	s.mu.Unlock()
	if owner == "" {
		return nil, fmt.Errorf("thought %s not found", thoughtID)
	}
	if owner == actor {
		return nil, nil
	}
	s.InsertRow("notifications", Row{
		"user_id": owner,
		"type":    kind,
		"title":   title,
		"link":    "/thoughts/" + thoughtID,
		"is_read": false,
	})
	return nil, nil
}

// InsertRow stores a row with defaults, maintains aggregates and broadcasts
// its insert event.
func (s *Server) InsertRow(table string, row Row) Row {
	s.mu.Lock()
	stored := s.withDefaults(row)
	s.tables[table] = append(s.tables[table], stored)
	s.maintainAggregates(table, stored, +1)
	s.mu.Unlock()
	s.broadcast(table, "INSERT", stored, nil)
	return stored
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		v = []Row{}
	}
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case json.Number:
		n, _ := t.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}
