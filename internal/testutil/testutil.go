package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Request is one call recorded by the fake server
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
	At     time.Time
}

// FakeNotion is an in-memory stand-in for the Notion API.
// Databases keep rows in insertion order, which is the order queries return.
type FakeNotion struct {
	Server *httptest.Server
	T      *testing.T

	mu        sync.Mutex
	databases map[string][]map[string]any
	schemas   map[string]map[string]any
	pages     map[string]map[string]any
	children  map[string][]map[string]any
	assets    map[string][]byte
	failures  map[string]int
	patches   map[string][]map[string]any
	created   []map[string]any
	requests  []Request
	pageSize  int
}

// NewFakeNotion starts a fake server; it is closed when the test ends
func NewFakeNotion(t *testing.T) *FakeNotion {
	t.Helper()

	f := &FakeNotion{
		T:         t,
		databases: make(map[string][]map[string]any),
		schemas:   make(map[string]map[string]any),
		pages:     make(map[string]map[string]any),
		children:  make(map[string][]map[string]any),
		assets:    make(map[string][]byte),
		failures:  make(map[string]int),
		patches:   make(map[string][]map[string]any),
		pageSize:  100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /databases/{id}/query", f.handleQuery)
	mux.HandleFunc("GET /databases/{id}", f.handleDatabase)
	mux.HandleFunc("GET /blocks/{id}/children", f.handleChildren)
	mux.HandleFunc("GET /pages/{id}", f.handleGetPage)
	mux.HandleFunc("PATCH /pages/{id}", f.handlePatchPage)
	mux.HandleFunc("POST /pages", f.handleCreatePage)
	mux.HandleFunc("GET /files/{name}", f.handleAsset)

	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the base URL to configure the client with
func (f *FakeNotion) URL() string {
	return f.Server.URL
}

func key(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}

// AddDatabase registers rows under a database id. Rows are also readable as pages.
func (f *FakeNotion) AddDatabase(dbID string, rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.databases[key(dbID)] = append(f.databases[key(dbID)], rows...)
	for _, r := range rows {
		f.pages[key(r["id"].(string))] = r
	}
}

// AddPage registers a page that is not part of any queried database
func (f *FakeNotion) AddPage(page map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[key(page["id"].(string))] = page
}

func (f *FakeNotion) SetSchema(dbID string, properties map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemas[key(dbID)] = properties
}

// SetChildren sets the child blocks of a page or block
func (f *FakeNotion) SetChildren(blockID string, blocks ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children[key(blockID)] = blocks
}

// AddAsset serves data at /files/<name> and returns its URL
func (f *FakeNotion) AddAsset(name string, data []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[name] = data
	return f.Server.URL + "/files/" + name
}

// Fail makes every request whose path contains fragment answer with status.
// Ids match in either hyphenation.
func (f *FakeNotion) Fail(fragment string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[fragment] = status
}

func (f *FakeNotion) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[string]int)
}

// SetPageSize caps results per page regardless of the requested page_size
func (f *FakeNotion) SetPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

// Requests returns a copy of the recorded calls
func (f *FakeNotion) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// CountRequests counts recorded calls with the given method whose path contains fragment
func (f *FakeNotion) CountRequests(method, fragment string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && strings.Contains(key(r.Path), key(fragment)) {
			n++
		}
	}
	return n
}

// Patches returns the decoded property maps sent to a page
func (f *FakeNotion) Patches(pageID string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches[key(pageID)]
}

func (f *FakeNotion) Created() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *FakeNotion) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
			At:     time.Now(),
		})
		status := 0
		for fragment, s := range f.failures {
			if strings.Contains(key(r.URL.Path), key(fragment)) {
				status = s
			}
		}
		f.mu.Unlock()

		if status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	code := "internal_server_error"
	if status == http.StatusNotFound {
		code = "object_not_found"
	}
	writeJSON(w, status, map[string]any{"object": "error", "status": status, "code": code, "message": message})
}

// paginate slices items at cursor (a decimal offset)
func paginate(items []map[string]any, cursor string, size int) ([]map[string]any, map[string]any) {
	start, _ := strconv.Atoi(cursor)
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	page := items[start:end]
	if page == nil {
		page = []map[string]any{}
	}
	meta := map[string]any{"has_more": end < len(items), "next_cursor": nil}
	if end < len(items) {
		meta["next_cursor"] = strconv.Itoa(end)
	}
	return page, meta
}

func (f *FakeNotion) effectiveSize(requested int) int {
	size := f.pageSize
	if requested > 0 && requested < size {
		size = requested
	}
	return size
}

func (f *FakeNotion) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filter      map[string]any `json:"filter"`
		StartCursor string         `json:"start_cursor"`
		PageSize    int            `json:"page_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	rows, ok := f.databases[key(r.PathValue("id"))]
	size := f.effectiveSize(body.PageSize)
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "database not found")
		return
	}

	var matched []map[string]any
	for _, row := range rows {
		if matches(row, body.Filter) {
			matched = append(matched, row)
		}
	}

	page, meta := paginate(matched, body.StartCursor, size)
	meta["object"] = "list"
	meta["results"] = page
	writeJSON(w, http.StatusOK, meta)
}

// matches supports select equality and or/and compounds
func matches(row map[string]any, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	if or, ok := filter["or"].([]any); ok {
		for _, sub := range or {
			if m, ok := sub.(map[string]any); ok && matches(row, m) {
				return true
			}
		}
		return false
	}
	if and, ok := filter["and"].([]any); ok {
		for _, sub := range and {
			if m, ok := sub.(map[string]any); ok && !matches(row, m) {
				return false
			}
		}
		return true
	}
	name, _ := filter["property"].(string)
	props, _ := row["properties"].(map[string]any)
	prop, _ := props[name].(map[string]any)
	if cond, ok := filter["select"].(map[string]any); ok {
		sel, _ := prop["select"].(map[string]any)
		return sel != nil && sel["name"] == cond["equals"]
	}
	if cond, ok := filter["status"].(map[string]any); ok {
		st, _ := prop["status"].(map[string]any)
		return st != nil && st["name"] == cond["equals"]
	}
	return true
}

func (f *FakeNotion) handleDatabase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	schema, ok := f.schemas[key(id)]
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "database not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "database", "id": id, "properties": schema})
}

func (f *FakeNotion) handleChildren(w http.ResponseWriter, r *http.Request) {
	requested, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	f.mu.Lock()
	blocks := f.children[key(r.PathValue("id"))]
	size := f.effectiveSize(requested)
	f.mu.Unlock()

	page, meta := paginate(blocks, r.URL.Query().Get("start_cursor"), size)
	meta["object"] = "list"
	meta["results"] = page
	writeJSON(w, http.StatusOK, meta)
}

func (f *FakeNotion) handleGetPage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	page, ok := f.pages[key(r.PathValue("id"))]
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (f *FakeNotion) handlePatchPage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Properties map[string]any `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[key(id)]
	if !ok {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	f.patches[key(id)] = append(f.patches[key(id)], body.Properties)
	props, _ := page["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
		page["properties"] = props
	}
	for name, value := range body.Properties {
		if v, ok := value.(map[string]any); ok {
			v["type"] = firstKey(v)
			props[name] = v
		}
	}
	writeJSON(w, http.StatusOK, page)
}

func firstKey(m map[string]any) string {
	for k := range m {
		if k != "type" && k != "id" {
			return k
		}
	}
	return ""
}

func (f *FakeNotion) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, body)
	page := map[string]any{
		"object":     "page",
		"id":         fmt.Sprintf("00000000-0000-0000-0000-%012d", len(f.created)),
		"properties": body["properties"],
	}
	f.pages[key(page["id"].(string))] = page
	writeJSON(w, http.StatusOK, page)
}

func (f *FakeNotion) handleAsset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	data, ok := f.assets[r.PathValue("name")]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
