package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/adminapi"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/repository"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/service"
)

// fakeAdminAPI stands in for the remote admin service.
type fakeAdminAPI struct {
	mu           sync.Mutex
	posted       []map[string]any
	createStatus int
	createBody   string
}

func (f *fakeAdminAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/v1/admin-user/get-course-list":
		_, _ = io.WriteString(w, `{"courses":[
			{"_id":"C1","basicInfo":{"title":"Go 101"},"pricing":{"amount":10}},
			{"_id":"C2","basicInfo":{"title":"SQL 101"},"pricing":{"amount":0}}
		]}`)
	case "/v1/admin-user/get-users/list":
		_, _ = io.WriteString(w, `{"users":[{"_id":"U123","first_name":"Jane","last_name":"Roe","email":"jane@x.com"}],"totalUsers":1}`)
	case "/v1/admin-user/manual-course-registration":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.posted = append(f.posted, body)
		status, respBody := f.createStatus, f.createBody
		f.mu.Unlock()
		if status == 0 {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAdminAPI) posts() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.posted...)
}

type testEnv struct {
	t      *testing.T
	api    *fakeAdminAPI
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	api := &fakeAdminAPI{}
	remoteSrv := httptest.NewServer(api)
	t.Cleanup(remoteSrv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := adminapi.NewWithDoer(remoteSrv.URL, remoteSrv.Client())
	svc := service.NewComposerService(
		service.Collaborators{Orders: client, Courses: client, Customers: client},
		repository.NewMemoryDraftRepository(time.Hour),
		time.Hour,
		logger,
	)
	srv := httptest.NewServer(NewRouter(NewComposerHandler(svc), logger, []string{"https://admin.example.com"}))
	t.Cleanup(srv.Close)
	return &testEnv{t: t, api: api, server: srv}
}

func (e *testEnv) do(method, path, body string) (*http.Response, map[string]any) {
	e.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rdr)
	require.NoError(e.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	if len(data) > 0 {
		require.NoError(e.t, json.Unmarshal(data, &out), string(data))
	}
	return resp, out
}

func (e *testEnv) open() string {
	e.t.Helper()
	resp, body := e.do(http.MethodPost, "/composers", "")
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(e.t, id)

	resp, _ = e.do(http.MethodGet, "/composers/"+id+"/course-options", "")
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	return id
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestOpen(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(http.MethodPost, "/composers", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []any{map[string]any{"course_id": ""}}, body["courses"])
	assert.Equal(t, false, body["in_flight"])
}

func TestInlineHappyPath(t *testing.T) {
	env := newTestEnv(t)
	id := env.open()

	resp, _ := env.do(http.MethodPut, "/composers/"+id+"/courses/0", `{"course_id":"C1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(http.MethodPut, "/composers/"+id+"/inline/name", `{"value":"Jane Roe"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(http.MethodPut, "/composers/"+id+"/inline/email", `{"value":"jane@x.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(http.MethodPost, "/composers/"+id+"/submit", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	notice := body["notice"].(map[string]any)
	assert.Equal(t, model.NoticeSuccess, notice["level"])
	assert.Equal(t, float64(1), body["orders_revision"])

	posts := env.api.posts()
	require.Len(t, posts, 1)
	assert.Equal(t, map[string]any{
		"courses": []any{map[string]any{"course_id": "C1"}},
		"email":   "jane@x.com",
		"phone":   "",
		"name":    "Jane Roe",
	}, posts[0])

	resp, _ = env.do(http.MethodGet, "/composers/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, body = env.do(http.MethodGet, "/orders/revision", "")
	assert.Equal(t, float64(1), body["revision"])
}

func TestExistingCustomerTwoCourses(t *testing.T) {
	env := newTestEnv(t)
	id := env.open()

	env.do(http.MethodPut, "/composers/"+id+"/inline/name", `{"value":"Jane Roe"}`)
	resp, body := env.do(http.MethodPut, "/composers/"+id+"/customer", `{"user_id":"U123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	customer := body["customer"].(map[string]any)
	assert.Equal(t, true, customer["inline_locked"])

	resp, _ = env.do(http.MethodPut, "/composers/"+id+"/inline/email", `{"value":"jane@x.com"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	env.do(http.MethodPut, "/composers/"+id+"/courses/0", `{"course_id":"C1"}`)
	env.do(http.MethodPost, "/composers/"+id+"/courses", "")
	resp, _ = env.do(http.MethodPut, "/composers/"+id+"/courses/1", `{"course_id":"C2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, "/composers/"+id+"/submit", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"courses": []any{map[string]any{"course_id": "C1"}, map[string]any{"course_id": "C2"}},
		"userId":  "U123",
	}, env.api.posts()[0])
}

func TestSubmit_ValidationFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.open()

	resp, body := env.do(http.MethodPost, "/composers/"+id+"/submit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	notice := body["notice"].(map[string]any)
	assert.Equal(t, model.NoticeError, notice["level"])
	assert.Empty(t, env.api.posts())
}

func TestSubmit_RemoteRejection(t *testing.T) {
	env := newTestEnv(t)
	env.api.createStatus = http.StatusBadRequest
	env.api.createBody = `{"message":"duplicate"}`
	id := env.open()
	env.do(http.MethodPut, "/composers/"+id+"/courses/0", `{"course_id":"C1"}`)
	env.do(http.MethodPut, "/composers/"+id+"/customer", `{"user_id":"U123"}`)

	resp, body := env.do(http.MethodPost, "/composers/"+id+"/submit", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body["error"], "duplicate")
	notice := body["notice"].(map[string]any)
	assert.Contains(t, notice["message"], "duplicate")

	resp, body = env.do(http.MethodGet, "/composers/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{map[string]any{"course_id": "C1"}}, body["courses"])
	assert.Equal(t, "U123", body["customer"].(map[string]any)["selected_id"])
}

func TestCourseFilterAndPayment(t *testing.T) {
	env := newTestEnv(t)
	id := env.open()

	resp, body := env.do(http.MethodPut, "/composers/"+id+"/course-filter", `{"searchText":"go","status":"PUBLISHED"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	filter := body["course_filter"].(map[string]any)
	assert.Equal(t, "go", filter["searchText"])
	assert.Equal(t, "PUBLISHED", filter["status"])

	resp, _ = env.do(http.MethodPut, "/composers/"+id+"/course-filter", `{"status":"ARCHIVED"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(http.MethodDelete, "/composers/"+id+"/course-filter", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", body["course_filter"].(map[string]any)["searchText"])

	resp, body = env.do(http.MethodPut, "/composers/"+id+"/payment", `{"payment_method":"BAKSH","note":"cash at desk"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BAKSH", body["payment_method"])

	resp, _ = env.do(http.MethodPut, "/composers/"+id+"/payment", `{"payment_method":"CASH"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchCustomers(t *testing.T) {
	env := newTestEnv(t)
	id := env.open()

	resp, body := env.do(http.MethodGet, "/composers/"+id+"/customer-options?search=jane&page=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	resp, _ = env.do(http.MethodGet, "/composers/"+id+"/customer-options?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t)
	id := env.open()

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"unknown composer", http.MethodGet, "/composers/nope", "", http.StatusNotFound},
		{"non-numeric index", http.MethodDelete, "/composers/" + id + "/courses/x", "", http.StatusBadRequest},
		{"index out of range", http.MethodDelete, "/composers/" + id + "/courses/9", "", http.StatusBadRequest},
		{"unknown course", http.MethodPut, "/composers/" + id + "/courses/0", `{"course_id":"Z9"}`, http.StatusBadRequest},
		{"unknown body field", http.MethodPut, "/composers/" + id + "/courses/0", `{"courseId":"C1"}`, http.StatusBadRequest},
		{"missing user id", http.MethodPut, "/composers/" + id + "/customer", `{}`, http.StatusBadRequest},
		{"unknown inline field", http.MethodPut, "/composers/" + id + "/inline/address", `{"value":"x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestClose(t *testing.T) {
	env := newTestEnv(t)
	id := env.open()

	resp, _ := env.do(http.MethodDelete, "/composers/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(http.MethodDelete, "/composers/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/composers", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://admin.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}
