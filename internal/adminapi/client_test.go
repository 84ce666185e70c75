package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/composer"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewWithDoer(srv.URL+"/", srv.Client())
}

func TestCreateManualRegistration(t *testing.T) {
	var gotBody map[string]any
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathManualRegistration, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	})

	err := c.CreateManualRegistration(context.Background(), model.RegistrationRequest{
		Courses:  []model.CourseSlot{{CourseID: "C1"}},
		Customer: model.InlineCustomer{Name: "Jane Roe", Email: "jane@x.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"courses": []any{map[string]any{"course_id": "C1"}},
		"email":   "jane@x.com",
		"phone":   "",
		"name":    "Jane Roe",
	}, gotBody)
}

func TestCreateManualRegistration_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message field", http.StatusBadRequest, `{"message":"duplicate"}`, "duplicate"},
		{"error field", http.StatusConflict, `{"error":"already enrolled"}`, "already enrolled"},
		{"message list", http.StatusBadRequest, `{"message":["email is invalid","phone is invalid"]}`, "email is invalid; phone is invalid"},
		{"no body", http.StatusForbidden, ``, ""},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := c.CreateManualRegistration(context.Background(), model.RegistrationRequest{
				Courses:  []model.CourseSlot{{CourseID: "C1"}},
				Customer: model.ExistingCustomer{ID: "U1"},
			})

			var re *RemoteError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.status, re.StatusCode)
			assert.Equal(t, tt.wantMsg, re.Message)

			var rej composer.Rejection
			require.ErrorAs(t, err, &rej)
		})
	}
}

func TestCreateManualRegistration_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewWithDoer(url, &http.Client{Timeout: time.Second})
	err := c.CreateManualRegistration(context.Background(), model.RegistrationRequest{
		Courses:  []model.CourseSlot{{CourseID: "C1"}},
		Customer: model.ExistingCustomer{ID: "U1"},
	})

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	var rej composer.Rejection
	assert.False(t, errors.As(err, &rej))
}

func TestCreateManualRegistration_NoCustomer(t *testing.T) {
	c := NewWithDoer("http://example.invalid", http.DefaultClient)
	err := c.CreateManualRegistration(context.Background(), model.RegistrationRequest{})
	assert.ErrorIs(t, err, model.ErrNoCustomer)
}

func TestListCourses(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathCourseList, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "100", q.Get("perPage"))
		assert.Equal(t, "go", q.Get("searchText"))
		assert.Equal(t, "PUBLISHED", q.Get("status"))
		assert.Equal(t, "PAID", q.Get("basicStatus"))
		_, _ = io.WriteString(w, `{"courses":[
			{"_id":"C1","basicInfo":{"title":"Go 101","thumbnail":"https://cdn/x.png"},"pricing":{"amount":49.5}},
			{"_id":"C2","basicInfo":{},"pricing":{}}
		]}`)
	})

	page, err := c.ListCourses(context.Background(), model.CourseFilter{
		Page: 1, PerPage: 100, SearchText: "go", Status: "PUBLISHED", BasicStatus: "PAID",
	})
	require.NoError(t, err)
	assert.Equal(t, []model.CourseSummary{
		{ID: "C1", Title: "Go 101", Thumbnail: "https://cdn/x.png", Price: 49.5},
		{ID: "C2", Title: "Untitled"},
	}, page.Courses)
	assert.Equal(t, 2, page.Total)
}

func TestListCustomers(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathUserList, r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("perpage"))
		assert.Equal(t, "jane", r.URL.Query().Get("searchText"))
		_, _ = io.WriteString(w, `{"users":[
			{"_id":"U1","first_name":"Jane","last_name":"Roe","email":"jane@x.com","phones":[{"number":"555"},{"number":""}]}
		],"totalUsers":11}`)
	})

	page, err := c.ListCustomers(context.Background(), model.CustomerFilter{Page: 2, PerPage: 5, Search: "jane"})
	require.NoError(t, err)
	assert.Equal(t, 11, page.Total)
	assert.Equal(t, []model.CustomerSummary{
		{ID: "U1", FirstName: "Jane", LastName: "Roe", Email: "jane@x.com", Phones: []string{"555"}},
	}, page.Customers)
}

func TestListCustomers_OmitsEmptySearch(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.URL.Query()["searchText"]
		assert.False(t, ok)
		_, _ = io.WriteString(w, `{"users":[]}`)
	})
	_, err := c.ListCustomers(context.Background(), model.CustomerFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
}

func TestListCourses_BadJSON(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	})
	_, err := c.ListCourses(context.Background(), model.DefaultCourseFilter())
	assert.Error(t, err)
}

func TestNew_StaticToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"users":[]}`)
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{BaseURL: srv.URL, Token: "secret-token"}, slog.Default())
	require.NoError(t, err)
	_, err = c.ListCustomers(context.Background(), model.CustomerFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
}

func TestNew_ClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"issued","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc(pathUserList, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer issued", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"users":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(context.Background(), Config{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
		ClientID:     "backoffice",
		ClientSecret: "s3cret",
	}, slog.Default())
	require.NoError(t, err)
	_, err = c.ListCustomers(context.Background(), model.CustomerFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(context.Background(), Config{}, slog.Default())
	assert.Error(t, err)
}
