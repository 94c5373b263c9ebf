package rundeck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envdash/api/config"
)

func TestClientBaseURLAndHeaders(t *testing.T) {
	var gotPath, gotAccept, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotToken = r.Header.Get("X-Rundeck-Auth-Token")
		w.Write([]byte(`{"id":7,"status":"succeeded","permalink":"http://rd/7"}`))
	}))
	defer srv.Close()

	for _, base := range []string{srv.URL, srv.URL + "/"} {
		c := NewClient(config.Rundeck{URL: base, APIVersion: "21", AuthToken: "tok", Timeout: time.Second})
		exec, err := c.Execution(context.Background(), 7)
		require.NoError(t, err)

		assert.Equal(t, "/api/21/execution/7", gotPath)
		assert.Equal(t, "application/json", gotAccept)
		assert.Equal(t, "tok", gotToken)
		assert.Equal(t, &Execution{ID: 7, Status: StatusSucceeded, Permalink: "http://rd/7"}, exec)
	}
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such execution", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(config.Rundeck{URL: srv.URL, APIVersion: "21", Timeout: time.Second})
	_, err := c.Execution(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404: no such execution")
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(config.Rundeck{URL: srv.URL, APIVersion: "21", Timeout: 100 * time.Millisecond})
	_, err := c.RunJob(context.Background(), "job", "name: team1", nil)
	assert.Error(t, err)
}
