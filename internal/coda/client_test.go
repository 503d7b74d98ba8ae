package coda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, "secret-token")
}

func TestListDocsSendsBearerToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/docs", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"d1","name":"Projects"},{"id":"d2","name":"Archive"}]}`))
	})

	docs, err := client.ListDocs(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Doc{ID: "d1", Name: "Projects"}, docs[0])
}

func TestListTables(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/docs/d1/tables", r.URL.Path)
		w.Write([]byte(`{"items":[{"id":"t1","name":"Works"}]}`))
	})

	tables, err := client.ListTables(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "t1", tables[0].ID)
}

func TestListRowIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/docs/d1/tables/t1/rows", r.URL.Path)
		w.Write([]byte(`{"items":[{"id":"r1"},{"id":"r2"},{"id":"r3"}]}`))
	})

	ids, err := client.ListRowIDs(context.Background(), "d1", "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids)
}

func TestDeleteRowsAcceptedOnlyOn202(t *testing.T) {
	var gotBody struct {
		RowIDs []string `json:"rowIds"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	})

	err := client.DeleteRows(context.Background(), "d1", "t1", []string{"r1", "r2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, gotBody.RowIDs)
}

func TestDeleteRowsRejectsNonAcceptedStatus(t *testing.T) {
	// Even a 200 is not "accepted": the service signals queued
	// deletion with 202 and nothing else.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	err := client.DeleteRows(context.Background(), "d1", "t1", []string{"r1"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusOK, se.Code)
}

func TestInsertRowsSerializesCells(t *testing.T) {
	var gotBody struct {
		Rows []struct {
			Cells []struct {
				Column string `json:"column"`
				Value  any    `json:"value"`
			} `json:"cells"`
		} `json:"rows"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	})

	rows := []Row{
		{Cells: []Cell{
			{Column: "Work Item", Value: "Excavation"},
			{Column: "Start Date", Value: "2024-03-15"},
		}},
	}
	require.NoError(t, client.InsertRows(context.Background(), "d1", "t1", rows))

	require.Len(t, gotBody.Rows, 1)
	require.Len(t, gotBody.Rows[0].Cells, 2)
	assert.Equal(t, "Work Item", gotBody.Rows[0].Cells[0].Column)
	assert.Equal(t, "2024-03-15", gotBody.Rows[0].Cells[1].Value)
}

func TestInsertRowsSurfacesRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := client.InsertRows(context.Background(), "d1", "t1", []Row{{}})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestListDocsSurfacesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.ListDocs(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.False(t, IsRateLimited(err))
}
