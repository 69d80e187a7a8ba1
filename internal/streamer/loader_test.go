package streamer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoader_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/annotations", r.URL.Path)
		assert.Equal(t, "g1", r.URL.Query().Get("group"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(searchResponse{
			Total: 7,
			Rows: []models.Annotation{
				{ID: "a1", Group: "g1", Text: "one"},
				{ID: "a2", Group: "g1", Text: "two"},
			},
		})
	}))
	defer srv.Close()

	sb := newFocusedSidebar(t)
	require.True(t, sb.IsLoading())

	err := NewLoader(srv.Client(), srv.URL, "token", zap.NewNop()).Load(context.Background(), sb, "g1", 50)

	require.NoError(t, err)
	assert.Len(t, sb.AllAnnotations(), 2)
	assert.False(t, sb.IsLoading())

	count, err := sb.Select("annotationResultCount")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestLoader_LoadFailureFinishesFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	sb := newFocusedSidebar(t)
	err := NewLoader(nil, srv.URL, "", zap.NewNop()).Load(context.Background(), sb, "g1", 0)

	require.Error(t, err)
	assert.Empty(t, sb.AllAnnotations())

	fetching, err := sb.Select("isFetchingAnnotations")
	require.NoError(t, err)
	assert.Equal(t, false, fetching)
}
