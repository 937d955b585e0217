package arangodb

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/unigraph"
)

// stallingServer answers the database lookup and never answers cursor
// requests.
func stallingServer(t *testing.T) unigraph.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/_api/database/current"):
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"error":false,"code":200,"result":{"name":"_system","id":"1","path":"","isSystem":true}}`)
		case strings.HasSuffix(r.URL.Path, "/_api/cursor"):
			<-r.Context().Done()
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return unigraph.Config{Hosts: []string{host}, Port: p, Timeout: 200 * time.Millisecond}
}

func TestConnectionTimeout(t *testing.T) {
	cfg := stallingServer(t)
	a, err := connect(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Timeout, a.timeout)

	start := time.Now()
	_, err = a.query(context.Background(), "", "FOR v IN person RETURN v", nil, false)
	require.Error(t, err)
	assert.True(t, unigraph.IsKind(err, unigraph.KindTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)

	tx := &Tx{db: a, cols: map[string]bool{"person": false}}
	_, err = tx.FindVertices(context.Background(), unigraph.FindVerticesOptions{Type: "person"})
	assert.True(t, unigraph.IsKind(err, unigraph.KindTimeout), "got %v", err)
}

func TestCallerDeadlineWins(t *testing.T) {
	cfg := stallingServer(t)
	cfg.Timeout = time.Hour
	a, err := connect(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = a.query(ctx, "", "RETURN 1", nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.NotContains(t, err.Error(), "no response within")
}

func TestConnectionConfig(t *testing.T) {
	hc, err := connectionConfig(unigraph.Config{
		Hosts:          []string{"db1", "db2"},
		Port:           8529,
		MaxConnections: 7,
		Options:        map[string]string{"scheme": "https"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://db1:8529", "https://db2:8529"}, hc.Endpoints)
	assert.Equal(t, 7, hc.ConnLimit)

	_, err = connectionConfig(unigraph.Config{Hosts: []string{"db"}, Options: map[string]string{"scheme": "tcp"}})
	assert.True(t, unigraph.IsKind(err, unigraph.KindConnectionFailed))
}
