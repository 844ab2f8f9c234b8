package pagination

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Sternrassler/upmind-client-export/internal/testutil"
	"github.com/Sternrassler/upmind-client-export/pkg/client"
	"github.com/Sternrassler/upmind-client-export/pkg/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGetter serves canned bodies by URL and records the request order.
type fakeGetter struct {
	pages    map[string]string
	errs     map[string]error
	requests []string
}

func (f *fakeGetter) Get(_ context.Context, url string) ([]byte, error) {
	f.requests = append(f.requests, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &client.APIError{StatusCode: http.StatusNotFound, ErrorClass: client.ErrorClassClient, Message: "404 Not Found"}
	}
	return []byte(body), nil
}

func names(t *testing.T, records []normalize.Record) []string {
	t.Helper()
	out := make([]string, 0, len(records))
	for _, r := range records {
		name, _ := r["name"].(string)
		out = append(out, name)
	}
	return out
}

func TestFetchAll_BareListIsSinglePage(t *testing.T) {
	getter := &fakeGetter{pages: map[string]string{
		"https://api.test/clients": `[{"name":"A"},{"name":"B"}]`,
	}}

	records, err := NewFetcher(getter).FetchAll(context.Background(), "https://api.test/clients")
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, []string{"https://api.test/clients"}, getter.requests)
}

func TestFetchAll_FollowsNext(t *testing.T) {
	getter := &fakeGetter{pages: map[string]string{
		"https://api.test/clients":        `{"results":[{"name":"A"}], "next":"https://api.test/clients?page=2"}`,
		"https://api.test/clients?page=2": `{"results":[{"name":"B"}]}`,
	}}

	records, err := NewFetcher(getter).FetchAll(context.Background(), "https://api.test/clients")
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0]["name"])
	assert.Equal(t, "B", records[1]["name"])
	assert.Len(t, getter.requests, 2)
}

func TestFetchAll_FollowsLinksNext(t *testing.T) {
	getter := &fakeGetter{pages: map[string]string{
		"https://api.test/clients":        `{"data":[{"name":"A"}], "links":{"next":"https://api.test/clients?page=2"}}`,
		"https://api.test/clients?page=2": `{"data":[{"name":"B"}], "links":{"next":null}}`,
	}}

	records, err := NewFetcher(getter).FetchAll(context.Background(), "https://api.test/clients")
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Len(t, getter.requests, 2)
}

func TestFetchAll_RelativeNext(t *testing.T) {
	getter := &fakeGetter{pages: map[string]string{
		"https://api.test/v1/clients":        `{"clients":[{"name":"A"}], "next":"/v1/clients?page=2"}`,
		"https://api.test/v1/clients?page=2": `{"clients":[{"name":"B"}], "next":""}`,
	}}

	records, err := NewFetcher(getter).FetchAll(context.Background(), "https://api.test/v1/clients")
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, []string{
		"https://api.test/v1/clients",
		"https://api.test/v1/clients?page=2",
	}, getter.requests)
}

func TestFetchAll_ShapeViolation(t *testing.T) {
	getter := &fakeGetter{pages: map[string]string{
		"https://api.test/clients": `{"results": "not-a-list"}`,
	}}

	records, err := NewFetcher(getter).FetchAll(context.Background(), "https://api.test/clients")
	require.Error(t, err)
	assert.Nil(t, records)

	var shapeErr *ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestFetchAll_ShapeViolationOnLaterPageReturnsNothing(t *testing.T) {
	getter := &fakeGetter{pages: map[string]string{
		"https://api.test/clients":        `{"results":[{"name":"A"}], "next":"https://api.test/clients?page=2"}`,
		"https://api.test/clients?page=2": `"oops"`,
	}}

	records, err := NewFetcher(getter).FetchAll(context.Background(), "https://api.test/clients")
	require.Error(t, err)
	assert.Nil(t, records)
}

func TestFetchAll_TransportErrorAborts(t *testing.T) {
	serverErr := &client.APIError{StatusCode: 502, ErrorClass: client.ErrorClassServer, Message: "502 Bad Gateway"}
	getter := &fakeGetter{
		pages: map[string]string{
			"https://api.test/clients": `{"results":[{"name":"A"}], "next":"https://api.test/clients?page=2"}`,
		},
		errs: map[string]error{
			"https://api.test/clients?page=2": serverErr,
		},
	}

	records, err := NewFetcher(getter).FetchAll(context.Background(), "https://api.test/clients")
	require.Error(t, err)
	assert.Nil(t, records)
	assert.True(t, errors.Is(err, serverErr))
	assert.Equal(t, client.ErrorClassServer, client.ClassOf(err))
	assert.Len(t, getter.requests, 2)
}

func TestFetchAll_CycleDetected(t *testing.T) {
	getter := &fakeGetter{pages: map[string]string{
		"https://api.test/clients":        `{"results":[{"name":"A"}], "next":"https://api.test/clients?page=2"}`,
		"https://api.test/clients?page=2": `{"results":[{"name":"B"}], "next":"https://api.test/clients"}`,
	}}

	_, err := NewFetcher(getter).FetchAll(context.Background(), "https://api.test/clients")

	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Contains(t, shapeErr.Reason, "revisits")
	assert.Len(t, getter.requests, 2)
}

func TestFetchAll_MockAPI(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	startURL := mock.SetPages("/clients",
		[]map[string]any{{"name": "A"}, {"name": "B"}},
		[]map[string]any{{"name": "C"}},
	)

	apiClient, err := client.New(client.DefaultConfig("secret", "test/1.0"))
	require.NoError(t, err)

	records, err := NewFetcher(apiClient).FetchAll(context.Background(), startURL)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, names(t, records))
	assert.Equal(t, 2, mock.RequestCount())
	assert.Equal(t, "Bearer secret", mock.LastRequestHeader().Get("Authorization"))
}

func TestFetchAll_MockAPIUnauthorized(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetResponse("/clients", testutil.NewUnauthorizedResponse())

	apiClient, err := client.New(client.DefaultConfig("bad-token", "test/1.0"))
	require.NoError(t, err)

	records, err := NewFetcher(apiClient).FetchAll(context.Background(), mock.URL()+"/clients")
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Equal(t, client.ErrorClassClient, client.ClassOf(err))
	assert.Equal(t, 1, mock.RequestCount())
}
