package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"api-test-engine/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersYAML = `endpoints:
  - id: get-users
    name: List users
    method: get
    path: /api/v1/users
    headers:
      - name: X-Tenant
        value: acme
    parameters:
      - name: page
        type: number
        minimum: 1
        maximum: 100
      - name: limit
        type: number
        default: 20
    expected_response:
      status_code: 200
      body_fields: ["$.items"]
  - id: create-user
    method: POST
    path: /api/v1/users
    parameters:
      - name: name
        type: string
        required: true
        example: ana
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	c, err := Load(writeFile(t, "endpoints.yaml", usersYAML))
	require.NoError(t, err)
	require.Len(t, c.Endpoints, 2)

	ep := c.Endpoints[0]
	assert.Equal(t, "GET", ep.Method)
	assert.Equal(t, []types.Header{{Name: "X-Tenant", Value: "acme"}}, ep.Headers)
	require.NotNil(t, ep.Parameters[0].Minimum)
	assert.Equal(t, 1.0, *ep.Parameters[0].Minimum)
	assert.Equal(t, 20, ep.Parameters[1].Default)
	assert.Equal(t, 200, ep.ExpectedResponse.StatusCode)
	assert.Equal(t, []string{"$.items"}, ep.ExpectedResponse.BodyFields)

	found, ok := c.Find("create-user")
	require.True(t, ok)
	assert.Equal(t, "ana", found.Parameters[0].Example)
}

func TestLoadJSON(t *testing.T) {
	c, err := Load(writeFile(t, "endpoints.json", `{"endpoints":[
		{"id":"get-user","method":"GET","path":"/users/{id}",
		 "parameters":[{"name":"id","type":"number","in":"path","required":true,"example":7}],
		 "expectedResponse":{"statusCode":200}}
	]}`))
	require.NoError(t, err)
	require.Len(t, c.Endpoints, 1)
	assert.Equal(t, types.InPath, c.Endpoints[0].Parameters[0].In)
	assert.Equal(t, 7, c.Endpoints[0].Parameters[0].Example)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeFile(t, "dup.yaml", `endpoints:
  - {id: a, method: GET, path: /a}
  - {id: a, method: GET, path: /b}
`))
	assert.ErrorIs(t, err, ErrDuplicateEndpoint)

	_, err = Load(writeFile(t, "bad.yaml", `endpoints:
  - {id: a, method: TRACE, path: /a}
`))
	assert.ErrorIs(t, err, types.ErrInvalidEndpoint)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	c, err := Load(writeFile(t, "endpoints.yaml", usersYAML))
	require.NoError(t, err)

	for _, name := range []string{"out/catalog.yaml", "out/catalog.json"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, Save(path, c))
		again, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, c, again, name)
	}
}

func TestMergeAndRemove(t *testing.T) {
	c := &Catalog{Endpoints: []types.Endpoint{{ID: "a", Method: "GET", Path: "/a"}}}
	added, replaced := c.Merge([]types.Endpoint{
		{ID: "a", Method: "GET", Path: "/a2"},
		{ID: "b", Method: "POST", Path: "/b"},
	})
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, replaced)
	assert.Equal(t, "/a2", c.Endpoints[0].Path)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	require.Len(t, c.Endpoints, 1)
	assert.Equal(t, "b", c.Endpoints[0].ID)
}

func TestExampleCatalogLoads(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "endpoints.example.yaml"))
	require.NoError(t, err)
	require.Len(t, c.Endpoints, 3)

	ep, ok := c.Find("get-user")
	require.True(t, ok)
	assert.Equal(t, types.InPath, ep.Parameters[0].In)
	assert.Equal(t, 1, ep.Parameters[0].Example)
	assert.Equal(t, []string{"$.id", "$.email"}, ep.ExpectedResponse.BodyFields)
}
