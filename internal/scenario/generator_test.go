package scenario

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"api-test-engine/internal/logger"
	"api-test-engine/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func usersEndpoint() types.Endpoint {
	return types.Endpoint{
		ID:     "list-users",
		Method: types.MethodGet,
		Path:   "/api/v1/users",
		Headers: []types.Header{
			{Name: "Content-Type", Value: "application/json"},
		},
		Parameters: []types.Parameter{
			{Name: "page", Type: types.ParamNumber, Description: "page number"},
			{Name: "limit", Type: types.ParamNumber, Description: "page size"},
		},
		ExpectedResponse: types.ExpectedResponse{StatusCode: 200},
	}
}

func newTestGenerator(opts Options) *Generator {
	return NewGenerator(opts, logger.Discard())
}

func queryValue(req types.Request, name string) (any, bool) {
	for _, q := range req.Query {
		if q.Name == name {
			return q.Value, true
		}
	}
	return nil, false
}

func headerValue(req types.Request, name string) (string, bool) {
	for _, h := range req.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

func TestGenerateNormal(t *testing.T) {
	g := newTestGenerator(DefaultOptions())

	suite, err := g.Generate(usersEndpoint(), []types.ScenarioKind{types.KindNormal})
	require.NoError(t, err)
	require.Len(t, suite.Cases, 1)

	tc := suite.Cases[0]
	assert.Equal(t, types.KindNormal, tc.ScenarioKind)
	assert.Equal(t, "list-users", tc.EndpointID)
	assert.Equal(t, types.MethodGet, tc.Request.Method)

	page, ok := queryValue(tc.Request, "page")
	require.True(t, ok)
	assert.Equal(t, 1, page)
	limit, ok := queryValue(tc.Request, "limit")
	require.True(t, ok)
	assert.Equal(t, 1, limit)

	assert.Equal(t, []types.Assertion{types.StatusCodeEquals(200)}, tc.Assertions)
	assert.Nil(t, tc.Request.Body)
}

func TestGenerateNormalAssertsDocumentedFields(t *testing.T) {
	ep := usersEndpoint()
	ep.ExpectedResponse.BodyFields = []string{"$.data.total", "$.data.items"}

	suite, err := newTestGenerator(DefaultOptions()).Generate(ep, []types.ScenarioKind{types.KindNormal})
	require.NoError(t, err)
	require.Len(t, suite.Cases, 1)
	assert.Equal(t, []types.Assertion{
		types.StatusCodeEquals(200),
		types.JSONPathExists("$.data.total"),
		types.JSONPathExists("$.data.items"),
	}, suite.Cases[0].Assertions)
}

func TestGenerateIsDeterministic(t *testing.T) {
	g := newTestGenerator(DefaultOptions())
	ep := usersEndpoint()
	ep.Parameters = append(ep.Parameters, types.Parameter{Name: "keyword", Type: types.ParamString})

	first, err := g.Generate(ep, types.AllKinds)
	require.NoError(t, err)
	second, err := g.Generate(ep, types.AllKinds)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	reordered, err := g.Generate(ep, []types.ScenarioKind{types.KindSecurity, types.KindNormal})
	require.NoError(t, err)
	subset, err := g.Generate(ep, []types.ScenarioKind{types.KindNormal, types.KindSecurity})
	require.NoError(t, err)
	assert.Equal(t, subset, reordered)
}

func TestGenerateBoundaryDeclaredBounds(t *testing.T) {
	ep := usersEndpoint()
	ep.Parameters = []types.Parameter{
		{Name: "limit", Type: types.ParamNumber, Minimum: floatPtr(1), Maximum: floatPtr(100)},
	}

	suite, err := newTestGenerator(DefaultOptions()).Generate(ep, []types.ScenarioKind{types.KindBoundary})
	require.NoError(t, err)
	require.Len(t, suite.Cases, 4)

	var got []any
	for _, tc := range suite.Cases {
		v, ok := queryValue(tc.Request, "limit")
		require.True(t, ok)
		got = append(got, v)
		assert.Equal(t, []types.Assertion{types.StatusCodeIn(200, 400)}, tc.Assertions)
	}
	assert.ElementsMatch(t, []any{0, 1, 100, 101}, got)
}

func TestGenerateBoundaryGenericRange(t *testing.T) {
	ep := usersEndpoint()
	ep.Parameters = ep.Parameters[:1]

	suite, err := newTestGenerator(DefaultOptions()).Generate(ep, []types.ScenarioKind{types.KindBoundary})
	require.NoError(t, err)

	var got []any
	for _, tc := range suite.Cases {
		v, _ := queryValue(tc.Request, "page")
		got = append(got, v)
	}
	assert.Equal(t, []any{0, -1, 1000, 1001}, got)
}

func TestGenerateBoundaryOverride(t *testing.T) {
	opts := DefaultOptions()
	opts.Bounds = map[string]Bounds{"page": {Min: 5, Max: 50}}
	ep := usersEndpoint()
	ep.Parameters = []types.Parameter{
		{Name: "page", Type: types.ParamNumber, Minimum: floatPtr(1), Maximum: floatPtr(100)},
	}

	suite, err := newTestGenerator(opts).Generate(ep, []types.ScenarioKind{types.KindBoundary})
	require.NoError(t, err)

	var got []any
	for _, tc := range suite.Cases {
		v, _ := queryValue(tc.Request, "page")
		got = append(got, v)
	}
	assert.Equal(t, []any{5, 4, 50, 51}, got)
}

func TestGenerateSkipsInapplicableRules(t *testing.T) {
	ep := types.Endpoint{ID: "health", Method: types.MethodGet, Path: "/health"}

	suite, err := newTestGenerator(DefaultOptions()).Generate(ep, []types.ScenarioKind{types.KindBoundary, types.KindNormal})
	require.NoError(t, err)

	require.Len(t, suite.Cases, 1)
	assert.Equal(t, types.KindNormal, suite.Cases[0].ScenarioKind)
	require.Len(t, suite.Skipped, 1)
	assert.Equal(t, types.KindBoundary, suite.Skipped[0].Kind)
}

func TestGenerateError(t *testing.T) {
	suite, err := newTestGenerator(DefaultOptions()).Generate(usersEndpoint(), []types.ScenarioKind{types.KindError})
	require.NoError(t, err)
	require.Len(t, suite.Cases, 2)

	page, _ := queryValue(suite.Cases[0].Request, "page")
	assert.Equal(t, -1, page)
	assert.Equal(t, []types.Assertion{types.StatusCodeEquals(http.StatusBadRequest)}, suite.Cases[0].Assertions)

	authz, ok := headerValue(suite.Cases[1].Request, "Authorization")
	require.True(t, ok)
	assert.Equal(t, "Bearer invalid-token", authz)
	assert.Equal(t, []types.Assertion{types.StatusCodeEquals(http.StatusUnauthorized)}, suite.Cases[1].Assertions)
}

func TestGenerateAuth(t *testing.T) {
	suite, err := newTestGenerator(DefaultOptions()).Generate(usersEndpoint(), []types.ScenarioKind{types.KindAuth})
	require.NoError(t, err)
	require.Len(t, suite.Cases, 3)

	_, ok := headerValue(suite.Cases[0].Request, "Authorization")
	assert.False(t, ok, "first auth case must omit Authorization")
	assert.Equal(t, types.StatusCodeEquals(401), suite.Cases[0].Assertions[0])

	expired, _ := headerValue(suite.Cases[1].Request, "Authorization")
	assert.Equal(t, "Bearer expired-token", expired)
	assert.Equal(t, types.StatusCodeEquals(401), suite.Cases[1].Assertions[0])

	low, _ := headerValue(suite.Cases[2].Request, "Authorization")
	assert.Equal(t, "Bearer low-privilege-token", low)
	assert.Equal(t, types.StatusCodeEquals(403), suite.Cases[2].Assertions[0])
}

func TestGenerateAuthWithoutConfiguredCredentials(t *testing.T) {
	opts := Options{Credentials: Credentials{Valid: "good"}}
	suite, err := newTestGenerator(opts).Generate(usersEndpoint(), []types.ScenarioKind{types.KindAuth, types.KindError})
	require.NoError(t, err)

	var sent []string
	for _, tc := range suite.Cases {
		if h, ok := headerValue(tc.Request, "Authorization"); ok {
			sent = append(sent, tc.Name+"="+h)
			if tc.ScenarioKind == types.KindAuth {
				assert.NotEqual(t, "Bearer good", h, tc.Name)
			}
		}
	}
	assert.Contains(t, sent, "auth: expired token=Bearer expired-token")
	assert.Contains(t, sent, "auth: low-privilege token=Bearer low-privilege-token")
	assert.Contains(t, sent, "error: invalid credential=Bearer invalid-token")
}

func TestGenerateAuthReplacesDeclaredAuthorization(t *testing.T) {
	ep := usersEndpoint()
	ep.Headers = append(ep.Headers, types.Header{Name: "Authorization", Value: "Bearer declared"})

	suite, err := newTestGenerator(DefaultOptions()).Generate(ep, []types.ScenarioKind{types.KindNormal, types.KindAuth})
	require.NoError(t, err)

	normal, _ := headerValue(suite.Cases[0].Request, "Authorization")
	assert.Equal(t, "Bearer declared", normal)
	_, ok := headerValue(suite.Cases[1].Request, "Authorization")
	assert.False(t, ok)
}

func TestGenerateInvalidInput(t *testing.T) {
	ep := types.Endpoint{
		ID:     "create-user",
		Method: types.MethodPost,
		Path:   "/api/v1/users",
		Parameters: []types.Parameter{
			{Name: "name", Type: types.ParamString, Required: true},
			{Name: "age", Type: types.ParamNumber},
		},
		ExpectedResponse: types.ExpectedResponse{StatusCode: 201},
	}

	suite, err := newTestGenerator(DefaultOptions()).Generate(ep, []types.ScenarioKind{types.KindInvalidInput})
	require.NoError(t, err)

	// name: mismatch + missing; age: mismatch; unknown field
	require.Len(t, suite.Cases, 4)
	assert.Equal(t, 12345, suite.Cases[0].Request.Body["name"])
	_, present := suite.Cases[1].Request.Body["name"]
	assert.False(t, present)
	assert.Equal(t, "abc", suite.Cases[2].Request.Body["age"])
	assert.Equal(t, "value", suite.Cases[3].Request.Body["invalid_key"])
	for _, tc := range suite.Cases {
		assert.Equal(t, []types.Assertion{types.StatusCodeEquals(400)}, tc.Assertions)
		ct, _ := headerValue(tc.Request, "Content-Type")
		assert.Equal(t, "application/json", ct)
	}
}

func TestGenerateConcurrentAndPerformance(t *testing.T) {
	opts := DefaultOptions()
	opts.ConcurrencyHint = 7
	opts.PerformanceThreshold = 150 * time.Millisecond

	suite, err := newTestGenerator(opts).Generate(usersEndpoint(), []types.ScenarioKind{types.KindConcurrent, types.KindPerformance})
	require.NoError(t, err)
	require.Len(t, suite.Cases, 2)

	assert.Equal(t, 7, suite.Cases[0].ConcurrencyHint)
	assert.Equal(t, 7, suite.Cases[0].Executions())
	assert.Equal(t, []types.Assertion{types.StatusCodeEquals(200)}, suite.Cases[0].Assertions)

	assert.Equal(t, 1, suite.Cases[1].Executions())
	assert.Equal(t, []types.Assertion{
		types.ResponseTimeUnder(150 * time.Millisecond),
		types.StatusCodeEquals(200),
	}, suite.Cases[1].Assertions)
}

func TestGenerateDependencyFailure(t *testing.T) {
	t.Run("unsupported environment", func(t *testing.T) {
		suite, err := newTestGenerator(DefaultOptions()).Generate(usersEndpoint(), []types.ScenarioKind{types.KindDependencyFailure})
		require.NoError(t, err)
		require.Len(t, suite.Cases, 2)
		for _, tc := range suite.Cases {
			assert.NotEmpty(t, tc.NotApplicable)
			_, ok := headerValue(tc.Request, "X-Fault-Inject")
			assert.False(t, ok)
		}
	})

	t.Run("supported environment", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Injection.Supported = true
		suite, err := newTestGenerator(opts).Generate(usersEndpoint(), []types.ScenarioKind{types.KindDependencyFailure})
		require.NoError(t, err)
		require.Len(t, suite.Cases, 2)

		targets := []string{"database", "cache"}
		for i, tc := range suite.Cases {
			assert.Empty(t, tc.NotApplicable)
			require.NotNil(t, tc.Injection)
			assert.Equal(t, targets[i], tc.Injection.Target)
			v, ok := headerValue(tc.Request, "X-Fault-Inject")
			require.True(t, ok)
			assert.Equal(t, targets[i], v)
			assert.Equal(t, []types.Assertion{types.StatusCodeEquals(503)}, tc.Assertions)
		}
	})
}

func TestGenerateSecurity(t *testing.T) {
	ep := usersEndpoint()
	ep.Parameters = append(ep.Parameters, types.Parameter{Name: "keyword", Type: types.ParamString})

	suite, err := newTestGenerator(DefaultOptions()).Generate(ep, []types.ScenarioKind{types.KindSecurity})
	require.NoError(t, err)
	require.Len(t, suite.Cases, 3)

	kw, _ := queryValue(suite.Cases[0].Request, "keyword")
	assert.Equal(t, "' OR '1'='1", kw)
	kw, _ = queryValue(suite.Cases[1].Request, "keyword")
	assert.Equal(t, "<script>alert('xss')</script>", kw)

	want := []types.Assertion{
		types.StatusCodeEquals(400),
		types.BodyExcludes("password").WhenStatus(200),
		types.BodyExcludes("salt").WhenStatus(200),
	}
	assert.Equal(t, want, suite.Cases[0].Assertions)
	assert.Equal(t, want[1:], suite.Cases[2].Assertions)
	assert.Empty(t, suite.Skipped)
}

func TestGenerateSecurityWithoutFreeText(t *testing.T) {
	suite, err := newTestGenerator(DefaultOptions()).Generate(usersEndpoint(), []types.ScenarioKind{types.KindSecurity})
	require.NoError(t, err)

	require.Len(t, suite.Cases, 1)
	assert.Equal(t, "security: sensitive data exposure", suite.Cases[0].Name)
	require.Len(t, suite.Skipped, 1)
	assert.Equal(t, types.KindSecurity, suite.Skipped[0].Kind)
	assert.Contains(t, suite.Skipped[0].Reason, "free-text")
}

func TestGenerateCaseIDs(t *testing.T) {
	suite, err := newTestGenerator(DefaultOptions()).Generate(usersEndpoint(), types.AllKinds)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, tc := range suite.Cases {
		assert.False(t, seen[tc.ID], "duplicate case id %s", tc.ID)
		seen[tc.ID] = true
	}

	other := usersEndpoint()
	other.ID = "list-users-v2"
	otherSuite, err := newTestGenerator(DefaultOptions()).Generate(other, []types.ScenarioKind{types.KindNormal})
	require.NoError(t, err)
	assert.False(t, seen[otherSuite.Cases[0].ID])
}

func TestGenerateRejectsBadInput(t *testing.T) {
	g := newTestGenerator(DefaultOptions())

	_, err := g.Generate(usersEndpoint(), []types.ScenarioKind{"fuzz"})
	assert.Error(t, err)

	ep := usersEndpoint()
	ep.Method = "HEAD"
	_, err = g.Generate(ep, []types.ScenarioKind{types.KindNormal})
	assert.True(t, errors.Is(err, types.ErrInvalidEndpoint))
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds([]string{"normal,boundary", "auth"})
	require.NoError(t, err)
	assert.Equal(t, []types.ScenarioKind{types.KindNormal, types.KindBoundary, types.KindAuth}, kinds)

	all, err := ParseKinds([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, types.AllKinds, all)

	_, err = ParseKinds([]string{"bogus"})
	assert.Error(t, err)
	_, err = ParseKinds(nil)
	assert.Error(t, err)
}
