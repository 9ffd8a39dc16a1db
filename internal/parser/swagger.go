package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"api-test-engine/internal/logger"
	"api-test-engine/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
)

// maxDocumentSize caps how much of a remote OpenAPI document is read
const maxDocumentSize = 20 * 1024 * 1024

// wellKnownPaths are tried, in order, under a base URL that is not itself a document
var wellKnownPaths = []string{
	"/swagger/v1/swagger.json",
	"/swagger.json",
	"/openapi.json",
	"/v1/swagger.json",
	"/api/swagger.json",
	"/api/v1/swagger.json",
	"/swagger/v1/swagger",
	"/swagger",
}

// methodOrder keeps imported endpoints in a stable order within a path
var methodOrder = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// OpenAPIParser turns an OpenAPI 3 document into endpoint models
type OpenAPIParser struct {
	source string
	client *http.Client
	log    *logger.Logger
}

// NewOpenAPIParser creates a parser for a document URL, a service base URL
// or a local file path.
func NewOpenAPIParser(source string, log *logger.Logger) *OpenAPIParser {
	return &OpenAPIParser{
		source: source,
		client: &http.Client{},
		log:    log.Subsystem("parser"),
	}
}

// ParseEndpoints loads the document and extracts every supported operation
func (p *OpenAPIParser) ParseEndpoints(ctx context.Context) ([]types.Endpoint, error) {
	doc, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return p.extractEndpoints(doc), nil
}

func (p *OpenAPIParser) load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	if !strings.HasPrefix(p.source, "http://") && !strings.HasPrefix(p.source, "https://") {
		doc, err := loader.LoadFromFile(p.source)
		if err != nil {
			return nil, fmt.Errorf("failed to parse OpenAPI file %s: %w", p.source, err)
		}
		return doc, nil
	}

	base := strings.TrimRight(p.source, "/")
	urls := []string{base}
	for _, path := range wellKnownPaths {
		urls = append(urls, base+path)
	}

	var lastErr error
	for _, url := range urls {
		p.log.Debug("fetching OpenAPI document", "url", url)
		doc, err := p.fetch(ctx, loader, url)
		if err == nil {
			p.log.Info("fetched OpenAPI document", "url", url)
			return doc, nil
		}
		p.log.Debug("no OpenAPI document", "url", url, "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("failed to fetch OpenAPI documentation from any known URL: %w", lastErr)
}

func (p *OpenAPIParser) fetch(ctx context.Context, loader *openapi3.Loader, url string) (*openapi3.T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	doc, err := loader.LoadFromData(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, fmt.Errorf("document at %s declares no paths", url)
	}
	return doc, nil
}

// extractEndpoints converts each operation, skipping those that do not
// form a valid endpoint.
func (p *OpenAPIParser) extractEndpoints(doc *openapi3.T) []types.Endpoint {
	if doc.Paths == nil {
		return nil
	}
	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)

	var endpoints []types.Endpoint
	for _, path := range keys {
		item := paths[path]
		for _, method := range methodOrder {
			op := item.GetOperation(method)
			if op == nil {
				continue
			}
			ep := p.buildEndpoint(path, method, item.Parameters, op)
			if err := ep.Validate(); err != nil {
				p.log.Warn("skipping operation", "method", method, "path", path, "error", err)
				continue
			}
			endpoints = append(endpoints, ep)
		}
	}
	p.log.Info("imported endpoints", "count", len(endpoints))
	return endpoints
}

func (p *OpenAPIParser) buildEndpoint(path, method string, shared openapi3.Parameters, op *openapi3.Operation) types.Endpoint {
	ep := types.Endpoint{
		ID:          endpointID(method, path, op.OperationID),
		Name:        op.Summary,
		Method:      method,
		Path:        path,
		Description: op.Description,
		Parameters:  []types.Parameter{},
	}
	if ep.Name == "" {
		ep.Name = method + " " + path
	}

	seen := make(map[string]bool)
	add := func(param types.Parameter) {
		if seen[param.Name] {
			return
		}
		seen[param.Name] = true
		ep.Parameters = append(ep.Parameters, param)
	}

	// operation-level parameters override path-level ones of the same name
	for _, list := range []openapi3.Parameters{op.Parameters, shared} {
		for _, ref := range list {
			if ref == nil || ref.Value == nil {
				continue
			}
			if param, ok := convertParameter(ref.Value); ok {
				add(param)
			}
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if media := op.RequestBody.Value.Content.Get("application/json"); media != nil && media.Schema != nil {
			for _, param := range bodyParameters(media.Schema.Value) {
				add(param)
			}
		}
	}

	ep.ExpectedResponse = expectedResponse(op.Responses)
	return ep
}

func convertParameter(param *openapi3.Parameter) (types.Parameter, bool) {
	var in string
	switch param.In {
	case openapi3.ParameterInPath:
		in = types.InPath
	case openapi3.ParameterInQuery:
		in = types.InQuery
	case openapi3.ParameterInHeader:
		// credentials are driven by the auth and error scenarios
		if strings.EqualFold(param.Name, "Authorization") {
			return types.Parameter{}, false
		}
		in = types.InHeader
	default:
		return types.Parameter{}, false
	}

	out := types.Parameter{
		Name:        param.Name,
		Required:    param.Required || param.In == openapi3.ParameterInPath,
		Description: param.Description,
		In:          in,
		Example:     param.Example,
		Type:        types.ParamString,
	}
	if param.Schema != nil && param.Schema.Value != nil {
		applySchema(&out, param.Schema.Value)
	}
	return out, true
}

// bodyParameters flattens the top-level properties of a JSON object body
func bodyParameters(schema *openapi3.Schema) []types.Parameter {
	if schema == nil || len(schema.Properties) == 0 {
		return nil
	}
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var params []types.Parameter
	for _, name := range names {
		prop := schema.Properties[name]
		if prop == nil || prop.Value == nil || prop.Value.ReadOnly {
			continue
		}
		param := types.Parameter{
			Name:        name,
			Required:    required[name],
			Description: prop.Value.Description,
			In:          types.InBody,
			Type:        types.ParamString,
		}
		applySchema(&param, prop.Value)
		params = append(params, param)
	}
	return params
}

func applySchema(param *types.Parameter, schema *openapi3.Schema) {
	param.Type = schemaType(schema)
	if param.Description == "" {
		param.Description = schema.Description
	}
	if param.Type == types.ParamNumber {
		param.Minimum = schema.Min
		param.Maximum = schema.Max
	}
	if schema.Default != nil {
		param.Default = schema.Default
	}
	if param.Example == nil && schema.Example != nil {
		param.Example = schema.Example
	}
	if param.Example == nil && len(schema.Enum) > 0 {
		param.Example = schema.Enum[0]
	}
}

func schemaType(schema *openapi3.Schema) types.ParamType {
	if schema.Type == nil {
		return types.ParamString
	}
	for _, t := range *schema.Type {
		switch t {
		case openapi3.TypeInteger, openapi3.TypeNumber:
			return types.ParamNumber
		case openapi3.TypeBoolean:
			return types.ParamBoolean
		}
	}
	return types.ParamString
}

// expectedResponse picks the lowest documented 2xx status and the
// top-level fields of its JSON body.
func expectedResponse(responses *openapi3.Responses) types.ExpectedResponse {
	expected := types.ExpectedResponse{StatusCode: http.StatusOK}
	if responses == nil {
		return expected
	}

	best := 0
	var bestRef *openapi3.ResponseRef
	for code, ref := range responses.Map() {
		n, err := strconv.Atoi(code)
		if err != nil || n < 200 || n > 299 {
			continue
		}
		if best == 0 || n < best {
			best, bestRef = n, ref
		}
	}
	if best == 0 {
		return expected
	}
	expected.StatusCode = best

	if bestRef == nil || bestRef.Value == nil {
		return expected
	}
	media := bestRef.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return expected
	}
	for name := range media.Schema.Value.Properties {
		expected.BodyFields = append(expected.BodyFields, "$."+name)
	}
	sort.Strings(expected.BodyFields)
	return expected
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// endpointID prefers the operationId and otherwise derives a slug
// from method and path, e.g. "get-users-id".
func endpointID(method, path, operationID string) string {
	if operationID != "" {
		return operationID
	}
	slug := nonSlug.ReplaceAllString(strings.ToLower(method+" "+path), "-")
	return strings.Trim(slug, "-")
}
