package executor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"api-test-engine/internal/types"
)

// response is what the assertions are evaluated against
type response struct {
	status  int
	body    []byte
	elapsed time.Duration

	decoded  any
	parsed   bool
	parseErr error
}

func (r *response) json() (any, error) {
	if !r.parsed {
		r.parsed = true
		r.parseErr = json.Unmarshal(r.body, &r.decoded)
	}
	return r.decoded, r.parseErr
}

func knownAssertion(t types.AssertionType) bool {
	switch t {
	case types.AssertStatusCodeEquals, types.AssertStatusCodeIn,
		types.AssertJSONPathExists, types.AssertJSONPathEquals,
		types.AssertResponseTimeUnder, types.AssertBodyExcludes:
		return true
	}
	return false
}

// evaluate checks every assertion; a failure does not stop the others
// from being evaluated.
func evaluate(assertions []types.Assertion, resp *response) (results []types.AssertionResult, failed []types.Assertion) {
	results = make([]types.AssertionResult, 0, len(assertions))
	for _, a := range assertions {
		passed, actual := check(a, resp)
		results = append(results, types.AssertionResult{Assertion: a, Passed: passed, Actual: actual})
		if !passed {
			failed = append(failed, a)
		}
	}
	return results, failed
}

func check(a types.Assertion, resp *response) (bool, string) {
	if a.OnStatus != 0 && knownAssertion(a.Type) && resp.status != a.OnStatus {
		return true, fmt.Sprintf("not checked (status %d)", resp.status)
	}
	switch a.Type {
	case types.AssertStatusCodeEquals:
		return resp.status == a.Status, fmt.Sprint(resp.status)

	case types.AssertStatusCodeIn:
		for _, code := range a.StatusSet {
			if resp.status == code {
				return true, fmt.Sprint(resp.status)
			}
		}
		return false, fmt.Sprint(resp.status)

	case types.AssertJSONPathExists, types.AssertJSONPathEquals:
		doc, err := resp.json()
		if err != nil {
			return false, "body is not JSON"
		}
		value, found, err := jsonPathGet(doc, a.Path)
		if err != nil {
			return false, err.Error()
		}
		if !found {
			return false, "not found"
		}
		if a.Type == types.AssertJSONPathExists {
			return true, "present"
		}
		return valuesEqual(value, a.Value), fmt.Sprint(value)

	case types.AssertResponseTimeUnder:
		return resp.elapsed < a.Limit, resp.elapsed.String()

	case types.AssertBodyExcludes:
		if strings.Contains(string(resp.body), a.Substring) {
			return false, fmt.Sprintf("body contains %q", a.Substring)
		}
		return true, ""

	default:
		return false, fmt.Sprintf("unknown assertion %q", a.Type)
	}
}
