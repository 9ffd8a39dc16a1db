package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AssertionType tags the variant held by an Assertion
type AssertionType string

const (
	AssertStatusCodeEquals  AssertionType = "statusCodeEquals"
	AssertStatusCodeIn      AssertionType = "statusCodeIn"
	AssertJSONPathExists    AssertionType = "jsonPathExists"
	AssertJSONPathEquals    AssertionType = "jsonPathEquals"
	AssertResponseTimeUnder AssertionType = "responseTimeUnder"
	AssertBodyExcludes      AssertionType = "bodyExcludes"
)

// Assertion is a tagged variant; only the fields relevant to Type are set.
type Assertion struct {
	Type      AssertionType `json:"type" yaml:"type"`
	Status    int           `json:"status,omitempty" yaml:"status,omitempty"`
	StatusSet []int         `json:"statusSet,omitempty" yaml:"status_set,omitempty"`
	Path      string        `json:"path,omitempty" yaml:"path,omitempty"`
	Value     any           `json:"value,omitempty" yaml:"value,omitempty"`
	Limit     time.Duration `json:"limit,omitempty" yaml:"limit,omitempty"`
	Substring string        `json:"substring,omitempty" yaml:"substring,omitempty"`
	// OnStatus limits the assertion to responses with this status; any
	// other status satisfies it.
	OnStatus int `json:"onStatus,omitempty" yaml:"on_status,omitempty"`
}

// WhenStatus returns a copy of a that only applies to responses with the given status
func (a Assertion) WhenStatus(code int) Assertion {
	a.OnStatus = code
	return a
}

// StatusCodeEquals creates an exact status assertion
func StatusCodeEquals(code int) Assertion {
	return Assertion{Type: AssertStatusCodeEquals, Status: code}
}

// StatusCodeIn builds a set assertion; the codes are stored sorted and unique.
func StatusCodeIn(codes ...int) Assertion {
	seen := make(map[int]bool, len(codes))
	set := make([]int, 0, len(codes))
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			set = append(set, c)
		}
	}
	sort.Ints(set)
	return Assertion{Type: AssertStatusCodeIn, StatusSet: set}
}

// JSONPathExists creates a presence assertion on a JSON path
func JSONPathExists(path string) Assertion {
	return Assertion{Type: AssertJSONPathExists, Path: path}
}

// JSONPathEquals creates a value assertion on a JSON path
func JSONPathEquals(path string, value any) Assertion {
	return Assertion{Type: AssertJSONPathEquals, Path: path, Value: value}
}

// ResponseTimeUnder creates an elapsed-time assertion
func ResponseTimeUnder(limit time.Duration) Assertion {
	return Assertion{Type: AssertResponseTimeUnder, Limit: limit}
}

// BodyExcludes creates an assertion that the raw body lacks substring
func BodyExcludes(substring string) Assertion {
	return Assertion{Type: AssertBodyExcludes, Substring: substring}
}

// String renders the assertion for display.
func (a Assertion) String() string {
	if a.OnStatus != 0 {
		guarded := a
		guarded.OnStatus = 0
		return fmt.Sprintf("%s (on %d)", guarded, a.OnStatus)
	}
	switch a.Type {
	case AssertStatusCodeEquals:
		return fmt.Sprintf("status == %d", a.Status)
	case AssertStatusCodeIn:
		codes := make([]string, len(a.StatusSet))
		for i, c := range a.StatusSet {
			codes[i] = fmt.Sprint(c)
		}
		return fmt.Sprintf("status in {%s}", strings.Join(codes, ","))
	case AssertJSONPathExists:
		return fmt.Sprintf("exists %s", a.Path)
	case AssertJSONPathEquals:
		return fmt.Sprintf("%s == %v", a.Path, a.Value)
	case AssertResponseTimeUnder:
		return fmt.Sprintf("elapsed < %s", a.Limit)
	case AssertBodyExcludes:
		return fmt.Sprintf("body excludes %q", a.Substring)
	default:
		return fmt.Sprintf("unknown assertion %q", a.Type)
	}
}
