// Package engine evaluates cached flag documents against evaluation
// contexts. Evaluation is deterministic: for a fixed context and a fixed
// document, repeated calls return the same detail.
//
// Evaluation order (first match wins):
//  1. off flag → off variation
//  2. individual targets → targeted variation
//  3. rules (JSON Logic expressions over the context map) → rule variation
//  4. fallthrough → fixed variation or percentage rollout via bucketing
package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/flagmirror/flagmirror/internal/evalcontext"
	"github.com/flagmirror/flagmirror/internal/flagcache"
)

// Reason kinds reported in evaluation details.
const (
	ReasonOff         = "OFF"
	ReasonTargetMatch = "TARGET_MATCH"
	ReasonRuleMatch   = "RULE_MATCH"
	ReasonFallthrough = "FALLTHROUGH"
	ReasonError       = "ERROR"
)

// Error kinds reported when Reason.Kind is ReasonError.
const (
	ErrKindFlagNotFound   = "FLAG_NOT_FOUND"
	ErrKindMalformedFlag  = "MALFORMED_FLAG"
	ErrKindStoreError     = "STORE_ERROR"
	ErrKindClientNotReady = "CLIENT_NOT_READY"
)

// Reason explains how a value was chosen.
type Reason struct {
	Kind      string `json:"kind"`
	RuleIndex *int   `json:"ruleIndex,omitempty"`
	RuleID    string `json:"ruleId,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Detail is a resolved value together with its reason.
type Detail struct {
	Value  any    `json:"value"`
	Reason Reason `json:"reason"`
}

// ErrorDetail builds a Detail carrying the fallback value and an error reason.
func ErrorDetail(fallback any, errorKind string) Detail {
	return Detail{
		Value:  fallback,
		Reason: Reason{Kind: ReasonError, ErrorKind: errorKind},
	}
}

// Evaluate resolves a flag document for the given context.
func Evaluate(doc *flagcache.FlagDoc, ectx evalcontext.Context) Detail {
	if !doc.On {
		if doc.OffVariation == nil {
			return Detail{Value: nil, Reason: Reason{Kind: ReasonOff}}
		}
		value, err := variationValue(doc, *doc.OffVariation)
		if err != nil {
			return ErrorDetail(nil, ErrKindMalformedFlag)
		}
		return Detail{Value: value, Reason: Reason{Kind: ReasonOff}}
	}

	// Individual targets
	for _, target := range doc.Targets {
		if targetMatches(target, ectx) {
			value, err := variationValue(doc, target.Variation)
			if err != nil {
				return ErrorDetail(nil, ErrKindMalformedFlag)
			}
			return Detail{Value: value, Reason: Reason{Kind: ReasonTargetMatch}}
		}
	}

	// Targeting rules
	for i, rule := range doc.Rules {
		match, err := ruleMatches(rule, ectx)
		if err != nil {
			// An invalid expression never matches; the remaining rules
			// and the fallthrough still apply.
			continue
		}
		if match {
			value, err := variationValue(doc, rule.Variation)
			if err != nil {
				return ErrorDetail(nil, ErrKindMalformedFlag)
			}
			idx := i
			return Detail{
				Value:  value,
				Reason: Reason{Kind: ReasonRuleMatch, RuleIndex: &idx, RuleID: rule.ID},
			}
		}
	}

	// Fallthrough
	idx, err := resolveVariationOrRollout(doc, doc.Fallthrough, ectx.Key)
	if err != nil {
		return ErrorDetail(nil, ErrKindMalformedFlag)
	}
	value, err := variationValue(doc, idx)
	if err != nil {
		return ErrorDetail(nil, ErrKindMalformedFlag)
	}
	return Detail{Value: value, Reason: Reason{Kind: ReasonFallthrough}}
}

// targetMatches checks a target list against the context. The target
// attribute defaults to the context key.
func targetMatches(target flagcache.Target, ectx evalcontext.Context) bool {
	attr := target.Attribute
	if attr == "" || attr == "key" {
		return containsString(target.Values, ectx.Key)
	}
	if attr == "name" {
		return containsString(target.Values, ectx.Name)
	}
	return containsString(target.Values, ectx.Attr(attr))
}

// ruleMatches applies a JSON Logic expression to the context map, following
// JavaScript-like truthiness for the result.
func ruleMatches(rule flagcache.Rule, ectx evalcontext.Context) (bool, error) {
	expr := strings.TrimSpace(string(rule.Expression))
	if expr == "" {
		return false, fmt.Errorf("rule %q: empty expression", rule.ID)
	}

	data, err := json.Marshal(ectx.AsMap())
	if err != nil {
		return false, err
	}

	var result bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(expr), bytes.NewReader(data), &result); err != nil {
		return false, fmt.Errorf("rule %q: %w", rule.ID, err)
	}

	var value any
	if err := json.Unmarshal(result.Bytes(), &value); err != nil {
		return false, err
	}
	return isTruthy(value), nil
}

// resolveVariationOrRollout picks a variation index, bucketing the context
// key across rollout weights when a rollout is configured.
func resolveVariationOrRollout(doc *flagcache.FlagDoc, vr flagcache.VariationOrRollout, contextKey string) (int, error) {
	if len(vr.Rollout) > 0 {
		weight := bucketWeight(ComputeHash(doc.Key, contextKey, doc.Salt))
		cumulative := 0
		for _, wv := range vr.Rollout {
			cumulative += wv.Weight
			if weight < cumulative {
				return wv.Variation, nil
			}
		}
		// Weights should sum to the full weight space; tolerate documents
		// that fall short by assigning the last slice.
		return vr.Rollout[len(vr.Rollout)-1].Variation, nil
	}
	if vr.Variation != nil {
		return *vr.Variation, nil
	}
	return 0, fmt.Errorf("flag %q: neither variation nor rollout configured", doc.Key)
}

func variationValue(doc *flagcache.FlagDoc, idx int) (any, error) {
	if idx < 0 || idx >= len(doc.Variations) {
		return nil, fmt.Errorf("flag %q: variation index %d out of range", doc.Key, idx)
	}
	return doc.Variations[idx], nil
}

func containsString(values []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// isTruthy follows JavaScript-like truthiness rules.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
