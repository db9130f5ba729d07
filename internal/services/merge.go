package services

import (
	"encoding/json"

	"kpiboard/internal/validation"
)

// MergePatch applies patch onto current. Objects merge key by key; arrays,
// scalars and null replace. The patch must be a JSON object.
func MergePatch(current, patch []byte, document string) ([]byte, error) {
	var p any
	if err := json.Unmarshal(patch, &p); err != nil {
		return nil, &validation.Failure{Document: document, Violations: []validation.Violation{
			{Path: "$", Rule: validation.RuleJSON, Message: err.Error()},
		}}
	}
	po, ok := p.(map[string]any)
	if !ok {
		return nil, &validation.Failure{Document: document, Violations: []validation.Violation{
			{Path: "$", Rule: validation.RuleType, Message: "expected object"},
		}}
	}

	var c map[string]any
	if err := json.Unmarshal(current, &c); err != nil {
		return nil, err
	}
	return json.Marshal(mergeObjects(c, po))
}

func mergeObjects(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, sv := range src {
		so, srcIsObj := sv.(map[string]any)
		do, dstIsObj := dst[k].(map[string]any)
		if srcIsObj && dstIsObj {
			dst[k] = mergeObjects(do, so)
			continue
		}
		dst[k] = sv
	}
	return dst
}
