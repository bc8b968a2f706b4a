package approval

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RuleCriteria is the matching surface of an auto-approval rule, decoupled from
// how the rule is persisted.
type RuleCriteria struct {
	RequestTypes               []RequestType
	PriorityLevels             []Priority
	SameSiteOnly               bool
	RequiresQualificationMatch bool
	MaxDistanceFromSiteMeters  *float64
	MaxTimeVarianceMinutes     *int
	ConditionsJSON             string
}

// RequestAttributes is the slice of a request that rules are evaluated against.
type RequestAttributes struct {
	RequestType  RequestType
	Priority     Priority
	SiteID       string
	MetadataJSON string
}

// Condition keys recognized inside a rule's free-form conditions object.
// Unrecognized keys are ignored so old binaries tolerate newer rules.
const (
	condMaxLateMinutes    = "max_late_minutes"
	condMinTenureDays     = "min_tenure_days"
	condAllowedShiftTypes = "allowed_shift_types"
)

// Metadata keys the stock checks read from a request's metadata payload.
const (
	metaRequesterSiteID    = "requester_site_id"
	metaQualificationMatch = "qualification_match"
	metaDistanceMeters     = "distance_from_site_meters"
	metaTimeVarianceMin    = "time_variance_minutes"
	metaLateMinutes        = "late_minutes"
	metaTenureDays         = "tenure_days"
	metaShiftType          = "shift_type"
)

// Matches evaluates criteria against a request. Checks run in order and
// short-circuit on the first failure; the returned reason names that failure
// (or reports the match). Bounded checks fail closed when the request carries
// no value to check against. Only a malformed conditions payload is an error.
func Matches(criteria RuleCriteria, attrs RequestAttributes) (bool, string, error) {
	if !containsRequestType(criteria.RequestTypes, attrs.RequestType) {
		return false, fmt.Sprintf("request type %s not covered", attrs.RequestType), nil
	}

	if len(criteria.PriorityLevels) > 0 && !containsPriority(criteria.PriorityLevels, attrs.Priority) {
		return false, fmt.Sprintf("priority %s not covered", attrs.Priority), nil
	}

	metadata, err := decodeMetadata(attrs.MetadataJSON)
	if err != nil {
		return false, "request metadata is malformed", nil
	}

	if criteria.SameSiteOnly {
		if ok, reason := sameSite(attrs.SiteID, metadata); !ok {
			return false, reason, nil
		}
	}

	if criteria.RequiresQualificationMatch {
		if matched, ok := metadataBool(metadata, metaQualificationMatch); !ok || !matched {
			return false, "qualification match not confirmed", nil
		}
	}

	if criteria.MaxDistanceFromSiteMeters != nil {
		distance, ok := metadataNumber(metadata, metaDistanceMeters)
		if !ok {
			return false, "distance from site unknown", nil
		}
		if distance > *criteria.MaxDistanceFromSiteMeters {
			return false, fmt.Sprintf("distance %.0fm exceeds limit %.0fm", distance, *criteria.MaxDistanceFromSiteMeters), nil
		}
	}

	if criteria.MaxTimeVarianceMinutes != nil {
		variance, ok := metadataNumber(metadata, metaTimeVarianceMin)
		if !ok {
			return false, "time variance unknown", nil
		}
		if variance > float64(*criteria.MaxTimeVarianceMinutes) {
			return false, fmt.Sprintf("time variance %.0fmin exceeds limit %dmin", variance, *criteria.MaxTimeVarianceMinutes), nil
		}
	}

	if strings.TrimSpace(criteria.ConditionsJSON) != "" {
		conditions := map[string]any{}
		if err := json.Unmarshal([]byte(criteria.ConditionsJSON), &conditions); err != nil {
			return false, "", fmt.Errorf("%w: %v", ErrRuleConditions, err)
		}
		if ok, reason := evaluateConditions(conditions, metadata); !ok {
			return false, reason, nil
		}
	}

	return true, "all criteria satisfied", nil
}

// sameSite requires the request to reference a site and the requester's own
// site (carried in metadata) to equal it. Missing either side fails closed.
func sameSite(siteID string, metadata map[string]any) (bool, string) {
	if strings.TrimSpace(siteID) == "" {
		return false, "request has no related site"
	}
	requesterSite, ok := metadataString(metadata, metaRequesterSiteID)
	if !ok || strings.TrimSpace(requesterSite) == "" {
		return false, "requester site unknown"
	}
	if requesterSite != siteID {
		return false, "requester site differs from related site"
	}
	return true, ""
}

func evaluateConditions(conditions map[string]any, metadata map[string]any) (bool, string) {
	for key, raw := range conditions {
		switch key {
		case condMaxLateMinutes:
			limit, ok := asNumber(raw)
			if !ok {
				continue
			}
			late, ok := metadataNumber(metadata, metaLateMinutes)
			if !ok {
				return false, "late minutes unknown"
			}
			if late > limit {
				return false, fmt.Sprintf("late %.0fmin exceeds limit %.0fmin", late, limit)
			}
		case condMinTenureDays:
			limit, ok := asNumber(raw)
			if !ok {
				continue
			}
			tenure, ok := metadataNumber(metadata, metaTenureDays)
			if !ok {
				return false, "tenure unknown"
			}
			if tenure < limit {
				return false, fmt.Sprintf("tenure %.0fd below minimum %.0fd", tenure, limit)
			}
		case condAllowedShiftTypes:
			allowed, ok := asStringSlice(raw)
			if !ok || len(allowed) == 0 {
				continue
			}
			shiftType, ok := metadataString(metadata, metaShiftType)
			if !ok {
				return false, "shift type unknown"
			}
			if !containsFold(allowed, shiftType) {
				return false, fmt.Sprintf("shift type %s not allowed", shiftType)
			}
		default:
			// Unknown condition key: ignore.
		}
	}
	return true, ""
}

func decodeMetadata(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	metadata := map[string]any{}
	if err := json.Unmarshal([]byte(trimmed), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func containsRequestType(haystack []RequestType, needle RequestType) bool {
	for _, candidate := range haystack {
		if candidate == needle {
			return true
		}
	}
	return false
}

func containsPriority(haystack []Priority, needle Priority) bool {
	for _, candidate := range haystack {
		if candidate == needle {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(needle)) {
			return true
		}
	}
	return false
}

func metadataNumber(metadata map[string]any, key string) (float64, bool) {
	raw, ok := metadata[key]
	if !ok {
		return 0, false
	}
	return asNumber(raw)
}

func metadataBool(metadata map[string]any, key string) (bool, bool) {
	raw, ok := metadata[key]
	if !ok {
		return false, false
	}
	value, ok := raw.(bool)
	return value, ok
}

func metadataString(metadata map[string]any, key string) (string, bool) {
	raw, ok := metadata[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

func asNumber(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	}
	return 0, false
}

func asStringSlice(raw any) ([]string, bool) {
	switch value := raw.(type) {
	case []string:
		return value, true
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			text, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, text)
		}
		return out, true
	}
	return nil, false
}
