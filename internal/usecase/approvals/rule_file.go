package approvals

import (
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// RuleDefinition is the TOML shape administrators write rules in.
//
//	code = "late-checkin-grace"
//	name = "Late check-in within grace window"
//	request_types = ["LATE_CHECKIN_APPROVAL"]
//	priority_levels = []
//	same_site_only = true
//	[conditions]
//	max_late_minutes = 15
type RuleDefinition struct {
	Code                       string         `toml:"code"`
	Name                       string         `toml:"name"`
	Active                     *bool          `toml:"active"`
	RequestTypes               []string       `toml:"request_types"`
	PriorityLevels             []string       `toml:"priority_levels"`
	SameSiteOnly               bool           `toml:"same_site_only"`
	RequiresQualificationMatch bool           `toml:"requires_qualification_match"`
	MaxDistanceFromSiteMeters  *float64       `toml:"max_distance_from_site_meters"`
	MaxTimeVarianceMinutes     *int           `toml:"max_time_variance_minutes"`
	Conditions                 map[string]any `toml:"conditions"`
}

// LoadRuleFile reads a rule definition from a TOML file.
func LoadRuleFile(ruleFile string) (RuleDefinition, error) {
	path := strings.TrimSpace(ruleFile)
	if path == "" {
		return RuleDefinition{}, errors.New("rule file is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return RuleDefinition{}, err
	}

	var def RuleDefinition
	if err := toml.Unmarshal(raw, &def); err != nil {
		return RuleDefinition{}, err
	}
	if strings.TrimSpace(def.Code) == "" {
		return RuleDefinition{}, errRuleCodeRequired
	}
	if strings.TrimSpace(def.Name) == "" {
		return RuleDefinition{}, errRuleNameRequired
	}
	return def, nil
}
