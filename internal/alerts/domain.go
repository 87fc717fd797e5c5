package alerts

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Indicator is the KPI an alert rule watches.
type Indicator string

// Supported indicators.
const (
	IndicatorDowntime       Indicator = "downtime"
	IndicatorDefectRate     Indicator = "defect_rate"
	IndicatorEquipmentLoad  Indicator = "equipment_load"
	IndicatorOutput         Indicator = "output"
	IndicatorInventoryLevel Indicator = "inventory_level"
	IndicatorPlanCompletion Indicator = "plan_completion"
	IndicatorQualityIndex   Indicator = "quality_index"
)

var indicatorLabels = map[Indicator]string{
	IndicatorDowntime:       "Downtime",
	IndicatorDefectRate:     "Defect rate",
	IndicatorEquipmentLoad:  "Equipment load",
	IndicatorOutput:         "Output",
	IndicatorInventoryLevel: "Inventory level",
	IndicatorPlanCompletion: "Plan completion",
	IndicatorQualityIndex:   "Quality index",
}

// Label returns the display name.
func (i Indicator) Label() string {
	if l, ok := indicatorLabels[i]; ok {
		return l
	}
	return string(i)
}

// Condition compares an observed value with the threshold.
type Condition string

// Supported conditions.
const (
	ConditionGT  Condition = "gt"
	ConditionLT  Condition = "lt"
	ConditionGTE Condition = "gte"
	ConditionLTE Condition = "lte"
	ConditionEQ  Condition = "eq"
)

// Symbol returns the comparison operator.
func (c Condition) Symbol() string {
	switch c {
	case ConditionGT:
		return ">"
	case ConditionLT:
		return "<"
	case ConditionGTE:
		return ">="
	case ConditionLTE:
		return "<="
	case ConditionEQ:
		return "="
	default:
		return "?"
	}
}

// Rule is a configured alert threshold.
type Rule struct {
	ID          int64     `db:"id"`
	Indicator   Indicator `db:"indicator"`
	Condition   Condition `db:"condition"`
	Threshold   float64   `db:"threshold"`
	NotifyInApp bool      `db:"notify_in_app"`
	NotifyEmail bool      `db:"notify_email"`
}

// Matches reports whether v trips the rule.
func (r Rule) Matches(v float64) (bool, error) {
	cmp := decimal.NewFromFloat(v).Cmp(decimal.NewFromFloat(r.Threshold))
	switch r.Condition {
	case ConditionGT:
		return cmp > 0, nil
	case ConditionLT:
		return cmp < 0, nil
	case ConditionGTE:
		return cmp >= 0, nil
	case ConditionLTE:
		return cmp <= 0, nil
	case ConditionEQ:
		return cmp == 0, nil
	default:
		return false, fmt.Errorf("alerts: unknown condition %q", r.Condition)
	}
}

// String renders the rule as "Downtime > 4".
func (r Rule) String() string {
	return fmt.Sprintf("%s %s %s", r.Indicator.Label(), r.Condition.Symbol(), decimal.NewFromFloat(r.Threshold).String())
}

// Channels lists the enabled notification channels.
func (r Rule) Channels() []string {
	var out []string
	if r.NotifyInApp {
		out = append(out, "in-app")
	}
	if r.NotifyEmail {
		out = append(out, "email")
	}
	return out
}
