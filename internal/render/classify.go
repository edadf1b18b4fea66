package render

type Severity string

const (
	SeveritySafe    Severity = "safe"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// ClassifySeverity maps an abuse confidence score to a display class. A
// missing score counts as 0.
func ClassifySeverity(score *int) Severity {
	value := 0
	if score != nil {
		value = *score
	}

	switch {
	case value >= 75:
		return SeverityDanger
	case value >= 30:
		return SeverityWarning
	default:
		return SeveritySafe
	}
}

type Tier string

const (
	TierGood    Tier = "good"
	TierWarning Tier = "warning"
	TierDanger  Tier = "danger"
)

// ClassifyUsageTier maps the remaining daily requests to a display class.
func ClassifyUsageTier(remaining int) Tier {
	switch {
	case remaining <= 10:
		return TierDanger
	case remaining <= 100:
		return TierWarning
	default:
		return TierGood
	}
}
