package score

import "github.com/shopspring/decimal"

// Severity is the §4.5.2 alert classification.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityPositive Severity = "positive"
)

// Alert is a threshold-crossing side effect, routed through the
// Reconciler for logging only (§4.5.2: "observable side-effects").
type Alert struct {
	TokenID  int64
	Severity Severity
	Reason   string
}

// GenerateAlerts evaluates the §4.5.2 threshold table (top-1% > 20; Gini >
// 0.9; bot ratio > 0.5; smart-money > 0.1; total > 250) against a freshly
// computed holder score.
func GenerateAlerts(tokenID int64, r HolderScoreResult) []Alert {
	var alerts []Alert

	if r.Gini.GreaterThan(decimal.NewFromFloat(0.9)) {
		alerts = append(alerts, Alert{TokenID: tokenID, Severity: SeverityCritical, Reason: "gini coefficient above 0.9"})
	}
	if r.BotRatio.GreaterThan(decimal.NewFromFloat(0.5)) {
		alerts = append(alerts, Alert{TokenID: tokenID, Severity: SeverityCritical, Reason: "bot ratio above 0.5"})
	}
	if r.Top1PctConcentration.GreaterThan(decimal.NewFromFloat(0.2)) {
		alerts = append(alerts, Alert{TokenID: tokenID, Severity: SeverityWarning, Reason: "top-1% holder concentration above 20%"})
	}
	if r.SmartMoneyRatio.GreaterThan(decimal.NewFromFloat(0.1)) {
		alerts = append(alerts, Alert{TokenID: tokenID, Severity: SeverityPositive, Reason: "smart-money ratio above 10%"})
	}
	if r.Total() > 250 {
		alerts = append(alerts, Alert{TokenID: tokenID, Severity: SeverityPositive, Reason: "holder total score above 250"})
	}

	return alerts
}

// CreditWarningAlert is emitted once per budget-tracker threshold crossing
// (§4.5.2's "creditWarning event").
func CreditWarningAlert(pct int) Alert {
	sev := SeverityInfo
	if pct >= 85 {
		sev = SeverityCritical
	} else if pct >= 75 {
		sev = SeverityWarning
	}
	return Alert{Severity: sev, Reason: "holder-analysis credit usage crossed threshold"}
}
