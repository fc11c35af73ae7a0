package kpi

type RiskLabel string

const (
	RiskCritique   RiskLabel = "Critique"
	RiskMoyen      RiskLabel = "Moyen"
	RiskFaible     RiskLabel = "Faible"
	RiskRisqueFort RiskLabel = "Risque fort"
)

// RiskLabels returns every normalized risk label in display order.
func RiskLabels() []RiskLabel {
	return []RiskLabel{RiskCritique, RiskMoyen, RiskFaible, RiskRisqueFort}
}

var riskLabels = map[string]RiskLabel{
	"Critical":  RiskCritique,
	"Important": RiskMoyen,
	"Moderate":  RiskFaible,
	"Low":       RiskFaible,
	"Fort":      RiskRisqueFort,
	"Élevé":     RiskRisqueFort,
}

// NormalizeRisk maps a vendor risk, or failing that a risk level, to a label.
func NormalizeRisk(risk, level string) RiskLabel {
	if l, ok := riskLabels[risk]; ok {
		return l
	}
	if l, ok := riskLabels[level]; ok {
		return l
	}
	return RiskMoyen
}
