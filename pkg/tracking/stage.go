package tracking

import (
	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/utils"
)

var stageLookup = func() map[string]models.Stage {
	m := make(map[string]models.Stage, len(models.Stages)*2)
	for _, s := range models.Stages {
		m[utils.Slug(string(s))] = s
		m[utils.Slug(s.Label())] = s
	}
	// names staff commonly type
	m["diagnostico"] = models.StageDiagnosis
	m["presupuesto"] = models.StageBudget
	m["aprobacion"] = models.StageClientApproval
	m["repuestos"] = models.StageAwaitingParts
	m["calidad"] = models.StageQualityControl
	return m
}()

// ParseStage accepts a stage identifier or its display label, ignoring
// case, accents and the choice of space, dash or underscore.
func ParseStage(s string) (models.Stage, error) {
	if st, ok := stageLookup[utils.Slug(s)]; ok {
		return st, nil
	}
	return "", apperr.Invalid("stage", "is not a known stage")
}
