package models

// Stage is a step of the repair workflow. Only the identifier is stored;
// Label is for display.
type Stage string

const (
	StageReception      Stage = "recepcion"
	StageDiagnosis      Stage = "diagnostico_tecnico"
	StageBudget         Stage = "evaluacion_presupuesto"
	StageClientApproval Stage = "aprobacion_cliente"
	StageAwaitingParts  Stage = "espera_repuestos"
	StageExecution      Stage = "ejecucion"
	StageQualityControl Stage = "control_calidad"
	StageDelivery       Stage = "entrega"
	StageClosure        Stage = "cierre"
)

// Stages lists every stage in workflow order.
var Stages = []Stage{
	StageReception,
	StageDiagnosis,
	StageBudget,
	StageClientApproval,
	StageAwaitingParts,
	StageExecution,
	StageQualityControl,
	StageDelivery,
	StageClosure,
}

var stageLabels = map[Stage]string{
	StageReception:      "Recepción",
	StageDiagnosis:      "Diagnóstico técnico",
	StageBudget:         "Evaluación de presupuesto",
	StageClientApproval: "Aprobación del cliente",
	StageAwaitingParts:  "Espera de repuestos",
	StageExecution:      "Ejecución",
	StageQualityControl: "Control de calidad",
	StageDelivery:       "Entrega",
	StageClosure:        "Cierre",
}

func (s Stage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// Index is the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool { return s.Index() >= 0 }

// IsFinal reports whether reaching s closes the job.
func (s Stage) IsFinal() bool { return s == StageClosure }

func (s Stage) Status() ServiceStatus {
	if s.IsFinal() {
		return StatusFinished
	}
	return StatusInProgress
}

type ServiceStatus string

const (
	StatusInProgress ServiceStatus = "in_progress"
	StatusFinished   ServiceStatus = "finished"
)
