package stages

import (
	"context"
	"fmt"
	"slices"
)

// Stage is one step of the training pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

const (
	DataIngestion      = "data_ingestion"
	DataValidation     = "data_validation"
	DataTransformation = "data_transformation"
	ModelTrainer       = "model_trainer"
	ModelEvaluation    = "model_evaluation"
	ModelPusher        = "model_pusher"
)

// Order is the sequence in which stages always run.
var Order = []string{
	DataIngestion,
	DataValidation,
	DataTransformation,
	ModelTrainer,
	ModelEvaluation,
	ModelPusher,
}

var titles = map[string]string{
	DataIngestion:      "Data Ingestion stage",
	DataValidation:     "Data Validation stage",
	DataTransformation: "Data Transformation stage",
	ModelTrainer:       "Model Trainer stage",
	ModelEvaluation:    "Model Evaluation stage",
	ModelPusher:        "Model Pusher stage",
}

// Title is the human readable name used in logs.
func Title(name string) string {
	if t, ok := titles[name]; ok {
		return t
	}
	return name
}

func IsKnown(name string) bool {
	return slices.Contains(Order, name)
}

// Select returns the requested stage names in pipeline order. No names means
// every stage.
func Select(names []string) ([]string, error) {
	if len(names) == 0 {
		return slices.Clone(Order), nil
	}
	for _, n := range names {
		if !IsKnown(n) {
			return nil, fmt.Errorf("unknown stage '%s': expected one of %v", n, Order)
		}
	}
	var selected []string
	for _, n := range Order {
		if slices.Contains(names, n) {
			selected = append(selected, n)
		}
	}
	return selected, nil
}
