package improvement

import (
	"math"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// ObjectiveFunction scores a predicted power against the measured target.
// Scores are non-negative; lower is better.
type ObjectiveFunction interface {
	// Evaluate returns the error of predicted against target.
	Evaluate(predicted, target float64) float64

	// Name returns the name of the objective function.
	Name() string
}

// ObjectiveType represents the type of objective function
type ObjectiveType string

const (
	// ObjectiveAbsoluteError is |predicted - target|, in watts
	ObjectiveAbsoluteError ObjectiveType = "absolute_error"
	// ObjectiveSquaredError is (predicted - target)²
	ObjectiveSquaredError ObjectiveType = "squared_error"
	// ObjectiveRelativeError is |predicted - target| / |target|
	ObjectiveRelativeError ObjectiveType = "relative_error"
)

// NewObjectiveFunction creates an objective function from a type string.
// An empty string selects absolute error.
func NewObjectiveFunction(objType string) (ObjectiveFunction, error) {
	switch ObjectiveType(objType) {
	case ObjectiveAbsoluteError, "":
		return &AbsoluteErrorObjective{}, nil
	case ObjectiveSquaredError:
		return &SquaredErrorObjective{}, nil
	case ObjectiveRelativeError:
		return &RelativeErrorObjective{}, nil
	default:
		return nil, &UnknownObjectiveError{ObjectiveType: objType}
	}
}

// AbsoluteErrorObjective minimizes the absolute power difference
type AbsoluteErrorObjective struct{}

func (o *AbsoluteErrorObjective) Name() string {
	return string(ObjectiveAbsoluteError)
}

func (o *AbsoluteErrorObjective) Evaluate(predicted, target float64) float64 {
	return math.Abs(predicted - target)
}

// SquaredErrorObjective minimizes the squared power difference
type SquaredErrorObjective struct{}

func (o *SquaredErrorObjective) Name() string {
	return string(ObjectiveSquaredError)
}

func (o *SquaredErrorObjective) Evaluate(predicted, target float64) float64 {
	d := predicted - target
	return d * d
}

// RelativeErrorObjective minimizes the difference relative to the target.
// A zero target falls back to absolute error.
type RelativeErrorObjective struct{}

func (o *RelativeErrorObjective) Name() string {
	return string(ObjectiveRelativeError)
}

func (o *RelativeErrorObjective) Evaluate(predicted, target float64) float64 {
	d := math.Abs(predicted - target)
	if target == 0 {
		return d
	}
	return d / math.Abs(target)
}

// UnknownObjectiveError indicates an unknown objective type
type UnknownObjectiveError struct {
	ObjectiveType string
}

func (e *UnknownObjectiveError) Error() string {
	return "unknown objective type: " + e.ObjectiveType
}

func (e *UnknownObjectiveError) Unwrap() error {
	return models.ErrInvalidConfiguration
}

// Fitness binds a forward model, an objective and a measured target into
// the scoring function the search engine minimizes.
type Fitness struct {
	model     *pvmodel.Model
	objective ObjectiveFunction
	target    float64
}

// NewFitness creates a fitness function for ctx and target
func NewFitness(ctx models.ForwardModelContext, target float64, objective ObjectiveFunction) *Fitness {
	return &Fitness{
		model:     pvmodel.NewModel(ctx),
		objective: objective,
		target:    target,
	}
}

// Score returns the objective value of c
func (f *Fitness) Score(c models.CandidateSolution) float64 {
	return f.objective.Evaluate(f.model.Predict(c), f.target)
}

// Predict returns the forward-model prediction for c
func (f *Fitness) Predict(c models.CandidateSolution) float64 {
	return f.model.Predict(c)
}

// Target returns the measured target
func (f *Fitness) Target() float64 {
	return f.target
}

// Objective returns the bound objective function
func (f *Fitness) Objective() ObjectiveFunction {
	return f.objective
}

// Model returns the bound forward model
func (f *Fitness) Model() *pvmodel.Model {
	return f.model
}
