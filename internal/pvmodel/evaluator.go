package pvmodel

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// Model is a forward model bound to one immutable context.
// The fixed part of the product is folded into scale once.
type Model struct {
	ctx   models.ForwardModelContext
	scale float64
}

// NewModel binds a forward model to ctx
func NewModel(ctx models.ForwardModelContext) *Model {
	fixed := ctx.FixedValues()
	return &Model{
		ctx:   ctx,
		scale: ctx.BasePower * ctx.TemperatureFactor * ctx.IrradianceFactor * floats.Prod(fixed),
	}
}

// Context returns the bound context
func (m *Model) Context() models.ForwardModelContext {
	return m.ctx
}

// Predict returns the predicted power for a vector of tunable factors.
// It never enforces bounds; any numeric input is accepted.
func (m *Model) Predict(tunable []float64) float64 {
	return m.scale * floats.Prod(tunable)
}

// Range returns the smallest and largest predictions reachable inside set,
// assuming non-negative bounds (the product is then monotone in every factor).
func (m *Model) Range(set models.TunableFactorSet) (lo, hi float64) {
	a := m.Predict(set.Lower())
	b := m.Predict(set.Upper())
	return math.Min(a, b), math.Max(a, b)
}

// Peak returns the largest |prediction| reachable inside set. The product is
// largest in magnitude where every factor sits at its larger-magnitude endpoint.
func (m *Model) Peak(set models.TunableFactorSet) float64 {
	corner := make([]float64, len(set))
	for i, b := range set {
		corner[i] = math.Max(math.Abs(b.Min), math.Abs(b.Max))
	}
	return math.Abs(m.Predict(corner))
}

// Evaluate is the stateless form of Model.Predict
func Evaluate(ctx models.ForwardModelContext, tunable []float64) float64 {
	return NewModel(ctx).Predict(tunable)
}
