// pkg/crosscat/model.go
package crosscat

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

var (
	// ErrNoData is returned when a column has no non-null values to fit.
	ErrNoData = errors.New("no data to fit")

	// ErrRowWidth is returned when a data row does not have one value per
	// model column.
	ErrRowWidth = errors.New("row width does not match model columns")
)

// ColumnKind is the statistical type assigned to a column.
type ColumnKind string

const (
	// Numerical columns are modeled with a Gaussian.
	Numerical ColumnKind = "numerical"

	// Categorical columns are modeled with a weight per distinct value.
	Categorical ColumnKind = "categorical"
)

// ColumnModel is the fitted distribution of one column.
type ColumnModel struct {
	Name string
	Kind ColumnKind

	// Mean and StdDev parameterize numerical columns.
	Mean   float64
	StdDev float64

	// Weights maps each category to its probability; the weights sum to 1.
	Weights map[string]float64
}

// Model is one posterior sample: a fitted distribution per column.
type Model struct {
	// Iterations counts the refits blended into the model after the
	// initial fit.
	Iterations int

	Columns []ColumnModel
}

// Column returns the model of the named column.
func (m *Model) Column(name string) (*ColumnModel, bool) {
	for i := range m.Columns {
		if m.Columns[i].Name == name {
			return &m.Columns[i], true
		}
	}
	return nil, false
}

// InferKind classifies a column by its non-null values: numerical when
// every value is a number, categorical otherwise.
func InferKind(values []any) ColumnKind {
	for _, v := range values {
		switch v.(type) {
		case nil, int64, float64, int:
		default:
			return Categorical
		}
	}
	return Numerical
}

// FitModel fits a fresh model to data, whose rows hold one value per
// entry of columns.
func FitModel(columns []string, data [][]any, rng *rand.Rand) (Model, error) {
	m := Model{Columns: make([]ColumnModel, len(columns))}
	for j, name := range columns {
		values := column(data, j)
		cm, err := Fit(name, InferKind(values), values, rng)
		if err != nil {
			return Model{}, err
		}
		m.Columns[j] = cm
	}
	return m, nil
}

// Step refits every column on a fresh bootstrap sample and blends the
// result into the model.
func (m *Model) Step(data [][]any, rng *rand.Rand) error {
	for i, row := range data {
		if len(row) != len(m.Columns) {
			return fmt.Errorf("%w: row %d has %d values, model has %d columns",
				ErrRowWidth, i, len(row), len(m.Columns))
		}
	}
	for j := range m.Columns {
		prev := m.Columns[j]
		next, err := Fit(prev.Name, prev.Kind, column(data, j), rng)
		if err != nil {
			return err
		}
		m.Columns[j] = Blend(prev, next, m.Iterations+1)
	}
	m.Iterations++
	return nil
}

func column(data [][]any, j int) []any {
	values := make([]any, len(data))
	for i, row := range data {
		values[i] = row[j]
	}
	return values
}

// Fit fits a column model to a bootstrap resample of values. Null values
// are ignored.
func Fit(name string, kind ColumnKind, values []any, rng *rand.Rand) (ColumnModel, error) {
	present := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return ColumnModel{}, fmt.Errorf("column %s: %w", name, ErrNoData)
	}

	sample := make([]any, len(present))
	for i := range sample {
		sample[i] = present[rng.IntN(len(present))]
	}

	cm := ColumnModel{Name: name, Kind: kind}
	switch kind {
	case Numerical:
		var sum, sumSq float64
		for _, v := range sample {
			x := toFloat(v)
			sum += x
			sumSq += x * x
		}
		n := float64(len(sample))
		cm.Mean = sum / n
		cm.StdDev = math.Sqrt(math.Max(sumSq/n-cm.Mean*cm.Mean, 0))
	case Categorical:
		cm.Weights = make(map[string]float64)
		for _, v := range sample {
			cm.Weights[categoryOf(v)]++
		}
		for k := range cm.Weights {
			cm.Weights[k] /= float64(len(sample))
		}
	default:
		return ColumnModel{}, fmt.Errorf("column %s: unknown kind %q", name, kind)
	}
	return cm, nil
}

// Blend folds next into prev, where prev already averages k fits.
func Blend(prev, next ColumnModel, k int) ColumnModel {
	w := float64(k)
	out := ColumnModel{
		Name:   prev.Name,
		Kind:   prev.Kind,
		Mean:   (prev.Mean*w + next.Mean) / (w + 1),
		StdDev: (prev.StdDev*w + next.StdDev) / (w + 1),
	}
	if prev.Kind == Categorical {
		out.Weights = make(map[string]float64, len(prev.Weights))
		for c, p := range prev.Weights {
			out.Weights[c] = p * w / (w + 1)
		}
		for c, p := range next.Weights {
			out.Weights[c] += p / (w + 1)
		}
	}
	return out
}

// Sample draws one value from the column model.
func (cm *ColumnModel) Sample(rng *rand.Rand) any {
	if cm.Kind == Numerical {
		return cm.Mean + cm.StdDev*rng.NormFloat64()
	}

	cats := cm.Categories()
	u := rng.Float64()
	var acc float64
	for _, c := range cats {
		acc += cm.Weights[c]
		if u < acc {
			return c
		}
	}
	// Rounding can leave acc just under 1.
	return cats[len(cats)-1]
}

// Categories returns the category names in sorted order.
func (cm *ColumnModel) Categories() []string {
	cats := make([]string, 0, len(cm.Weights))
	for c := range cm.Weights {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case float64:
		return x
	}
	return math.NaN()
}

func categoryOf(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}
