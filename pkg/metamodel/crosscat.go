// pkg/metamodel/crosscat.go
//
// Package metamodel adapts crosscat engines to the bayesdb metamodel
// registry.
package metamodel

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"

	"bayeslite/pkg/bayesdb"
	"bayeslite/pkg/crosscat"
)

// Name is the registry name of the crosscat metamodel.
const Name = "crosscat"

var (
	// ErrNoModels is returned when a table has a generator but no models
	ErrNoModels = errors.New("no models")

	// ErrNoSuchColumn is returned when simulating a column the models do not cover
	ErrNoSuchColumn = errors.New("no such column")

	// ErrEmptyTable is returned when initializing models for a table with no rows
	ErrEmptyTable = errors.New("table has no rows")

	// ErrWrongMetamodel is returned when a table's generator belongs to another metamodel
	ErrWrongMetamodel = errors.New("generator belongs to another metamodel")

	// ErrInvalidCount is returned for non-positive model, iteration or sample counts
	ErrInvalidCount = errors.New("count must be at least 1")

	// ErrSchemaChanged is returned when a table's columns no longer match
	// the columns its stored models were fitted to
	ErrSchemaChanged = errors.New("table columns differ from model columns")
)

// Crosscat is the metamodel adapter around a crosscat engine. Model
// state lives in the database, so one adapter can serve any number of
// tables.
type Crosscat struct {
	engine crosscat.Engine
	logger *zap.Logger
}

// ModelInfo summarizes a stored model.
type ModelInfo struct {
	Number     int
	Iterations int
}

// NewCrosscat wraps engine as a bayesdb metamodel.
func NewCrosscat(engine crosscat.Engine, logger *zap.Logger) *Crosscat {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crosscat{engine: engine, logger: logger.Named(Name)}
}

// Name returns "crosscat".
func (c *Crosscat) Name() string { return Name }

// Engine returns the engine models are computed with.
func (c *Crosscat) Engine() crosscat.Engine { return c.engine }

// Register creates the crosscat model tables.
func (c *Crosscat) Register(ctx context.Context, db *bayesdb.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// generator returns the crosscat generator for table, creating it when
// create is set and none exists.
func (c *Crosscat) generator(ctx context.Context, db *bayesdb.DB, table string, create bool) (*bayesdb.Generator, error) {
	g, err := db.Generator(ctx, table)
	if errors.Is(err, bayesdb.ErrNoSuchGenerator) && create {
		g, err = db.CreateGenerator(ctx, table, Name)
		if err == nil {
			c.logger.Debug("created generator", zap.String("table", table), zap.String("id", g.ID))
		}
	}
	if err != nil {
		return nil, err
	}
	if g.Metamodel != Name {
		return nil, fmt.Errorf("%w: %s uses %s", ErrWrongMetamodel, table, g.Metamodel)
	}
	return g, nil
}

// InitializeModels fits n new models to table, adding to any that exist.
func (c *Crosscat) InitializeModels(ctx context.Context, db *bayesdb.DB, table string, n int) error {
	if n < 1 {
		return fmt.Errorf("models: %w", ErrInvalidCount)
	}

	columns, err := db.Columns(ctx, table)
	if err != nil {
		return err
	}
	data, err := loadRows(ctx, db, table, columns)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyTable, table)
	}

	g, err := c.generator(ctx, db, table, true)
	if err != nil {
		return err
	}
	existing, err := loadModels(ctx, db, g.ID)
	if err != nil {
		return err
	}
	first := 0
	if len(existing) > 0 {
		nums := sortedKeys(existing)
		if have := modelColumns(existing[nums[0]]); !sameColumns(have, columns) {
			return fmt.Errorf("%w: %s has columns %v, models have %v",
				ErrSchemaChanged, table, columns, have)
		}
		first = nums[len(nums)-1] + 1
	}

	models := make(map[int]*crosscat.Model, n)
	var mu sync.Mutex
	err = c.engine.Map(ctx, n, func(ctx context.Context, i int, rng *rand.Rand) error {
		m, err := crosscat.FitModel(columns, data, rng)
		if err != nil {
			return err
		}
		mu.Lock()
		models[first+i] = &m
		mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("initialize models for %s: %w", table, err)
	}

	if err := saveModels(ctx, db, g.ID, models); err != nil {
		return err
	}
	c.logger.Debug("initialized models",
		zap.String("table", table), zap.Int("models", n), zap.Int("first", first))
	return nil
}

// Analyze runs iterations refinement steps on every model of table.
func (c *Crosscat) Analyze(ctx context.Context, db *bayesdb.DB, table string, iterations int) error {
	if iterations < 1 {
		return fmt.Errorf("iterations: %w", ErrInvalidCount)
	}

	g, models, nums, err := c.models(ctx, db, table)
	if err != nil {
		return err
	}
	columns := modelColumns(models[nums[0]])
	for _, num := range nums[1:] {
		if !sameColumns(modelColumns(models[num]), columns) {
			return fmt.Errorf("%w: %s model %d differs from model %d",
				ErrSchemaChanged, table, num, nums[0])
		}
	}
	data, err := loadRows(ctx, db, table, columns)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyTable, table)
	}

	err = c.engine.Map(ctx, len(nums), func(ctx context.Context, i int, rng *rand.Rand) error {
		m := models[nums[i]]
		for k := 0; k < iterations; k++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.Step(data, rng); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", table, err)
	}

	if err := saveModels(ctx, db, g.ID, models); err != nil {
		return err
	}
	c.logger.Debug("analyzed models",
		zap.String("table", table), zap.Int("models", len(nums)), zap.Int("iterations", iterations))
	return nil
}

// Simulate draws n values of column from the models of table. Draw j
// comes from the j-th model in model-number order, cycling.
func (c *Crosscat) Simulate(ctx context.Context, db *bayesdb.DB, table, column string, n int) ([]any, error) {
	if n < 1 {
		return nil, fmt.Errorf("samples: %w", ErrInvalidCount)
	}

	_, models, nums, err := c.models(ctx, db, table)
	if err != nil {
		return nil, err
	}
	cms := make([]*crosscat.ColumnModel, len(nums))
	for i, num := range nums {
		cm, ok := models[num].Column(column)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s (model %d)", ErrNoSuchColumn, table, column, num)
		}
		cms[i] = cm
	}

	out := make([]any, n)
	err = c.engine.Map(ctx, len(nums), func(ctx context.Context, i int, rng *rand.Rand) error {
		cm := cms[i]
		for j := i; j < n; j += len(nums) {
			out[j] = cm.Sample(rng)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("simulate %s.%s: %w", table, column, err)
	}
	return out, nil
}

// Models lists the stored models of table in model-number order.
func (c *Crosscat) Models(ctx context.Context, db *bayesdb.DB, table string) ([]ModelInfo, error) {
	_, models, nums, err := c.models(ctx, db, table)
	if err != nil {
		return nil, err
	}

	infos := make([]ModelInfo, len(nums))
	for i, num := range nums {
		infos[i] = ModelInfo{Number: num, Iterations: models[num].Iterations}
	}
	return infos, nil
}

func (c *Crosscat) models(ctx context.Context, db *bayesdb.DB, table string) (*bayesdb.Generator, map[int]*crosscat.Model, []int, error) {
	g, err := c.generator(ctx, db, table, false)
	if err != nil {
		return nil, nil, nil, err
	}
	models, err := loadModels(ctx, db, g.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(models) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrNoModels, table)
	}
	return g, models, sortedKeys(models), nil
}

func modelColumns(m *crosscat.Model) []string {
	cols := make([]string, len(m.Columns))
	for i, cm := range m.Columns {
		cols[i] = cm.Name
	}
	return cols
}

// sameColumns compares column lists by name and position. SQLite column
// names are case-insensitive.
func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
