package client

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-jordan/internal/linsys"
	"github.com/23skdu/longbow-jordan/internal/solver"
)

// ErrSchema is returned when a record does not follow the expected layout.
var ErrSchema = errors.New("client: unexpected record schema")

// SystemSchema carries one augmented matrix per row, flattened row-major.
var SystemSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "rows", Type: arrow.PrimitiveTypes.Int32},
		{Name: "cols", Type: arrow.PrimitiveTypes.Int32},
		{Name: "data", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	},
	nil,
)

// SolutionSchema carries one solve outcome per row. values is null unless
// the solution is unique.
var SolutionSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "result", Type: arrow.BinaryTypes.String},
		{Name: "rank", Type: arrow.PrimitiveTypes.Int32},
		{Name: "values", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64), Nullable: true},
		{Name: "residual", Type: arrow.PrimitiveTypes.Float64},
	},
	nil,
)

// SolutionRow is the decoded form of one SolutionSchema row.
type SolutionRow struct {
	ID       string
	Result   linsys.Result
	Rank     int
	Values   []float64
	Residual float64
}

// RecordBatchBuilder creates Arrow RecordBatches from systems and solutions.
type RecordBatchBuilder struct {
	mem memory.Allocator
}

// NewRecordBatchBuilder creates a new builder.
func NewRecordBatchBuilder(mem memory.Allocator) *RecordBatchBuilder {
	return &RecordBatchBuilder{mem: mem}
}

// BuildSystemBatch converts systems into a SystemSchema record. It returns
// nil for an empty input.
func (b *RecordBatchBuilder) BuildSystemBatch(systems []solver.System) (arrow.RecordBatch, error) {
	if len(systems) == 0 {
		return nil, nil
	}

	idB := array.NewStringBuilder(b.mem)
	defer idB.Release()
	rowsB := array.NewInt32Builder(b.mem)
	defer rowsB.Release()
	colsB := array.NewInt32Builder(b.mem)
	defer colsB.Release()
	dataB := array.NewListBuilder(b.mem, arrow.PrimitiveTypes.Float64)
	defer dataB.Release()
	valueB := dataB.ValueBuilder().(*array.Float64Builder)

	for i, sys := range systems {
		cols := 0
		if len(sys.Rows) > 0 {
			cols = len(sys.Rows[0])
		}
		idB.Append(sys.ID)
		rowsB.Append(int32(len(sys.Rows)))
		colsB.Append(int32(cols))
		dataB.Append(true)
		for r, row := range sys.Rows {
			if len(row) != cols {
				return nil, fmt.Errorf("system %d row %d has %d columns, want %d: %w", i, r, len(row), cols, linsys.ErrDimensionMismatch)
			}
			valueB.AppendValues(row, nil)
		}
	}

	return b.finish(SystemSchema, len(systems), idB, rowsB, colsB, dataB), nil
}

// BuildSolutionBatch converts solutions into a SolutionSchema record. It
// returns nil for an empty input.
func (b *RecordBatchBuilder) BuildSolutionBatch(solutions []*solver.Solution) (arrow.RecordBatch, error) {
	if len(solutions) == 0 {
		return nil, nil
	}

	idB := array.NewStringBuilder(b.mem)
	defer idB.Release()
	resB := array.NewStringBuilder(b.mem)
	defer resB.Release()
	rankB := array.NewInt32Builder(b.mem)
	defer rankB.Release()
	valsB := array.NewListBuilder(b.mem, arrow.PrimitiveTypes.Float64)
	defer valsB.Release()
	valueB := valsB.ValueBuilder().(*array.Float64Builder)
	residB := array.NewFloat64Builder(b.mem)
	defer residB.Release()

	for i, sol := range solutions {
		if sol == nil {
			return nil, fmt.Errorf("solution %d is nil: %w", i, ErrSchema)
		}
		idB.Append(sol.ID)
		resB.Append(sol.Result.String())
		rankB.Append(int32(sol.Rank))
		if sol.Values == nil {
			valsB.AppendNull()
		} else {
			valsB.Append(true)
			valueB.AppendValues(sol.Values, nil)
		}
		residB.Append(sol.Residual)
	}

	return b.finish(SolutionSchema, len(solutions), idB, resB, rankB, valsB, residB), nil
}

func (b *RecordBatchBuilder) finish(schema *arrow.Schema, n int, builders ...array.Builder) arrow.RecordBatch {
	cols := make([]arrow.Array, len(builders))
	for i, bld := range builders {
		cols[i] = bld.NewArray()
	}
	rec := array.NewRecordBatch(schema, cols, int64(n))
	for _, c := range cols {
		c.Release()
	}
	return rec
}

// SystemsFromRecord decodes a SystemSchema record. Columns are looked up by
// name so extra columns are ignored.
func SystemsFromRecord(rec arrow.RecordBatch) ([]solver.System, error) {
	ids, err := column[*array.String](rec, "id")
	if err != nil {
		return nil, err
	}
	rows, err := column[*array.Int32](rec, "rows")
	if err != nil {
		return nil, err
	}
	cols, err := column[*array.Int32](rec, "cols")
	if err != nil {
		return nil, err
	}
	data, err := column[*array.List](rec, "data")
	if err != nil {
		return nil, err
	}
	values, ok := data.ListValues().(*array.Float64)
	if !ok {
		return nil, fmt.Errorf("data values are %s: %w", data.ListValues().DataType(), ErrSchema)
	}

	out := make([]solver.System, int(rec.NumRows()))
	for i := range out {
		r, c := int(rows.Value(i)), int(cols.Value(i))
		start, end := data.ValueOffsets(i)
		if r < 0 || c < 0 || int64(r*c) != end-start {
			return nil, fmt.Errorf("system %d: %dx%d with %d values: %w", i, r, c, end-start, linsys.ErrDimensionMismatch)
		}
		sys := solver.System{ID: ids.Value(i), Rows: make([][]float64, r)}
		for j := range sys.Rows {
			row := make([]float64, c)
			for k := range row {
				row[k] = values.Value(int(start) + j*c + k)
			}
			sys.Rows[j] = row
		}
		out[i] = sys
	}
	return out, nil
}

// SolutionsFromRecord decodes a SolutionSchema record.
func SolutionsFromRecord(rec arrow.RecordBatch) ([]SolutionRow, error) {
	ids, err := column[*array.String](rec, "id")
	if err != nil {
		return nil, err
	}
	results, err := column[*array.String](rec, "result")
	if err != nil {
		return nil, err
	}
	ranks, err := column[*array.Int32](rec, "rank")
	if err != nil {
		return nil, err
	}
	vals, err := column[*array.List](rec, "values")
	if err != nil {
		return nil, err
	}
	resid, err := column[*array.Float64](rec, "residual")
	if err != nil {
		return nil, err
	}
	values, ok := vals.ListValues().(*array.Float64)
	if !ok {
		return nil, fmt.Errorf("values are %s: %w", vals.ListValues().DataType(), ErrSchema)
	}

	out := make([]SolutionRow, int(rec.NumRows()))
	for i := range out {
		var res linsys.Result
		if err := res.UnmarshalText([]byte(results.Value(i))); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = SolutionRow{
			ID:       ids.Value(i),
			Result:   res,
			Rank:     int(ranks.Value(i)),
			Residual: resid.Value(i),
		}
		if vals.IsNull(i) {
			continue
		}
		start, end := vals.ValueOffsets(i)
		x := make([]float64, 0, end-start)
		for j := start; j < end; j++ {
			x = append(x, values.Value(int(j)))
		}
		out[i].Values = x
	}
	return out, nil
}

func column[A arrow.Array](rec arrow.RecordBatch, name string) (A, error) {
	var zero A
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return zero, fmt.Errorf("missing column %q: %w", name, ErrSchema)
	}
	arr, ok := rec.Column(idx[0]).(A)
	if !ok {
		return zero, fmt.Errorf("column %q is %s: %w", name, rec.Column(idx[0]).DataType(), ErrSchema)
	}
	return arr, nil
}
