package opt

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Problem is a minimization MILP in bounded row form:
//
//	minimize   Objectiveᵀ x
//	s.t.       RowLower[i] <= Rows[i]ᵀ x <= RowUpper[i]
//	           Lower[j] <= x[j] <= Upper[j]
//	           x[j] integral where Integer[j]
//
// Lower bounds must be finite. Any other bound may be infinite.
type Problem struct {
	Objective []float64
	Rows      [][]float64
	RowLower  []float64
	RowUpper  []float64
	Lower     []float64
	Upper     []float64
	Integer   []bool
}

func (p Problem) validate() error {
	n := len(p.Objective)
	if len(p.Lower) != n || len(p.Upper) != n || len(p.Integer) != n {
		return errors.New("opt: bounds and integrality must match the objective length")
	}
	if len(p.RowLower) != len(p.Rows) || len(p.RowUpper) != len(p.Rows) {
		return errors.New("opt: row bounds must match the row count")
	}
	for i, r := range p.Rows {
		if len(r) != n {
			return fmt.Errorf("opt: row %d has %d coefficients, want %d", i, len(r), n)
		}
	}
	for j := range p.Lower {
		if math.IsInf(p.Lower[j], 0) || math.IsNaN(p.Lower[j]) {
			return fmt.Errorf("opt: variable %d needs a finite lower bound", j)
		}
	}
	return nil
}

type MILPStatus string

const (
	StatusOptimal    MILPStatus = "optimal"
	StatusInfeasible MILPStatus = "infeasible"
	StatusUnbounded  MILPStatus = "unbounded"
	StatusNodeLimit  MILPStatus = "node_limit"
)

type MILPResult struct {
	Status    MILPStatus
	X         []float64
	Objective float64
	Nodes     int
}

// MILPSolver solves a Problem exactly.
type MILPSolver interface {
	Solve(ctx context.Context, p Problem) (MILPResult, error)
}

// BranchAndBound is a depth-first branch and bound over LP relaxations
// solved with the gonum simplex. Independent blocks of the problem (no row
// shared between them) are solved separately and their optima summed.
type BranchAndBound struct {
	MaxNodes int     // per block; 0 means 100000
	IntTol   float64 // 0 means 1e-6
	LPTol    float64 // 0 means 1e-10
}

func (s BranchAndBound) Solve(ctx context.Context, p Problem) (MILPResult, error) {
	if err := p.validate(); err != nil {
		return MILPResult{}, err
	}
	if s.MaxNodes <= 0 {
		s.MaxNodes = 100000
	}
	if s.IntTol <= 0 {
		s.IntTol = 1e-6
	}
	if s.LPTol <= 0 {
		s.LPTol = 1e-10
	}

	// an all-zero row only constrains 0 itself
	for i, r := range p.Rows {
		zero := true
		for _, a := range r {
			if a != 0 {
				zero = false
				break
			}
		}
		if zero && (p.RowLower[i] > 0 || p.RowUpper[i] < 0) {
			return MILPResult{Status: StatusInfeasible}, nil
		}
	}

	res := MILPResult{Status: StatusOptimal, X: make([]float64, len(p.Objective))}
	for _, blk := range blocks(p) {
		if err := ctx.Err(); err != nil {
			return MILPResult{}, err
		}
		sub := p.restrict(blk)
		r, err := s.solveBlock(ctx, sub)
		if err != nil {
			return MILPResult{}, err
		}
		res.Nodes += r.Nodes
		if r.Status != StatusOptimal {
			res.Status = r.Status
			res.X = nil
			return res, nil
		}
		for k, j := range blk.vars {
			res.X[j] = r.X[k]
		}
		res.Objective += r.Objective
	}
	return res, nil
}

type bnbNode struct {
	lo, hi []float64
}

func (s BranchAndBound) solveBlock(ctx context.Context, p Problem) (MILPResult, error) {
	best := math.Inf(1)
	var bestX []float64
	nodes := 0
	stack := []bnbNode{{lo: append([]float64(nil), p.Lower...), hi: append([]float64(nil), p.Upper...)}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return MILPResult{}, err
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++
		if nodes > s.MaxNodes {
			return MILPResult{Status: StatusNodeLimit, Nodes: nodes}, nil
		}

		obj, x, status, err := solveRelaxation(p, nd.lo, nd.hi, s.LPTol)
		if err != nil {
			return MILPResult{}, err
		}
		switch status {
		case StatusInfeasible:
			continue
		case StatusUnbounded:
			return MILPResult{Status: StatusUnbounded, Nodes: nodes}, nil
		}
		if obj >= best-1e-9 {
			continue
		}

		branch := -1
		for j, isInt := range p.Integer {
			if !isInt {
				continue
			}
			if math.Abs(x[j]-math.Round(x[j])) > s.IntTol {
				branch = j
				break
			}
		}
		if branch < 0 {
			for j, isInt := range p.Integer {
				if isInt {
					x[j] = math.Round(x[j])
				}
			}
			best, bestX = obj, x
			continue
		}

		v := x[branch]
		up := bnbNode{lo: append([]float64(nil), nd.lo...), hi: nd.hi}
		up.lo[branch] = math.Ceil(v)
		down := bnbNode{lo: nd.lo, hi: append([]float64(nil), nd.hi...)}
		down.hi[branch] = math.Floor(v)
		// the down branch is popped first
		stack = append(stack, up, down)
	}

	if bestX == nil {
		return MILPResult{Status: StatusInfeasible, Nodes: nodes}, nil
	}
	return MILPResult{Status: StatusOptimal, X: bestX, Objective: best, Nodes: nodes}, nil
}

// solveRelaxation solves the LP relaxation of p under bounds lo, hi. It
// shifts every variable to y = x - lo >= 0 and adds one slack or surplus
// column per bounded side, which gives the standard form lp.Simplex expects.
func solveRelaxation(p Problem, lo, hi []float64, tol float64) (float64, []float64, MILPStatus, error) {
	n := len(p.Objective)
	for j := 0; j < n; j++ {
		if lo[j] > hi[j] {
			return 0, nil, StatusInfeasible, nil
		}
	}

	type eqRow struct {
		coef  []float64 // over y
		slack float64   // +1 slack, -1 surplus, 0 none
		rhs   float64
	}
	var rows []eqRow
	for j := 0; j < n; j++ {
		if math.IsInf(hi[j], 1) {
			continue
		}
		coef := make([]float64, n)
		coef[j] = 1
		rows = append(rows, eqRow{coef: coef, slack: 1, rhs: hi[j] - lo[j]})
	}
	for i, r := range p.Rows {
		off := 0.0
		for j, a := range r {
			off += a * lo[j]
		}
		L, U := p.RowLower[i], p.RowUpper[i]
		if L > U {
			return 0, nil, StatusInfeasible, nil
		}
		switch {
		case L == U:
			rows = append(rows, eqRow{coef: r, rhs: U - off})
		default:
			if !math.IsInf(U, 1) {
				rows = append(rows, eqRow{coef: r, slack: 1, rhs: U - off})
			}
			if !math.IsInf(L, -1) {
				rows = append(rows, eqRow{coef: r, slack: -1, rhs: L - off})
			}
		}
	}

	// columns that appear in no row sit at their lower bound unless the
	// objective pushes them up without limit
	used := make([]bool, n)
	for _, r := range rows {
		for j, a := range r.coef {
			if a != 0 {
				used[j] = true
			}
		}
	}
	var cols []int
	for j := 0; j < n; j++ {
		if used[j] {
			cols = append(cols, j)
		} else if p.Objective[j] < 0 {
			return 0, nil, StatusUnbounded, nil
		}
	}

	// rows without a slack and without a used column are 0 = rhs
	var kept []eqRow
	for _, r := range rows {
		if r.slack == 0 {
			zero := true
			for _, j := range cols {
				if r.coef[j] != 0 {
					zero = false
					break
				}
			}
			if zero {
				if math.Abs(r.rhs) > 1e-9 {
					return 0, nil, StatusInfeasible, nil
				}
				continue
			}
		}
		kept = append(kept, r)
	}

	x := append([]float64(nil), lo...)
	base := 0.0
	for j := 0; j < n; j++ {
		base += p.Objective[j] * lo[j]
	}
	if len(kept) == 0 {
		return base, x, StatusOptimal, nil
	}

	nSlack := 0
	for _, r := range kept {
		if r.slack != 0 {
			nSlack++
		}
	}
	width := len(cols) + nSlack
	A := mat.NewDense(len(kept), width, nil)
	b := make([]float64, len(kept))
	c := make([]float64, width)
	for k, j := range cols {
		c[k] = p.Objective[j]
	}
	s := len(cols)
	for i, r := range kept {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for k, j := range cols {
			A.Set(i, k, sign*r.coef[j])
		}
		if r.slack != 0 {
			A.Set(i, s, sign*r.slack)
			s++
		}
		b[i] = sign * r.rhs
	}

	obj, y, err := lp.Simplex(c, A, b, tol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return 0, nil, StatusInfeasible, nil
	case errors.Is(err, lp.ErrUnbounded):
		return 0, nil, StatusUnbounded, nil
	case err != nil:
		return 0, nil, "", fmt.Errorf("opt: lp relaxation: %w", err)
	}
	for k, j := range cols {
		x[j] = lo[j] + y[k]
	}
	return base + obj, x, StatusOptimal, nil
}

type block struct {
	vars []int
	rows []int
}

// blocks groups variables connected through shared rows. Variables in no
// row form singleton blocks and all-zero rows are dropped. Blocks are ordered by their first variable.
func blocks(p Problem) []block {
	n := len(p.Objective)
	parent := make([]int, n)
	for j := range parent {
		parent[j] = j
	}
	var find func(int) int
	find = func(j int) int {
		for parent[j] != j {
			parent[j] = parent[parent[j]]
			j = parent[j]
		}
		return j
	}
	rowRoot := make([]int, len(p.Rows))
	for i, r := range p.Rows {
		first := -1
		for j, a := range r {
			if a == 0 {
				continue
			}
			if first < 0 {
				first = j
				continue
			}
			ra, rb := find(first), find(j)
			if ra != rb {
				parent[rb] = ra
			}
		}
		rowRoot[i] = first
	}

	idx := map[int]int{}
	var out []block
	for j := 0; j < n; j++ {
		root := find(j)
		k, ok := idx[root]
		if !ok {
			k = len(out)
			idx[root] = k
			out = append(out, block{})
		}
		out[k].vars = append(out[k].vars, j)
	}
	for i, first := range rowRoot {
		if first < 0 {
			continue
		}
		k := idx[find(first)]
		out[k].rows = append(out[k].rows, i)
	}
	return out
}

// restrict returns the sub-problem over blk's variables and rows.
func (p Problem) restrict(blk block) Problem {
	sub := Problem{
		Objective: make([]float64, len(blk.vars)),
		Lower:     make([]float64, len(blk.vars)),
		Upper:     make([]float64, len(blk.vars)),
		Integer:   make([]bool, len(blk.vars)),
	}
	for k, j := range blk.vars {
		sub.Objective[k] = p.Objective[j]
		sub.Lower[k] = p.Lower[j]
		sub.Upper[k] = p.Upper[j]
		sub.Integer[k] = p.Integer[j]
	}
	for _, i := range blk.rows {
		row := make([]float64, len(blk.vars))
		for k, j := range blk.vars {
			row[k] = p.Rows[i][j]
		}
		sub.Rows = append(sub.Rows, row)
		sub.RowLower = append(sub.RowLower, p.RowLower[i])
		sub.RowUpper = append(sub.RowUpper, p.RowUpper[i])
	}
	return sub
}
