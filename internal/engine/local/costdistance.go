package local

import (
	"container/heap"
	"context"
	"math"

	"github.com/reachmap/access-cli/internal/engine"
)

// CostDistance implements engine.Engine with 8-neighbour Dijkstra over the
// grid. cost is a per-meter cost raster (the caller decides the unit; the
// accessibility stage passes seconds per meter); sources marks start pixels
// with any nonzero valid value. Propagation follows minimum accumulated cost
// and stops once the traversed ground distance of the optimal path exceeds
// maxDistanceM; unreached pixels stay masked.
func (e *Engine) CostDistance(ctx context.Context, cost, sources *engine.Raster, maxDistanceM float64) (*engine.Raster, error) {
	if err := engine.CheckSameFrame("local: cost distance", cost, sources); err != nil {
		return nil, err
	}

	w, h := cost.Width, cost.Height
	out := engine.NewRaster(cost.Grid, cost.Transform, w, h)

	acc := make([]float64, w*h)  // accumulated cost
	dist := make([]float64, w*h) // traversed meters on the optimal-cost path
	for i := range acc {
		acc[i] = math.Inf(1)
	}

	pq := &cellHeap{}
	heap.Init(pq)
	for i := range sources.Values {
		if sources.Valid[i] && sources.Values[i] != 0 {
			acc[i] = 0
			dist[i] = 0
			heap.Push(pq, cellItem{idx: i, cost: 0})
		}
	}

	scale := cost.Grid.ScaleM
	// Neighbour steps: 4-connected at one cell, diagonals at √2 cells.
	type step struct {
		dc, dr int
		meters float64
	}
	steps := []step{
		{1, 0, scale}, {-1, 0, scale}, {0, 1, scale}, {0, -1, scale},
		{1, 1, scale * math.Sqrt2}, {1, -1, scale * math.Sqrt2},
		{-1, 1, scale * math.Sqrt2}, {-1, -1, scale * math.Sqrt2},
	}

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := heap.Pop(pq).(cellItem)
		if item.cost > acc[item.idx] {
			continue // stale entry
		}
		col := item.idx % w
		row := item.idx / w

		for _, s := range steps {
			nc, nr := col+s.dc, row+s.dr
			if nc < 0 || nc >= w || nr < 0 || nr >= h {
				continue
			}
			ni := nr*w + nc
			if !cost.Valid[item.idx] || !cost.Valid[ni] {
				continue
			}
			nd := dist[item.idx] + s.meters
			if nd > maxDistanceM {
				continue
			}
			edge := s.meters * (cost.Values[item.idx] + cost.Values[ni]) / 2
			na := acc[item.idx] + edge
			if na < acc[ni] {
				acc[ni] = na
				dist[ni] = nd
				heap.Push(pq, cellItem{idx: ni, cost: na})
			}
		}
	}

	for i := range acc {
		if !math.IsInf(acc[i], 1) {
			out.Values[i] = acc[i]
			out.Valid[i] = true
		}
	}
	return out, nil
}

type cellItem struct {
	idx  int
	cost float64
}

type cellHeap []cellItem

func (h cellHeap) Len() int           { return len(h) }
func (h cellHeap) Less(i, j int) bool { return h[i].cost < h[j].cost }
func (h cellHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *cellHeap) Push(x any)        { *h = append(*h, x.(cellItem)) }

func (h *cellHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
