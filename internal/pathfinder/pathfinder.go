// Package pathfinder implements bounded multi-hop path discovery over the
// property graph: breadth-first expansion with cycle rejection, an optional
// relation-type edge filter, and a geometric-mean confidence score scaled to
// prefer shorter paths.
package pathfinder

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dominikbraun/graph"

	"litkg/internal/apperrors"
	"litkg/internal/config"
	"litkg/internal/graphstore"
	"litkg/internal/types"
)

// Options bounds and filters one path query. A zero value picks up the
// configured defaults.
type Options struct {
	MaxHops       int
	TypeFilters   []types.RelationType
	TotalPathsCap int
}

// PathResult is the outcome of a findPaths call: the enumerated paths in
// ranked order, and whether TotalPathsCap cut the enumeration short.
type PathResult struct {
	Paths     []types.Path
	Truncated bool
}

// Finder runs bounded BFS path queries against a GraphReader.
type Finder struct {
	cfg    *config.Config
	reader graphstore.GraphReader
}

// NewFinder builds a Finder. cfg supplies the default and hard hop bounds and
// the total-paths cap.
func NewFinder(cfg *config.Config, reader graphstore.GraphReader) *Finder {
	return &Finder{cfg: cfg, reader: reader}
}

type frontierEntry struct {
	nodeID      string
	nodes       []string
	edges       []types.PathEdge
	confidences []float64
}

// cyclesBack is the Cycle Detector: it reports whether appending candidate
// to nodes (a simple directed path discovered so far) would revisit a node
// already on the path. It builds a small throwaway directed graph from
// nodes and asks dominikbraun/graph whether the edge from the path's tail
// to candidate closes a cycle, rather than hand-rolling the equivalent
// visited-set lookup.
func cyclesBack(nodes []string, candidate string) bool {
	if len(nodes) == 0 {
		return false
	}
	g := graph.New(graph.StringHash, graph.Directed())
	for _, id := range nodes {
		_ = g.AddVertex(id)
	}
	_ = g.AddVertex(candidate)
	for i := 0; i+1 < len(nodes); i++ {
		_ = g.AddEdge(nodes[i], nodes[i+1])
	}
	creates, err := graph.CreatesCycle(g, nodes[len(nodes)-1], candidate)
	if err != nil {
		return true
	}
	return creates
}

// FindPaths enumerates all simple paths from startID to endID up to
// opts.MaxHops hops (capped at the hard maximum), ordered by non-decreasing
// hop count then descending score.
func (f *Finder) FindPaths(ctx context.Context, startID, endID string, opts Options) (PathResult, error) {
	maxHops := f.resolveMaxHops(opts.MaxHops)
	totalCap := opts.TotalPathsCap
	if totalCap <= 0 {
		totalCap = f.cfg.PathFinder.TotalPathsCap
	}

	if startID == endID {
		return PathResult{Paths: []types.Path{{Nodes: []string{startID}, Hops: 0, Score: 1.0}}}, nil
	}

	typeFilter := make(map[types.RelationType]bool, len(opts.TypeFilters))
	for _, t := range opts.TypeFilters {
		typeFilter[t] = true
	}

	frontier := []frontierEntry{{
		nodeID: startID,
		nodes:  []string{startID},
	}}

	var found []types.Path
	truncated := false

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []frontierEntry

		for _, cur := range frontier {
			neighbors, err := f.neighbors(ctx, cur.nodeID, typeFilter)
			if err != nil {
				return PathResult{}, err
			}

			for _, n := range neighbors {
				if cyclesBack(cur.nodes, n.otherID) {
					continue
				}

				nodes := append(append([]string(nil), cur.nodes...), n.otherID)
				edges := append(append([]types.PathEdge(nil), cur.edges...), n.edge)
				confidences := append(append([]float64(nil), cur.confidences...), n.confidence)

				if n.otherID == endID {
					score := pathScore(confidences, hop+1)
					found = append(found, types.Path{Nodes: nodes, Relations: edges, Hops: hop + 1, Score: score})
					if totalCap > 0 && len(found) >= totalCap {
						truncated = true
						break
					}
					continue
				}

				next = append(next, frontierEntry{nodeID: n.otherID, nodes: nodes, edges: edges, confidences: confidences})
			}

			if truncated {
				break
			}
		}

		if truncated {
			break
		}
		frontier = next
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Hops != found[j].Hops {
			return found[i].Hops < found[j].Hops
		}
		return found[i].Score > found[j].Score
	})

	return PathResult{Paths: found, Truncated: truncated}, nil
}

// FindShortestPath returns the single best-ranked path, or nil if start and
// end are not connected within the hop bound.
func (f *Finder) FindShortestPath(ctx context.Context, startID, endID string, opts Options) (*types.Path, error) {
	result, err := f.FindPaths(ctx, startID, endID, opts)
	if err != nil {
		return nil, err
	}
	if len(result.Paths) == 0 {
		return nil, nil
	}
	return &result.Paths[0], nil
}

// AreConnected reports whether any path exists within the hop bound.
func (f *Finder) AreConnected(ctx context.Context, startID, endID string, opts Options) (bool, error) {
	path, err := f.FindShortestPath(ctx, startID, endID, opts)
	if err != nil {
		return false, err
	}
	return path != nil, nil
}

// DegreesOfSeparation returns the hop count of the shortest path, or nil if
// unconnected within the bound.
func (f *Finder) DegreesOfSeparation(ctx context.Context, startID, endID string, opts Options) (*int, error) {
	path, err := f.FindShortestPath(ctx, startID, endID, opts)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, nil
	}
	hops := path.Hops
	return &hops, nil
}

func (f *Finder) resolveMaxHops(requested int) int {
	hard := f.cfg.PathFinder.HardMaxHops
	if hard <= 0 {
		hard = 6
	}
	if requested <= 0 {
		requested = f.cfg.PathFinder.DefaultMaxHops
	}
	if requested <= 0 || requested > hard {
		requested = hard
	}
	return requested
}

type neighbor struct {
	otherID    string
	edge       types.PathEdge
	confidence float64
}

// neighbors fetches both outgoing and incoming edges of id and converts them
// into direction-tagged frontier steps, applying the optional type filter.
func (f *Finder) neighbors(ctx context.Context, id string, typeFilter map[types.RelationType]bool) ([]neighbor, error) {
	out, err := f.reader.GetRelations(ctx, id, "outgoing")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("pathfinder.neighbors")
	}
	in, err := f.reader.GetRelations(ctx, id, "incoming")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("pathfinder.neighbors")
	}

	var out2 []neighbor
	for _, r := range out {
		if len(typeFilter) > 0 && !typeFilter[r.Type] {
			continue
		}
		out2 = append(out2, neighbor{
			otherID:    r.Target,
			edge:       types.PathEdge{Type: r.Type, Direction: "forward"},
			confidence: r.Confidence,
		})
	}
	for _, r := range in {
		if len(typeFilter) > 0 && !typeFilter[r.Type] {
			continue
		}
		out2 = append(out2, neighbor{
			otherID:    r.Source,
			edge:       types.PathEdge{Type: r.Type, Direction: "reverse"},
			confidence: r.Confidence,
		})
	}
	return out2, nil
}

// pathScore is the geometric mean of the path's edge confidences, scaled by
// 1/(1+hops) so otherwise-equal paths prefer fewer hops.
func pathScore(confidences []float64, hops int) float64 {
	if len(confidences) == 0 {
		return 0
	}
	product := 1.0
	for _, c := range confidences {
		if c <= 0 {
			return 0
		}
		product *= c
	}
	geoMean := math.Pow(product, 1.0/float64(len(confidences)))
	return geoMean / (1.0 + float64(hops))
}

// Explain renders a path as a natural-language sentence, e.g.
// "A DEVELOPED_BY B, COMPETES_WITH C": each hop is written as its relation
// type, a reverse hop as "is TYPE of", and hops are separated by commas.
// names maps entity ids to display names; ids missing from the map are
// shown verbatim.
func Explain(path types.Path, names map[string]string) string {
	if len(path.Nodes) == 0 {
		return ""
	}
	display := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	if len(path.Nodes) == 1 {
		return display(path.Nodes[0])
	}

	out := display(path.Nodes[0])
	for i, edge := range path.Relations {
		verb := string(edge.Type)
		if edge.Direction == "reverse" {
			verb = fmt.Sprintf("is %s of", verb)
		}
		out += fmt.Sprintf(" %s %s", verb, display(path.Nodes[i+1]))
		if i < len(path.Relations)-1 {
			out += ","
		}
	}
	return out
}
