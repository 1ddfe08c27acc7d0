package extraction

import (
	"sort"

	"litkg/internal/config"
	"litkg/internal/types"
)

// ContradictionKind identifies which of the three contradiction shapes a
// group exhibits, per spec section 4.5.
type ContradictionKind string

const (
	KindPairConflict ContradictionKind = "pair_conflict"
	KindDirectional  ContradictionKind = "directional"
	KindCyclic       ContradictionKind = "cyclic"
)

// ContradictionGroup is one set of mutually inconsistent relations.
type ContradictionGroup struct {
	Kind        ContradictionKind
	Description string
	Relations   []types.RelationKey
}

// ContradictionDetector finds pair-conflicts, directional conflicts, and
// cycles among a set of scored relations, following the conflict table and
// the asymmetric/acyclic type sets declared in configuration. Unlike the
// teacher's text-based ContradictionDetector (which pattern-matches negation
// words across free-text thoughts), this operates purely over the typed
// (source, target, type) relation model -- the two domains need different
// detection strategies even though the "find groups, force pending" shape
// is the same.
type ContradictionDetector struct {
	cfg *config.Config
}

// NewContradictionDetector builds a detector bound to cfg's conflicting
// pairs and the closed relation-type vocabulary's asymmetric/acyclic sets.
func NewContradictionDetector(cfg *config.Config) *ContradictionDetector {
	return &ContradictionDetector{cfg: cfg}
}

// Detect finds all contradiction groups among relations. It is idempotent:
// running it again on relations whose ReviewStatus has already been
// downgraded to pending finds the same groups (the detection itself does
// not consult ReviewStatus), so repeated runs mark nothing new.
func (d *ContradictionDetector) Detect(relations []types.Relation) []ContradictionGroup {
	var groups []ContradictionGroup
	groups = append(groups, d.pairConflicts(relations)...)
	groups = append(groups, d.directionalConflicts(relations)...)
	groups = append(groups, d.cycles(relations)...)
	return groups
}

// ApplyDowngrades forces ReviewStatus=pending and NeedsReview=true on every
// relation named by any group, returning a new slice (inputs are not
// mutated in place so callers retain the pre-downgrade scored relations).
func ApplyDowngrades(relations []types.Relation, groups []ContradictionGroup) []types.Relation {
	flagged := make(map[types.RelationKey]bool)
	for _, g := range groups {
		for _, k := range g.Relations {
			flagged[k] = true
		}
	}

	out := make([]types.Relation, len(relations))
	for i, rel := range relations {
		out[i] = rel
		if flagged[rel.Key()] {
			out[i].ReviewStatus = types.ReviewPending
			out[i].NeedsReview = true
		}
	}
	return out
}

// pairConflicts finds (source, target) pairs bearing two relation types the
// configured conflict table declares mutually exclusive.
func (d *ContradictionDetector) pairConflicts(relations []types.Relation) []ContradictionGroup {
	conflictPairs := make(map[types.RelationType]map[types.RelationType]bool)
	for _, cp := range d.cfg.Relations.ConflictingPairs {
		addConflict(conflictPairs, cp.A, cp.B)
		addConflict(conflictPairs, cp.B, cp.A)
	}

	byPair := make(map[string][]types.Relation)
	for _, rel := range relations {
		key := rel.Source + "|" + rel.Target
		byPair[key] = append(byPair[key], rel)
	}

	var groups []ContradictionGroup
	for _, rels := range byPair {
		for i := 0; i < len(rels); i++ {
			for j := i + 1; j < len(rels); j++ {
				a, b := rels[i], rels[j]
				if conflictPairs[a.Type] != nil && conflictPairs[a.Type][b.Type] {
					groups = append(groups, ContradictionGroup{
						Kind:        KindPairConflict,
						Description: "conflicting relation types " + string(a.Type) + " and " + string(b.Type) + " for the same pair",
						Relations:   []types.RelationKey{a.Key(), b.Key()},
					})
				}
			}
		}
	}
	return sortGroups(groups)
}

func addConflict(m map[types.RelationType]map[types.RelationType]bool, a, b types.RelationType) {
	if m[a] == nil {
		m[a] = make(map[types.RelationType]bool)
	}
	m[a][b] = true
}

// directionalConflicts finds (a->b, T) and (b->a, T) pairs where T is
// declared asymmetric.
func (d *ContradictionDetector) directionalConflicts(relations []types.Relation) []ContradictionGroup {
	seen := make(map[types.RelationKey]types.Relation)
	for _, rel := range relations {
		seen[rel.Key()] = rel
	}

	var groups []ContradictionGroup
	reported := make(map[string]bool)
	for _, rel := range relations {
		if !types.AsymmetricRelationTypes[rel.Type] {
			continue
		}
		reverseKey := types.RelationKey{Source: rel.Target, Target: rel.Source, Type: rel.Type}
		if reverse, ok := seen[reverseKey]; ok {
			dedupKey := dedupPairKey(rel.Key(), reverse.Key())
			if reported[dedupKey] {
				continue
			}
			reported[dedupKey] = true
			groups = append(groups, ContradictionGroup{
				Kind:        KindDirectional,
				Description: "asymmetric relation type " + string(rel.Type) + " holds in both directions",
				Relations:   []types.RelationKey{rel.Key(), reverse.Key()},
			})
		}
	}
	return sortGroups(groups)
}

// cycles finds cycles of length >= 2 among relations of a type declared
// acyclic, using a DFS over each acyclic type's subgraph independently.
func (d *ContradictionDetector) cycles(relations []types.Relation) []ContradictionGroup {
	byType := make(map[types.RelationType][]types.Relation)
	for _, rel := range relations {
		if types.AcyclicRelationTypes[rel.Type] {
			byType[rel.Type] = append(byType[rel.Type], rel)
		}
	}

	var groups []ContradictionGroup
	for relType, rels := range byType {
		adjacency := make(map[string][]types.Relation)
		for _, rel := range rels {
			adjacency[rel.Source] = append(adjacency[rel.Source], rel)
		}

		visited := make(map[string]int) // 0=unvisited, 1=in-stack, 2=done
		var stack []types.Relation

		var dfs func(node string) []types.RelationKey
		dfs = func(node string) []types.RelationKey {
			visited[node] = 1
			for _, edge := range adjacency[node] {
				stack = append(stack, edge)
				if visited[edge.Target] == 1 {
					// found a cycle: walk the stack back to edge.Target
					var cycle []types.RelationKey
					for i := len(stack) - 1; i >= 0; i-- {
						cycle = append(cycle, stack[i].Key())
						if stack[i].Source == edge.Target {
							break
						}
					}
					stack = stack[:len(stack)-1]
					return cycle
				}
				if visited[edge.Target] == 0 {
					if cycle := dfs(edge.Target); cycle != nil {
						return cycle
					}
				}
				stack = stack[:len(stack)-1]
			}
			visited[node] = 2
			return nil
		}

		seenStart := make(map[string]bool)
		for _, rel := range rels {
			if seenStart[rel.Source] {
				continue
			}
			seenStart[rel.Source] = true
			if visited[rel.Source] != 0 {
				continue
			}
			stack = nil
			if cycle := dfs(rel.Source); cycle != nil && len(cycle) >= 2 {
				groups = append(groups, ContradictionGroup{
					Kind:        KindCyclic,
					Description: "cycle of length " + itoa(len(cycle)) + " in acyclic relation type " + string(relType),
					Relations:   cycle,
				})
			}
		}
	}
	return sortGroups(groups)
}

func dedupPairKey(a, b types.RelationKey) string {
	sa := a.Source + ">" + a.Target + ">" + string(a.Type)
	sb := b.Source + ">" + b.Target + ">" + string(b.Type)
	if sa < sb {
		return sa + "|" + sb
	}
	return sb + "|" + sa
}

func sortGroups(groups []ContradictionGroup) []ContradictionGroup {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Description < groups[j].Description
	})
	return groups
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
