// Package paging derives the linear page numbering readers see from the
// branching graph authors write. The mapping is recomputed whenever a
// story is loaded and must be stable across runs on an unchanged graph,
// because page numbers are externally visible.
package paging

import (
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/valueobjects"
	pkgerrors "storyloom-backend/pkg/errors"
)

// ComputeMapping derives a NodeMapping from a story graph. It is pure
// and deterministic: the same graph always yields the same mapping.
//
// The primary algorithm is a breadth-first traversal from the entry
// node, following each node's choices in declared order; pages are
// assigned in first-discovery order. Breadth-first is the fixed,
// documented order: readers see siblings of an early branch before
// anything deeper. Nodes unreachable from the entry node are appended
// after all reachable ones, in declaration order, so no authored
// content is silently dropped.
//
// If the structural result fails validation, the mapping is recomputed
// from pure declaration order, trading ordering quality for
// availability. If that also fails validation, mapping computation
// fails and the session cannot initialize.
func ComputeMapping(graph *aggregates.StoryGraph) (*NodeMapping, error) {
	if graph == nil {
		return nil, pkgerrors.NewMappingError("graph cannot be nil")
	}

	entry, err := graph.EntryNode()
	if err != nil {
		return nil, err
	}

	mapping := structuralMapping(graph, entry.Key())
	if Validate(graph, mapping) {
		return mapping, nil
	}

	mapping = declarationOrderMapping(graph)
	if Validate(graph, mapping) {
		return mapping, nil
	}

	return nil, pkgerrors.NewMappingError("both structural and declaration-order mappings failed validation")
}

// structuralMapping assigns pages breadth-first from the entry node.
// The visited-set is the mapping itself: a node with a page is never
// revisited, so cycles and self-references terminate.
func structuralMapping(graph *aggregates.StoryGraph, entry valueobjects.NodeKey) *NodeMapping {
	mapping := newNodeMapping(graph.NodeCount())

	queue := []valueobjects.NodeKey{entry}
	mapping.assign(entry)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node, err := graph.GetNode(current)
		if err != nil {
			// Dangling keys only enter the queue via choices that were
			// filtered below, so this cannot happen; guard anyway
			continue
		}

		for _, choice := range node.Choices() {
			target := choice.Target
			if target.IsZero() || !graph.HasNode(target) || mapping.Contains(target) {
				continue
			}
			mapping.assign(target)
			queue = append(queue, target)
		}
	}

	// Unreachable nodes keep their authored relative order
	for _, node := range graph.Nodes() {
		mapping.assign(node.Key())
	}

	return mapping
}

// declarationOrderMapping is the legacy fallback: pages 1..N in the
// graph's own enumeration order, bookkeeping entries excluded.
func declarationOrderMapping(graph *aggregates.StoryGraph) *NodeMapping {
	mapping := newNodeMapping(graph.NodeCount())
	for _, node := range graph.Nodes() {
		mapping.assign(node.Key())
	}
	return mapping
}

// Validate cross-checks a mapping's internal consistency against its
// graph: every node has a page, every page in 1..TotalPages has a node,
// the two directions are exact inverses, and the page count equals the
// enumerable node count.
func Validate(graph *aggregates.StoryGraph, mapping *NodeMapping) bool {
	if graph == nil || mapping == nil {
		return false
	}

	if mapping.TotalPages() != graph.NodeCount() {
		return false
	}

	for _, node := range graph.Nodes() {
		page, ok := mapping.PageFor(node.Key())
		if !ok || page < 1 || page > mapping.TotalPages() {
			return false
		}

		back, ok := mapping.NodeFor(page)
		if !ok || !back.Equals(node.Key()) {
			return false
		}
	}

	for page := 1; page <= mapping.TotalPages(); page++ {
		key, ok := mapping.NodeFor(page)
		if !ok {
			return false
		}
		if !graph.HasNode(key) {
			return false
		}
		if assigned, ok := mapping.PageFor(key); !ok || assigned != page {
			return false
		}
	}

	return true
}
