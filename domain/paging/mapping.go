package paging

import (
	"storyloom-backend/domain/core/valueobjects"
)

// NodeMapping is the bijection between story nodes and 1-based page
// numbers. Pages are dense: every page in 1..TotalPages resolves to
// exactly one node and vice versa.
type NodeMapping struct {
	nodeToPage map[string]int
	pageToNode map[int]valueobjects.NodeKey
	totalPages int
}

func newNodeMapping(capacity int) *NodeMapping {
	return &NodeMapping{
		nodeToPage: make(map[string]int, capacity),
		pageToNode: make(map[int]valueobjects.NodeKey, capacity),
	}
}

// assign gives the next page number to a node not yet mapped. A node
// already assigned keeps its page; pages are never re-entered.
func (m *NodeMapping) assign(key valueobjects.NodeKey) {
	if _, exists := m.nodeToPage[key.String()]; exists {
		return
	}
	m.totalPages++
	m.nodeToPage[key.String()] = m.totalPages
	m.pageToNode[m.totalPages] = key
}

// PageFor returns the page assigned to a node key
func (m *NodeMapping) PageFor(key valueobjects.NodeKey) (int, bool) {
	page, ok := m.nodeToPage[key.String()]
	return page, ok
}

// NodeFor returns the node assigned to a page number
func (m *NodeMapping) NodeFor(page int) (valueobjects.NodeKey, bool) {
	key, ok := m.pageToNode[page]
	return key, ok
}

// TotalPages returns the page count
func (m *NodeMapping) TotalPages() int {
	return m.totalPages
}

// Contains reports whether the node key has a page assignment
func (m *NodeMapping) Contains(key valueobjects.NodeKey) bool {
	_, ok := m.nodeToPage[key.String()]
	return ok
}

// Pages returns a snapshot of the node-to-page assignments
func (m *NodeMapping) Pages() map[string]int {
	out := make(map[string]int, len(m.nodeToPage))
	for k, v := range m.nodeToPage {
		out[k] = v
	}
	return out
}
