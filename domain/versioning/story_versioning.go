package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"storyloom-backend/domain/core/aggregates"
)

// StoryRevision captures a persisted snapshot's identity: which story,
// which version, and a checksum of its content. The save path compares
// checksums to decide whether anything actually changed.
type StoryRevision struct {
	StoryID   string    `json:"story_id"`
	Version   int       `json:"version"`
	Checksum  string    `json:"checksum"`
	NodeCount int       `json:"node_count"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// RevisionService produces and compares story revisions
type RevisionService struct{}

// NewRevisionService creates a revision service
func NewRevisionService() *RevisionService {
	return &RevisionService{}
}

// Snapshot creates a revision for the graph's current content
func (s *RevisionService) Snapshot(graph *aggregates.StoryGraph, authorID string) (*StoryRevision, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph cannot be nil")
	}

	checksum, err := s.Checksum(graph)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return &StoryRevision{
		StoryID:   graph.ID().String(),
		Version:   graph.Version(),
		Checksum:  checksum,
		NodeCount: graph.NodeCount(),
		CreatedAt: time.Now(),
		CreatedBy: authorID,
	}, nil
}

// Checksum calculates a deterministic content hash for a story graph
func (s *RevisionService) Checksum(graph *aggregates.StoryGraph) (string, error) {
	type choiceData struct {
		Label  string `json:"label"`
		Target string `json:"target"`
	}
	type nodeData struct {
		Key      string       `json:"key"`
		Body     string       `json:"body"`
		IsEnding bool         `json:"is_ending"`
		Choices  []choiceData `json:"choices"`
	}

	nodes := graph.Nodes()
	data := struct {
		ID          string            `json:"id"`
		Title       string            `json:"title"`
		Nodes       []nodeData        `json:"nodes"`
		Bookkeeping map[string]string `json:"bookkeeping"`
	}{
		ID:          graph.ID().String(),
		Title:       graph.Title(),
		Nodes:       make([]nodeData, 0, len(nodes)),
		Bookkeeping: graph.Bookkeeping(),
	}

	for _, node := range nodes {
		nd := nodeData{
			Key:      node.Key().String(),
			Body:     node.Passage().Body(),
			IsEnding: node.IsEnding(),
		}
		for _, choice := range node.Choices() {
			nd.Choices = append(nd.Choices, choiceData{
				Label:  choice.Label,
				Target: choice.Target.String(),
			})
		}
		data.Nodes = append(data.Nodes, nd)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:]), nil
}

// Changed reports whether the graph's content differs from a revision
func (s *RevisionService) Changed(graph *aggregates.StoryGraph, last *StoryRevision) (bool, error) {
	if last == nil {
		return true, nil
	}

	checksum, err := s.Checksum(graph)
	if err != nil {
		return false, err
	}

	return checksum != last.Checksum, nil
}
