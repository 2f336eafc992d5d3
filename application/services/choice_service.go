package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/valueobjects"
	pkgerrors "storyloom-backend/pkg/errors"
)

// ChoiceService provides simple, direct choice wiring between story
// nodes. It is used by the link Lambda for efficient linking without
// the overhead of the command bus.
type ChoiceService struct {
	storyRepo ports.StoryRepository
	logger    *zap.Logger
}

// NewChoiceService creates a new choice service
func NewChoiceService(storyRepo ports.StoryRepository, logger *zap.Logger) *ChoiceService {
	return &ChoiceService{storyRepo: storyRepo, logger: logger}
}

// LinkNodes adds a choice from one node to another and persists the
// story. The target must exist: this path never creates dangling
// references.
func (s *ChoiceService) LinkNodes(ctx context.Context, storyID, userID, fromKey, label, targetKey string) error {
	if storyID == "" || userID == "" || fromKey == "" || targetKey == "" {
		return pkgerrors.NewValidationError("storyID, userID, fromKey, and targetKey are required")
	}

	graph, err := s.storyRepo.LoadStory(ctx, aggregates.StoryID(storyID))
	if err != nil {
		return fmt.Errorf("failed to load story: %w", err)
	}
	if graph.AuthorID() != userID {
		return pkgerrors.NewForbiddenError("story does not belong to user")
	}

	from, err := graph.GetNode(valueobjects.MustNodeKey(fromKey))
	if err != nil {
		return err
	}
	target, err := valueobjects.NewNodeKey(targetKey)
	if err != nil {
		return err
	}
	if !graph.HasNode(target) {
		return pkgerrors.NewNotFoundError("target node " + targetKey)
	}

	if err := from.AddChoice(label, target); err != nil {
		return err
	}

	if err := s.storyRepo.SaveStory(ctx, graph); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}

	s.logger.Debug("nodes linked",
		zap.String("story_id", storyID),
		zap.String("from", fromKey),
		zap.String("target", targetKey))
	return nil
}

// Suggestion is one candidate choice target with its relevance score
type Suggestion struct {
	NodeKey string  `json:"node_key"`
	Score   float64 `json:"score"`
}

// SuggestTargets ranks other nodes as candidate choice targets for a
// node, scored by word overlap between passage bodies. Nodes already
// targeted by the source are excluded.
func (s *ChoiceService) SuggestTargets(ctx context.Context, storyID, nodeKey string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 5
	}

	graph, err := s.storyRepo.LoadStory(ctx, aggregates.StoryID(storyID))
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}

	source, err := graph.GetNode(valueobjects.MustNodeKey(nodeKey))
	if err != nil {
		return nil, err
	}

	linked := make(map[string]bool)
	for _, choice := range source.Choices() {
		linked[choice.Target.String()] = true
	}

	sourceWords := wordSet(source.Passage().Body())
	if len(sourceWords) == 0 {
		return nil, nil
	}

	var suggestions []Suggestion
	for _, candidate := range graph.Nodes() {
		key := candidate.Key().String()
		if key == nodeKey || linked[key] {
			continue
		}

		overlap := 0
		for word := range wordSet(candidate.Passage().Body()) {
			if sourceWords[word] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}

		suggestions = append(suggestions, Suggestion{
			NodeKey: key,
			Score:   float64(overlap) / float64(len(sourceWords)),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score == suggestions[j].Score {
			return suggestions[i].NodeKey < suggestions[j].NodeKey
		}
		return suggestions[i].Score > suggestions[j].Score
	})

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// wordSet lowercases and splits a body into its distinct words,
// skipping short stop-word sized tokens
func wordSet(body string) map[string]bool {
	words := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(body)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) > 3 {
			words[word] = true
		}
	}
	return words
}
