package abstractions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-backend/application/ports"
)

func sampleSummaries() []ports.StorySummary {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []ports.StorySummary{
		{StoryID: "s1", Title: "The Lantern Road", NodeCount: 12, UpdatedAt: base},
		{StoryID: "s2", Title: "A Quiet Harbor", NodeCount: 3, UpdatedAt: base.Add(48 * time.Hour)},
		{StoryID: "s3", Title: "Harbor Lights", NodeCount: 30, UpdatedAt: base.Add(24 * time.Hour)},
	}
}

func TestApplySummariesDefaultsToMostRecentFirst(t *testing.T) {
	result := ApplySummaries(sampleSummaries(), ListCriteria{})

	require.Len(t, result, 3)
	assert.Equal(t, "s2", result[0].StoryID)
	assert.Equal(t, "s3", result[1].StoryID)
	assert.Equal(t, "s1", result[2].StoryID)
}

func TestApplySummariesFiltersTitleCaseInsensitively(t *testing.T) {
	result := ApplySummaries(sampleSummaries(), ListCriteria{TitleContains: "HARBOR"})

	require.Len(t, result, 2)
	for _, item := range result {
		assert.Contains(t, item.Title, "Harbor")
	}
}

func TestApplySummariesBoundsNodeCount(t *testing.T) {
	result := ApplySummaries(sampleSummaries(), ListCriteria{MinNodes: 4, MaxNodes: 20})

	require.Len(t, result, 1)
	assert.Equal(t, "s1", result[0].StoryID)
}

func TestApplySummariesFiltersUpdatedAfter(t *testing.T) {
	cutoff := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	result := ApplySummaries(sampleSummaries(), ListCriteria{UpdatedAfter: cutoff})

	require.Len(t, result, 2)
	assert.Equal(t, "s2", result[0].StoryID)
	assert.Equal(t, "s3", result[1].StoryID)
}

func TestApplySummariesSortsByTitleAscendingByDefault(t *testing.T) {
	result := ApplySummaries(sampleSummaries(), ListCriteria{Sort: SortByTitle})

	require.Len(t, result, 3)
	assert.Equal(t, "A Quiet Harbor", result[0].Title)
	assert.Equal(t, "Harbor Lights", result[1].Title)
	assert.Equal(t, "The Lantern Road", result[2].Title)
}

func TestApplySummariesSortsByNodeCountDescending(t *testing.T) {
	result := ApplySummaries(sampleSummaries(), ListCriteria{
		Sort:  SortByNodeCount,
		Order: SortDescending,
	})

	require.Len(t, result, 3)
	assert.Equal(t, 30, result[0].NodeCount)
	assert.Equal(t, 12, result[1].NodeCount)
	assert.Equal(t, 3, result[2].NodeCount)
}

func TestApplySummariesPaginates(t *testing.T) {
	criteria := ListCriteria{Sort: SortByTitle, Limit: 1, Offset: 1}
	result := ApplySummaries(sampleSummaries(), criteria)

	require.Len(t, result, 1)
	assert.Equal(t, "Harbor Lights", result[0].Title)
}

func TestApplySummariesOffsetPastEnd(t *testing.T) {
	result := ApplySummaries(sampleSummaries(), ListCriteria{Offset: 10})
	assert.Empty(t, result)
}
