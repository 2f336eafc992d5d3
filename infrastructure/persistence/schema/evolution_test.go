package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateToCurrentUpgradesLegacySource(t *testing.T) {
	evolution := NewFormatEvolution()
	story := &RawStory{
		Title:         "Old Export",
		FormatVersion: 1,
		Entries: []RawEntry{
			{Key: "start", Body: "Begin.", Choices: []RawChoice{
				{Label: "  Onward  ", Target: "end"},
				{Label: "Stay", Target: "page-self"},
			}},
			{Key: "end", Body: "Done."},
		},
	}

	applied, err := evolution.MigrateToCurrent(context.Background(), story)
	require.NoError(t, err)
	require.Len(t, applied, 2)

	assert.Equal(t, 1, applied[0].FromVersion)
	assert.Equal(t, 2, applied[0].ToVersion)
	assert.Equal(t, 2, applied[1].FromVersion)
	assert.Equal(t, 3, applied[1].ToVersion)
	assert.Equal(t, CurrentFormatVersion, story.FormatVersion)

	// v1 defaults
	assert.Equal(t, "text", story.Entries[0].Format)
	assert.False(t, story.Entries[0].IsEnding)
	assert.True(t, story.Entries[1].IsEnding)

	// v2 cleanups
	assert.Equal(t, "Onward", story.Entries[0].Choices[0].Label)
	assert.Equal(t, "start", story.Entries[0].Choices[1].Target)
}

func TestMigrateToCurrentTreatsMissingVersionAsOne(t *testing.T) {
	evolution := NewFormatEvolution()
	story := &RawStory{
		Title:   "Unversioned",
		Entries: []RawEntry{{Key: "only", Body: "Alone."}},
	}

	applied, err := evolution.MigrateToCurrent(context.Background(), story)
	require.NoError(t, err)

	assert.Len(t, applied, 2)
	assert.Equal(t, CurrentFormatVersion, story.FormatVersion)
	assert.True(t, story.Entries[0].IsEnding)
}

func TestMigrateToCurrentPassesThroughCurrentVersion(t *testing.T) {
	evolution := NewFormatEvolution()
	story := &RawStory{
		Title:         "Fresh",
		FormatVersion: CurrentFormatVersion,
		Entries: []RawEntry{
			{Key: "start", Body: "Begin.", Format: "markdown"},
		},
	}

	applied, err := evolution.MigrateToCurrent(context.Background(), story)
	require.NoError(t, err)

	assert.Empty(t, applied)
	assert.Equal(t, "markdown", story.Entries[0].Format)
	assert.False(t, story.Entries[0].IsEnding)
}

func TestMigrateToCurrentRejectsNewerVersion(t *testing.T) {
	evolution := NewFormatEvolution()
	story := &RawStory{
		Title:         "From the future",
		FormatVersion: CurrentFormatVersion + 1,
	}

	_, err := evolution.MigrateToCurrent(context.Background(), story)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestVersionedRoundTrip(t *testing.T) {
	payload := map[string]string{"title": "Wrapped"}

	data, err := MarshalVersioned(payload, CurrentFormatVersion)
	require.NoError(t, err)

	raw, version, err := UnmarshalVersioned(data)
	require.NoError(t, err)

	assert.Equal(t, CurrentFormatVersion, version)
	assert.JSONEq(t, `{"title":"Wrapped"}`, string(raw))
}
