// Package schema handles story source format versions. Authored
// sources in the wild span several format generations; imports are
// migrated step by step to the current version before they reach the
// domain layer.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CurrentFormatVersion is the format produced by this codebase
const CurrentFormatVersion = 3

// RawStory is a story source as authored, before domain validation
type RawStory struct {
	Title         string     `json:"title"`
	FormatVersion int        `json:"format_version"`
	Entries       []RawEntry `json:"entries"`
}

// RawEntry is one keyed source entry in declaration order
type RawEntry struct {
	Key      string      `json:"key"`
	Body     string      `json:"body"`
	Format   string      `json:"format"`
	IsEnding bool        `json:"is_ending"`
	Choices  []RawChoice `json:"choices,omitempty"`
}

// RawChoice is one outgoing choice reference in a source entry
type RawChoice struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// AppliedMigration records one migration step taken during an import
type AppliedMigration struct {
	FromVersion int       `json:"from_version"`
	ToVersion   int       `json:"to_version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
}

// MigrationFunc rewrites a source in place for one version step
type MigrationFunc func(ctx context.Context, story *RawStory) error

// Migration is one version step of the source format
type Migration struct {
	FromVersion int
	ToVersion   int
	Description string
	Up          MigrationFunc
}

// FormatEvolution migrates story sources to the current format version
type FormatEvolution struct {
	migrations []Migration
}

// NewFormatEvolution creates an evolution with the built-in migrations
// registered
func NewFormatEvolution() *FormatEvolution {
	e := &FormatEvolution{}

	// v1 sources predate per-entry formats and explicit endings:
	// format defaulted to plain text and an entry with no choices was
	// implicitly an ending
	e.register(Migration{
		FromVersion: 1,
		ToVersion:   2,
		Description: "default entry format to text; mark choice-less entries as endings",
		Up: func(ctx context.Context, story *RawStory) error {
			for i := range story.Entries {
				if story.Entries[i].Format == "" {
					story.Entries[i].Format = "text"
				}
				if len(story.Entries[i].Choices) == 0 {
					story.Entries[i].IsEnding = true
				}
			}
			return nil
		},
	})

	// v2 sources used the legacy "page-N" position syntax in choice
	// targets for self references and carried untrimmed labels
	e.register(Migration{
		FromVersion: 2,
		ToVersion:   3,
		Description: "trim choice labels; resolve legacy self-referencing targets",
		Up: func(ctx context.Context, story *RawStory) error {
			for i := range story.Entries {
				entry := &story.Entries[i]
				for j := range entry.Choices {
					entry.Choices[j].Label = strings.TrimSpace(entry.Choices[j].Label)
					if entry.Choices[j].Target == "page-self" {
						entry.Choices[j].Target = entry.Key
					}
				}
			}
			return nil
		},
	})

	return e
}

func (e *FormatEvolution) register(m Migration) {
	e.migrations = append(e.migrations, m)
}

// MigrateToCurrent upgrades a source to the current format version,
// one step at a time, and returns the applied steps. A source already
// at the current version passes through untouched. Version 0 is
// treated as version 1, which is what the earliest exports carried.
func (e *FormatEvolution) MigrateToCurrent(ctx context.Context, story *RawStory) ([]AppliedMigration, error) {
	if story.FormatVersion == 0 {
		story.FormatVersion = 1
	}
	if story.FormatVersion > CurrentFormatVersion {
		return nil, fmt.Errorf("source format version %d is newer than supported version %d",
			story.FormatVersion, CurrentFormatVersion)
	}

	var applied []AppliedMigration
	for story.FormatVersion < CurrentFormatVersion {
		migration := e.find(story.FormatVersion, story.FormatVersion+1)
		if migration == nil {
			return applied, fmt.Errorf("no migration from format version %d to %d",
				story.FormatVersion, story.FormatVersion+1)
		}

		if err := migration.Up(ctx, story); err != nil {
			return applied, fmt.Errorf("migration %d->%d failed: %w",
				migration.FromVersion, migration.ToVersion, err)
		}

		story.FormatVersion = migration.ToVersion
		applied = append(applied, AppliedMigration{
			FromVersion: migration.FromVersion,
			ToVersion:   migration.ToVersion,
			Description: migration.Description,
			AppliedAt:   time.Now(),
		})
	}

	return applied, nil
}

func (e *FormatEvolution) find(from, to int) *Migration {
	for i := range e.migrations {
		if e.migrations[i].FromVersion == from && e.migrations[i].ToVersion == to {
			return &e.migrations[i]
		}
	}
	return nil
}

// MarshalVersioned wraps a stored document with its format version so
// future readers know which migrations to apply
func MarshalVersioned(data interface{}, formatVersion int) ([]byte, error) {
	wrapper := struct {
		FormatVersion int         `json:"_format_version"`
		Data          interface{} `json:"data"`
	}{
		FormatVersion: formatVersion,
		Data:          data,
	}
	return json.Marshal(wrapper)
}

// UnmarshalVersioned unwraps a stored document and returns its format
// version alongside the raw payload
func UnmarshalVersioned(data []byte) (json.RawMessage, int, error) {
	var wrapper struct {
		FormatVersion int             `json:"_format_version"`
		Data          json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, 0, err
	}

	return wrapper.Data, wrapper.FormatVersion, nil
}
