package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeArtifact(t *testing.T, dir, id string, tags []string, insight string, ts time.Time) {
	t.Helper()
	tagYAML := ""
	for _, tag := range tags {
		tagYAML += "  - " + tag + "\n"
	}
	content := fmt.Sprintf(`---
session_id: %s
timestamp: %s
project: test
task: something about %s
outcome: success
tags:
%sduration_minutes: 30
key_insight: %s
confidence: high
---

## What Was Built

x

## What Failed First

x

## What Worked

x

## Gotchas

x

## Code Patterns

x
`, id, ts.Format(time.RFC3339), id, tagYAML, insight)
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".md"), []byte(content), 0o644))
}

func TestRetrieveRanksByScore(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeArtifact(t, dir, "nix-one", []string{"nix", "flakes"}, "pin nix flakes inputs", now.AddDate(0, 0, -1))
	writeArtifact(t, dir, "pg-one", []string{"postgres"}, "tune autovacuum", now.AddDate(0, 0, -1))

	engine := NewEngine(dir, "", Options{}, zap.NewNop())
	result := engine.Retrieve("how do I set up nix flakes")

	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, "nix-one", result.Artifacts[0].Artifact.ID)
	assert.Greater(t, result.Artifacts[0].Score, result.Artifacts[1].Score)
	assert.Contains(t, result.Artifacts[0].MatchedTags, "nix")
}

func TestRetrieveRecencyBreaksTies(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeArtifact(t, dir, "old", []string{"nix"}, "same insight", now.AddDate(0, 0, -80))
	writeArtifact(t, dir, "new", []string{"nix"}, "same insight", now.AddDate(0, 0, -1))

	engine := NewEngine(dir, "", Options{}, zap.NewNop())
	result := engine.Retrieve("nix question")

	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, "new", result.Artifacts[0].Artifact.ID)
	assert.GreaterOrEqual(t, result.Artifacts[0].Score, result.Artifacts[1].Score)
}

func TestRetrieveHonorsResultCap(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	for i := 0; i < 8; i++ {
		writeArtifact(t, dir, fmt.Sprintf("nix-%d", i), []string{"nix"}, "nix tip", now)
	}

	engine := NewEngine(dir, "", Options{MaxResults: 3}, zap.NewNop())
	assert.Len(t, engine.Retrieve("nix").Artifacts, 3)
}

func TestRetrieveUsesIndexAsPreFilter(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeArtifact(t, dir, "nix-one", []string{"nix"}, "nix tip", now)
	writeArtifact(t, dir, "nix-two", []string{"nix"}, "another nix tip", now)

	indexPath := filepath.Join(dir, "index.yaml")
	index := `domains:
  - name: Nix
    summary: nix work
    depth: deep
    tags: [nix]
    sessions: [nix-one]
    key_insights: [nix tip]
session_count: 2
`
	require.NoError(t, os.WriteFile(indexPath, []byte(index), 0o644))

	engine := NewEngine(dir, indexPath, Options{}, zap.NewNop())
	result := engine.Retrieve("nix")

	// Only the domain member survives the pre-filter.
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "nix-one", result.Artifacts[0].Artifact.ID)
	assert.Equal(t, []string{"Nix"}, result.MatchedDomains)
}

func TestRetrieveFallsBackWhenIndexMisses(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "nix-one", []string{"nix"}, "nix tip", time.Now())

	indexPath := filepath.Join(dir, "index.yaml")
	index := `domains:
  - name: Databases
    summary: postgres work
    depth: surface
    tags: [postgres]
    sessions: [pg-one]
    key_insights: [vacuum]
`
	require.NoError(t, os.WriteFile(indexPath, []byte(index), 0o644))

	engine := NewEngine(dir, indexPath, Options{}, zap.NewNop())
	result := engine.Retrieve("nix")

	// No domain matched, so the full set is scored.
	require.Len(t, result.Artifacts, 1)
	assert.Empty(t, result.MatchedDomains)
}

func TestRetrieveMissingIndexDegradesGracefully(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "nix-one", []string{"nix"}, "nix tip", time.Now())

	engine := NewEngine(dir, filepath.Join(dir, "absent.yaml"), Options{}, zap.NewNop())
	assert.Len(t, engine.Retrieve("nix").Artifacts, 1)
}

func TestRetrieveSkipsUnparseableFiles(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "good", []string{"nix"}, "nix tip", time.Now())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.md"), []byte("not an artifact"), 0o644))

	engine := NewEngine(dir, "", Options{}, zap.NewNop())
	result := engine.Retrieve("nix")
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "good", result.Artifacts[0].Artifact.ID)
}

func TestRetrieveStopwordOnlyQuery(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "nix-one", []string{"nix"}, "nix tip", time.Now())

	engine := NewEngine(dir, "", Options{}, zap.NewNop())
	result := engine.Retrieve("the and of")

	// No keywords survive; everything is scored on recency alone.
	assert.Empty(t, result.Keywords)
	assert.Len(t, result.Artifacts, 1)
}

func TestRetrieveEmptyDirectory(t *testing.T) {
	engine := NewEngine(t.TempDir(), "", Options{}, zap.NewNop())
	assert.Empty(t, engine.Retrieve("anything").Artifacts)
}
