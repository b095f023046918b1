// Seed script for creating demo knowledge artifacts and an expertise
// index, so an agent can serve consultations without a real
// distillation run.
// Run with: go run ./scripts/seed.go
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/peerwise/peerwise/internal/config"
	"github.com/peerwise/peerwise/internal/domain"
	"gopkg.in/yaml.v3"
)

type demoArtifact struct {
	project string
	task    string
	outcome string
	tags    []string
	insight string
	body    []string
}

var demos = []demoArtifact{
	{
		project: "infra",
		task:    "pin nixpkgs across machines",
		outcome: "success",
		tags:    []string{"nix", "flakes", "pinning"},
		insight: "pin nixpkgs in flake inputs and commit flake.lock, never rely on channels",
		body: []string{
			"A flake.nix wrapping the existing shell.nix with pinned inputs.",
			"nix-channel based pins drifted between machines.",
			"flake inputs plus a committed flake.lock.",
			"nix flake update rewrites every input unless you name one.",
			"inputs.nixpkgs.url = \"github:NixOS/nixpkgs/nixos-24.05\";",
		},
	},
	{
		project: "api",
		task:    "speed up slow postgres queries",
		outcome: "success",
		tags:    []string{"postgres", "indexing", "performance"},
		insight: "run EXPLAIN ANALYZE before adding indexes, the planner often surprises you",
		body: []string{
			"Partial indexes on the two hottest query shapes.",
			"A covering index that the planner never chose.",
			"EXPLAIN ANALYZE driven iteration on real data volumes.",
			"Dev-sized tables hide sequential scan costs.",
			"CREATE INDEX CONCURRENTLY ... WHERE status = 'active';",
		},
	},
	{
		project: "infra",
		task:    "cross-compile a nix built binary",
		outcome: "partial",
		tags:    []string{"nix", "cross-compilation", "derivations"},
		insight: "pkgsCross derivations rebuild the world, use a binary cache or budget hours",
		body: []string{
			"An aarch64 build via pkgsCross on an x86 builder.",
			"Naive pkgsCross usage rebuilt the full toolchain.",
			"Pointing at a populated binary cache first.",
			"Cache misses are silent, check nix log for local builds.",
			"pkgsCross.aarch64-multiplatform.callPackage ./default.nix { };",
		},
	},
}

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("load config: %v", err)
	}

	artifactsDir := config.ArtifactsDir()
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		log.Fatalf("create artifacts dir: %v", err)
	}

	now := time.Now().UTC()
	byTag := map[string][]string{}
	index := domain.ExpertiseIndex{GeneratedAt: now.Format(time.RFC3339)}

	for i, d := range demos {
		id := uuid.New().String()
		ts := now.AddDate(0, 0, -7*i)

		content := fmt.Sprintf(`---
session_id: %s
timestamp: %s
project: %s
task: %s
outcome: %s
tags:
`, id, ts.Format(time.RFC3339), d.project, d.task, d.outcome)
		for _, tag := range d.tags {
			content += "  - " + tag + "\n"
		}
		content += fmt.Sprintf("duration_minutes: 45\nkey_insight: %s\nconfidence: high\n---\n", d.insight)
		for si, section := range domain.ExpectedSections {
			content += fmt.Sprintf("\n## %s\n\n%s\n", section, d.body[si])
		}

		path := filepath.Join(artifactsDir, id+".md")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			log.Fatalf("write artifact: %v", err)
		}
		fmt.Printf("wrote %s (%s)\n", path, d.task)

		for _, tag := range d.tags {
			byTag[tag] = append(byTag[tag], id)
		}
	}

	index.Domains = []domain.ExpertiseDomain{
		{
			Name:        "nix packaging",
			Summary:     "Pinning, flakes and cross-compilation with nix",
			Depth:       "deep",
			Tags:        []string{"nix", "flakes", "pinning", "cross-compilation", "derivations"},
			ArtifactIDs: append(byTag["nix"], byTag["flakes"]...),
			Insights:    []string{demos[0].insight, demos[2].insight},
		},
		{
			Name:        "postgres performance",
			Summary:     "Query tuning and indexing on postgres",
			Depth:       "working",
			Tags:        []string{"postgres", "indexing", "performance"},
			ArtifactIDs: byTag["postgres"],
			Insights:    []string{demos[1].insight},
		},
	}
	index.SessionCount = len(demos)

	indexPath := config.IndexPath()
	if indexPath == "" {
		indexPath = filepath.Join(artifactsDir, "index.yaml")
	}
	raw, err := yaml.Marshal(&index)
	if err != nil {
		log.Fatalf("marshal index: %v", err)
	}
	if err := os.WriteFile(indexPath, raw, 0o644); err != nil {
		log.Fatalf("write index: %v", err)
	}
	fmt.Printf("wrote %s (%d domains, %d sessions)\n", indexPath, len(index.Domains), index.SessionCount)
}
