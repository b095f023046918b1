package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/peerwise/peerwise/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadIndex reads an expertise-index YAML snapshot. The index is a
// coarse pre-filter for retrieval; callers must treat a load failure
// as "no index", not as a fatal error.
func LoadIndex(path string) (*domain.ExpertiseIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read expertise index: %w", err)
	}
	var idx domain.ExpertiseIndex
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse expertise index: %w", err)
	}
	return &idx, nil
}

// LoadDir parses every .md artifact under dir, recursively. Files that
// fail to parse are skipped. A missing directory yields an empty set.
func LoadDir(dir string) []domain.KnowledgeArtifact {
	var artifacts []domain.KnowledgeArtifact
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		a, err := Parse(string(data))
		if err != nil {
			return nil
		}
		artifacts = append(artifacts, *a)
		return nil
	})
	return artifacts
}
