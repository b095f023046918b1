package retrieval

import (
	"sort"
	"time"

	"github.com/peerwise/peerwise/internal/artifact"
	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/relevance"
	"go.uber.org/zap"
)

const DefaultMaxResults = 5

// Engine shortlists knowledge artifacts for a query. The expertise
// index, when present, acts as a coarse pre-filter; the three-signal
// score is always the final ranking.
type Engine struct {
	artifactsDir string
	indexPath    string
	maxResults   int
	logger       *zap.Logger

	now func() time.Time
}

type Options struct {
	MaxResults int
}

// Result is one retrieval pass: the ranked shortlist plus the query
// analysis that produced it.
type Result struct {
	Artifacts      []domain.ScoredArtifact
	Keywords       []string
	MatchedDomains []string
}

func NewEngine(artifactsDir, indexPath string, opts Options, logger *zap.Logger) *Engine {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		artifactsDir: artifactsDir,
		indexPath:    indexPath,
		maxResults:   opts.MaxResults,
		logger:       logger,
		now:          time.Now,
	}
}

// Retrieve ranks artifacts against the query. Index absence, an empty
// candidate set, or unparseable artifact files degrade gracefully to
// scoring the full unfiltered set.
func (e *Engine) Retrieve(query string) Result {
	keywords := relevance.ExtractKeywords(query)
	result := Result{Keywords: keywords}

	var candidates map[string]struct{}
	if e.indexPath != "" {
		if idx, err := artifact.LoadIndex(e.indexPath); err == nil {
			candidates = e.matchDomains(keywords, idx, &result)
		} else {
			e.logger.Debug("expertise index unavailable, scanning all artifacts", zap.Error(err))
		}
	}

	artifacts := artifact.LoadDir(e.artifactsDir)
	now := e.now()

	scored := make([]domain.ScoredArtifact, 0, len(artifacts))
	for _, a := range artifacts {
		if candidates != nil {
			if _, ok := candidates[a.ID]; !ok {
				continue
			}
		}
		tags := append(append([]string{}, a.Tags...), a.Stack...)
		scored = append(scored, domain.ScoredArtifact{
			Artifact:    a,
			Score:       relevance.RetrievalScore(keywords, tags, a.KeyInsight, a.Timestamp, now),
			MatchedTags: relevance.MatchedTags(keywords, tags),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > e.maxResults {
		scored = scored[:e.maxResults]
	}
	result.Artifacts = scored
	return result
}

// matchDomains scores index domains by tag overlap and returns the
// union of member artifact ids from every domain that scored above
// zero, in descending score order. Nil means "no pre-filter".
func (e *Engine) matchDomains(keywords []string, idx *domain.ExpertiseIndex, result *Result) map[string]struct{} {
	type scoredDomain struct {
		domain.ExpertiseDomain
		score float64
	}

	var matched []scoredDomain
	for _, d := range idx.Domains {
		if s := relevance.TagOverlap(keywords, d.Tags); s > 0 {
			matched = append(matched, scoredDomain{ExpertiseDomain: d, score: s})
		}
	}
	if len(matched) == 0 {
		return nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})

	candidates := make(map[string]struct{})
	for _, d := range matched {
		result.MatchedDomains = append(result.MatchedDomains, d.Name)
		for _, id := range d.ArtifactIDs {
			candidates[id] = struct{}{}
		}
	}
	return candidates
}
