package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/repository/cache"
)

// Facet query suffixes. Appending a facet vocabulary to the extracted
// concepts pulls the embedding toward the right column category.
const (
	metricsSuffix    = " percentage rate measurement"
	dimensionsSuffix = " category filter group geography location"
)

// previousDatasetBoost is added to the previous dataset's aggregate score on
// continuation turns, favoring dataset stability without hard-pinning it.
const previousDatasetBoost = 1000.0

// Service finds the dataset best matching an intent by searching the column
// index per facet and ranking datasets by their summed column scores.
type Service struct {
	index       Index
	embedder    Embedder
	cache       Cache
	facetLimit  int
	scrollLimit int
	logger      *zap.Logger
}

// New creates a column discovery service.
func New(index Index, embedder Embedder, c Cache, facetLimit, scrollLimit int, logger *zap.Logger) *Service {
	return &Service{
		index:       index,
		embedder:    embedder,
		cache:       c,
		facetLimit:  facetLimit,
		scrollLimit: scrollLimit,
		logger:      logger,
	}
}

// Discover resolves the dataset for a turn.
//
// Pagination turns with a remembered dataset skip the search entirely. All
// other turns run one KNN search per facet concurrently, merge hits keeping
// the best score per column, rank datasets, and fetch the winner's full
// column set. Returns ErrNoRelevantColumns when nothing matches.
func (s *Service) Discover(ctx context.Context, turn *domain.Turn, conv *domain.Conversation) (domain.DatasetContext, error) {
	if turn.Intent.IsPaginationRequest && conv != nil && conv.PreviousDataset != nil {
		return *conv.PreviousDataset, nil
	}

	queries := facetQueries(turn, s.facetLimit)

	hits, err := s.searchFacets(ctx, turn, queries)
	if err != nil {
		return domain.DatasetContext{}, err
	}
	if len(hits) == 0 {
		return domain.DatasetContext{}, domain.ErrNoRelevantColumns
	}

	candidates := groupByDataset(dedupe(hits))
	previousID := ""
	if conv != nil && turn.Intent.IsContinuation {
		previousID = conv.PreviousDatasetID
	}
	winner := rank(candidates, previousID)

	s.logger.Debug("Dataset ranked",
		zap.String("dataset_id", winner.DatasetID),
		zap.Int("column_hits", len(winner.Columns)),
		zap.Int("candidates", len(candidates)))

	return s.loadDataset(ctx, winner)
}

// facetQuery pairs a search string with its candidate limit.
type facetQuery struct {
	Text  string
	Limit int
}

func facetQueries(turn *domain.Turn, limit int) []facetQuery {
	var queries []facetQuery

	if len(turn.Intent.MetricsNeeded) > 0 {
		queries = append(queries, facetQuery{
			Text:  strings.Join(turn.Intent.MetricsNeeded, " ") + metricsSuffix,
			Limit: limit,
		})
	}
	if len(turn.Intent.DimensionsNeeded) > 0 {
		queries = append(queries, facetQuery{
			Text:  strings.Join(turn.Intent.DimensionsNeeded, " ") + dimensionsSuffix,
			Limit: limit,
		})
	}
	if turn.Intent.TemporalNeeded {
		queries = append(queries, facetQuery{
			Text:  strings.Join(domain.TemporalVocabulary, " "),
			Limit: (limit + 1) / 2,
		})
	}

	// Nothing extracted: search the raw utterance wider.
	if len(queries) == 0 {
		queries = append(queries, facetQuery{Text: turn.Utterance, Limit: limit * 2})
	}

	return queries
}

// searchFacets runs every facet search concurrently. Merge order does not
// matter: deduplication keeps the maximum score per column either way.
func (s *Service) searchFacets(ctx context.Context, turn *domain.Turn, queries []facetQuery) ([]domain.ColumnHit, error) {
	var (
		mu  sync.Mutex
		all []domain.ColumnHit
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		q := q
		g.Go(func() error {
			hits, err := s.searchOne(gctx, turn, q)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Service) searchOne(ctx context.Context, turn *domain.Turn, q facetQuery) ([]domain.ColumnHit, error) {
	params := map[string]any{"query": q.Text, "limit": q.Limit}

	var cached []domain.ColumnHit
	if hit, err := s.cache.Get(ctx, cache.CategoryColumnSearch, params, &cached); err == nil && hit {
		turn.CacheHits["column_search"] = true
		return cached, nil
	}

	vector, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed facet query: %w", err)
	}

	hits, err := s.index.Search(ctx, vector, q.Limit, "")
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cache.CategoryColumnSearch, params, hits); err != nil {
		s.logger.Warn("Failed to cache column search", zap.Error(err))
	}
	return hits, nil
}

// dedupe collapses hits on the same column, keeping the maximum score.
func dedupe(hits []domain.ColumnHit) []domain.ColumnHit {
	byID := make(map[string]domain.ColumnHit, len(hits))
	order := make([]string, 0, len(hits))
	for _, h := range hits {
		id := h.Column.DatasetID + "/" + h.Column.Name
		existing, ok := byID[id]
		if !ok {
			byID[id] = h
			order = append(order, id)
			continue
		}
		if h.Score > existing.Score {
			byID[id] = h
		}
	}

	out := make([]domain.ColumnHit, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

func groupByDataset(hits []domain.ColumnHit) []domain.DatasetCandidate {
	byID := make(map[string]*domain.DatasetCandidate)
	order := make([]string, 0)
	for _, h := range hits {
		c, ok := byID[h.Column.DatasetID]
		if !ok {
			c = &domain.DatasetCandidate{
				DatasetID:   h.Column.DatasetID,
				DatasetName: h.DatasetName,
				TableName:   h.TableName,
				Description: h.DatasetDescription,
			}
			byID[h.Column.DatasetID] = c
			order = append(order, h.Column.DatasetID)
		}
		c.Columns = append(c.Columns, domain.ScoredColumn{Column: h.Column, Score: h.Score})
	}

	out := make([]domain.DatasetCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// rank orders candidates by boosted aggregate score, breaking ties by hit
// count, and returns the winner.
func rank(candidates []domain.DatasetCandidate, previousID string) domain.DatasetCandidate {
	score := func(c domain.DatasetCandidate) float64 {
		total := c.AggregateScore()
		if previousID != "" && c.DatasetID == previousID {
			total += previousDatasetBoost
		}
		return total
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := score(candidates[i]), score(candidates[j])
		if si != sj {
			return si > sj
		}
		return len(candidates[i].Columns) > len(candidates[j].Columns)
	})
	return candidates[0]
}

// loadDataset fetches every column of the winning dataset. When the scroll
// fails or returns nothing, the discovery hits themselves serve as the
// column set.
func (s *Service) loadDataset(ctx context.Context, winner domain.DatasetCandidate) (domain.DatasetContext, error) {
	dataset := domain.DatasetContext{
		DatasetID:   winner.DatasetID,
		DatasetName: winner.DatasetName,
		TableName:   winner.TableName,
		Description: winner.Description,
	}

	hits, err := s.index.ScrollDataset(ctx, winner.DatasetID, s.scrollLimit)
	if err != nil || len(hits) == 0 {
		if err != nil {
			s.logger.Warn("Failed to scroll dataset columns, using discovery hits",
				zap.String("dataset_id", winner.DatasetID),
				zap.Error(err))
		}
		for _, c := range winner.Columns {
			dataset.Columns = append(dataset.Columns, c.Column)
		}
		s.enrichDataset(ctx, &dataset)
		return dataset, nil
	}

	for _, h := range hits {
		dataset.Columns = append(dataset.Columns, h.Column)
	}
	s.enrichDataset(ctx, &dataset)
	return dataset, nil
}

// enrichDataset fills table name and description from the dataset's metadata
// record when the column hits did not carry them. The lookup is cached and
// best-effort.
func (s *Service) enrichDataset(ctx context.Context, dataset *domain.DatasetContext) {
	if dataset.TableName != "" && dataset.Description != "" {
		return
	}

	params := map[string]any{"dataset_id": dataset.DatasetID}
	var info domain.DatasetInfo
	hit, err := s.cache.Get(ctx, cache.CategoryMetadata, params, &info)
	if err != nil || !hit {
		info, err = s.index.DatasetInfo(ctx, dataset.DatasetID)
		if err != nil {
			s.logger.Warn("Failed to load dataset info",
				zap.String("dataset_id", dataset.DatasetID),
				zap.Error(err))
			return
		}
		if info.DatasetID != "" {
			if err := s.cache.Set(ctx, cache.CategoryMetadata, params, info); err != nil {
				s.logger.Warn("Failed to cache dataset info", zap.Error(err))
			}
		}
	}

	if dataset.TableName == "" {
		dataset.TableName = info.TableName
	}
	if dataset.DatasetName == "" {
		dataset.DatasetName = info.Name
	}
	if dataset.Description == "" {
		dataset.Description = info.Description
	}
}
