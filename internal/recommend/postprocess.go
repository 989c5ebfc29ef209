package recommend

import (
	"job-recommender/internal/constants"
	"job-recommender/internal/types"
)

const (
	popularityMaxBoost       = 0.1
	popularityReasonMinBoost = 0.05
	diversityBoost           = 0.05
)

// PostProcessor 热门与多样性加成
type PostProcessor struct {
	popularity bool
	diversity  bool
}

// NewPostProcessor 创建后处理器
func NewPostProcessor(popularity, diversity bool) *PostProcessor {
	return &PostProcessor{popularity: popularity, diversity: diversity}
}

// Apply 在已过滤的候选集上原地调整 hybrid 分数
func (p *PostProcessor) Apply(recs []types.RecommendationScore, support *supportData, includeReasons bool) {
	if p.popularity && support != nil && len(support.popular) > 0 {
		for i := range recs {
			boost := PopularityBoost(support.popularIndex, len(support.popular), recs[i].JobID)
			if boost == 0 {
				continue
			}
			recs[i].HybridScore = minFloat(recs[i].HybridScore+boost, 1.0)
			if boost > popularityReasonMinBoost && includeReasons {
				recs[i].Reasons = append(recs[i].Reasons, constants.ReasonPopularJob)
			}
		}
	}

	if p.diversity {
		counts := make(map[string]int, len(recs))
		for _, r := range recs {
			counts[r.JobCategory]++
		}
		for i := range recs {
			if counts[recs[i].JobCategory] == 1 {
				recs[i].HybridScore = minFloat(recs[i].HybridScore+diversityBoost, 1.0)
			}
		}
	}
}

// PopularityBoost 0.1*(1-rank/len)，不在热门列表中为0
func PopularityBoost(index map[int64]int, size int, jobID int64) float64 {
	rank, ok := index[jobID]
	if !ok || size == 0 {
		return 0
	}
	return popularityMaxBoost * (1 - float64(rank)/float64(size))
}
