package knowledge

import "sort"

// DefaultResultLimit 送入证据分析的最大分块数
const DefaultResultLimit = 5

// RankChunks 按分数降序稳定排序并截取前 limit 条，缺分数按 0 处理
func RankChunks(chunks []EvidenceChunk, limit int) []EvidenceChunk {
	if limit <= 0 {
		limit = DefaultResultLimit
	}

	ranked := make([]EvidenceChunk, len(chunks))
	copy(ranked, chunks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scoreOf(ranked[i]) > scoreOf(ranked[j])
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func scoreOf(c EvidenceChunk) float64 {
	if c.Score == nil {
		return 0
	}
	return *c.Score
}
