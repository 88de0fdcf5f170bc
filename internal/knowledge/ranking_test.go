package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

func TestRankChunks(t *testing.T) {
	chunks := []EvidenceChunk{
		{Text: "high", Score: score(0.9)},
		{Text: "none"},
		{Text: "mid", Score: score(0.4)},
	}

	ranked := RankChunks(chunks, 5)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"high", "mid", "none"}, texts(ranked))

	top2 := RankChunks(chunks, 2)
	assert.Equal(t, []string{"high", "mid"}, texts(top2))

	// 输入不被修改
	assert.Equal(t, "none", chunks[1].Text)
}

func TestRankChunks_DefaultLimitAndStability(t *testing.T) {
	var chunks []EvidenceChunk
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		chunks = append(chunks, EvidenceChunk{Text: name, Score: score(0.5)})
	}

	ranked := RankChunks(chunks, 0)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, texts(ranked))
	assert.Empty(t, RankChunks(nil, 5))
}

func TestRankChunks_NegativeScoreBelowMissing(t *testing.T) {
	chunks := []EvidenceChunk{
		{Text: "neg", Score: score(-0.2)},
		{Text: "none"},
	}
	assert.Equal(t, []string{"none", "neg"}, texts(RankChunks(chunks, 5)))
}

func texts(chunks []EvidenceChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}
