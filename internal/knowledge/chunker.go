package knowledge

import (
	"strings"
	"unicode"
)

// Chunker 按字符窗口切分纯文本文档，相邻窗口有重叠
type Chunker struct {
	size    int
	overlap int
}

// NewChunker 创建分块器
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split 切分文本，空白字符先折叠为单个空格
func (c *Chunker) Split(text string) []string {
	runes := []rune(collapseSpaces(text))
	if len(runes) == 0 {
		return nil
	}

	var out []string
	step := c.size - c.overlap
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// SplitDocument 把整篇文档切成待入库分块，base 提供来源字段，分块序号从 0 开始
func (c *Chunker) SplitDocument(text string, base ChunkInput) []ChunkInput {
	pieces := c.Split(text)
	inputs := make([]ChunkInput, 0, len(pieces))
	for i, piece := range pieces {
		in := base
		in.ID = ""
		in.Text = piece
		in.ChunkIndex = int64(i)
		inputs = append(inputs, in)
	}
	return inputs
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteRune(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
