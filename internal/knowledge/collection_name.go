package knowledge

import (
	"strings"
)

// digitPrefix Milvus 集合名不能以数字开头
const digitPrefix = "c_"

// NormalizeCollectionName 将任意文档ID转换为合法的Milvus集合名
// 建表和查询都走这里，两边得到的名字必须逐字节一致
func NormalizeCollectionName(raw string) string {
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	b.Grow(len(raw) + len(digitPrefix))

	lastUnderscore := false
	for _, r := range raw {
		if !isNameRune(r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	name := strings.Trim(b.String(), "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = digitPrefix + name
	}
	return name
}

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_'
}
