package analysis

import (
	"encoding/json"
	"strings"

	apperrors "github.com/ironroggers/ops-tracker/internal/errors"
)

const fence = "```"

// ExtractJSON 从模型输出中取出第一个 { 到最后一个 } 之间的JSON对象
// 首行或末行是 ``` 代码块标记时先去掉，返回解析结果与被解析的原文片段
func ExtractJSON(text string) (map[string]interface{}, string, error) {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, fence) {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, fence)
		}
	}
	if strings.HasSuffix(s, fence) {
		if i := strings.LastIndex(s, "\n"); i >= 0 {
			s = s[:i]
		} else {
			s = strings.TrimSuffix(s, fence)
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, "", apperrors.NewMalformedOutputError("no JSON object found in model output")
	}

	span := s[start : end+1]
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return nil, span, apperrors.NewMalformedOutputError("model output is not valid JSON").WithCause(err)
	}
	return out, span, nil
}
