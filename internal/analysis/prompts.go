package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ironroggers/ops-tracker/internal/knowledge"
)

const structuredSystemPrompt = "You are a deep analysis agent for industrial maintenance. " +
	"You break complex questions into concise, high-signal root cause analysis and answer only in JSON."

const evidenceSystemPrompt = "You are an RCA synthesis agent. " +
	"You merge several evidence sources into one executive-ready root cause analysis and answer only in JSON."

const maintenanceFlowRules = `Rules:
1. Maintenance flow:
   - A user raises an issue against an asset.
   - The issue becomes a work order.
   - A permit is issued for the work order; the work order cannot start before the permit, so planned vs actual timing matters.
   - The work order is split into operations.
   - Operations use components.
2. Write the RCA in a formal, industry-oriented tone.
3. Never mention names of users, assets, operations, components, work orders, permits or issues.`

const structuredOutputContract = `Output:
Return ONLY one JSON object, no other text. Percentages are always positive numbers.
If the data is not enough to answer with confidence, return {"causes": []}.

Example of the shape (do not copy the wording):
{
  "causes": [
    {
      "title": "Assigned workforce is below plan",
      "description": "Manpower on the work order is short of planned staffing, which puts schedule and productivity at risk",
      "trends": {
        "actual_value": 3,
        "planned_value": 5,
        "impact": "positive",
        "percentage_change": 40
      }
    }
  ]
}`

const evidenceOutputContract = `Task:
- Produce the root causes supported by the evidence, in industrial language.
- Merge and deduplicate every URL and page number found in the chunks.
- If the evidence conflicts, state the assumption briefly in the cause description.

Respond with valid JSON only, shaped exactly like:
{
  "causes": [{"title": "...", "description": "..."}],
  "sources": {"urls": ["..."], "page_numbers": [1, 2]}
}`

// BuildStructuredPrompt 结构化数据分析的用户提示，数据按实体名排序
func BuildStructuredPrompt(prompt string, data map[string]interface{}) string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	sections := make([]string, 0, len(names))
	for _, name := range names {
		sections = append(sections, fmt.Sprintf("- %s (JSON)\n%s", name, prettyJSON(data[name])))
	}
	block := "<no data found>"
	if len(sections) > 0 {
		block = strings.Join(sections, "\n\n")
	}

	var b strings.Builder
	b.WriteString("Use the JSON below as the only source of truth.\n\n")
	b.WriteString("Data:\n")
	b.WriteString(block)
	b.WriteString("\n\nUser query:\n")
	b.WriteString(prompt)
	b.WriteString("\n\n")
	b.WriteString(maintenanceFlowRules)
	b.WriteString("\n\n")
	b.WriteString(structuredOutputContract)
	return b.String()
}

// BuildEvidencePrompt 证据综合的用户提示
func BuildEvidencePrompt(prompt string, chunks []knowledge.EvidenceChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are given the user's prompt and the top %d document chunks ranked by score ", len(chunks))
	b.WriteString("(each with text, url, page_number and metadata).\n\n")
	b.WriteString(evidenceOutputContract)
	b.WriteString("\n\nUser prompt:\n")
	b.WriteString(prompt)
	b.WriteString("\n\nChunks:\n")
	b.WriteString(prettyJSON(chunks))
	return b.String()
}

func prettyJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
