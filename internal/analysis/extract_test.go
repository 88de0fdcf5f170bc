package analysis

import (
	"errors"
	"testing"

	apperrors "github.com/ironroggers/ops-tracker/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want map[string]interface{}
	}{
		{
			name: "fenced json block",
			in:   "```json\n{\"causes\":[]}\n```",
			want: map[string]interface{}{"causes": []interface{}{}},
		},
		{
			name: "bare fence",
			in:   "```\n{\"causes\": [{\"title\": \"Seal wear\"}]}\n```",
			want: map[string]interface{}{"causes": []interface{}{map[string]interface{}{"title": "Seal wear"}}},
		},
		{
			name: "single line fence",
			in:   "```{\"causes\":[]}```",
			want: map[string]interface{}{"causes": []interface{}{}},
		},
		{
			name: "single line fence with language tag",
			in:   "```json {\"causes\":[1]}```",
			want: map[string]interface{}{"causes": []interface{}{float64(1)}},
		},
		{
			name: "prose around object",
			in:   "Here is the analysis:\n{\"causes\": []}\nLet me know if you need more.",
			want: map[string]interface{}{"causes": []interface{}{}},
		},
		{
			name: "nested braces use last closing brace",
			in:   `{"causes": [{"trends": {"impact": "positive"}}]}`,
			want: map[string]interface{}{"causes": []interface{}{
				map[string]interface{}{"trends": map[string]interface{}{"impact": "positive"}},
			}},
		},
		{
			name: "surrounding whitespace",
			in:   "\n\n   {\"a\": 1}   \n",
			want: map[string]interface{}{"a": float64(1)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := ExtractJSON(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractJSON_ReturnsSpan(t *testing.T) {
	_, span, err := ExtractJSON("result: {\"causes\": []} done")
	require.NoError(t, err)
	assert.Equal(t, `{"causes": []}`, span)
}

func TestExtractJSON_Malformed(t *testing.T) {
	for _, in := range []string{
		"The pump failed because the seal wore out.",
		"",
		"```json\n```",
		"} backwards {",
		"{\"causes\": [}",
	} {
		_, _, err := ExtractJSON(in)
		assert.True(t, errors.Is(err, apperrors.ErrMalformedOutput), "input %q", in)
	}
}
