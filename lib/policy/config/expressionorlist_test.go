package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"sigs.k8s.io/yaml"
	goyaml "sigs.k8s.io/yaml/goyaml.v3"
)

func TestFusionExpressionMarshal(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input *ExpressionOrList
		json  string
		yaml  string
	}{
		{
			name:  "single rule",
			input: &ExpressionOrList{Expression: `transcript_score >= 0.8`},
			json:  `"transcript_score >= 0.8"`,
			yaml:  `transcript_score >= 0.8`,
		},
		{
			name: "both scores required",
			input: &ExpressionOrList{All: []string{
				`transcript_score >= transcript_threshold`,
				`bot_score >= human_threshold`,
			}},
			json: `{"all":["transcript_score >= transcript_threshold","bot_score >= human_threshold"]}`,
			yaml: "all:\n    - transcript_score >= transcript_threshold\n    - bot_score >= human_threshold",
		},
		{
			name:  "lone all clause collapses",
			input: &ExpressionOrList{All: []string{`bot_score >= 0.5`}},
			json:  `"bot_score >= 0.5"`,
			yaml:  `bot_score >= 0.5`,
		},
		{
			name: "digits get a looser transcript bar",
			input: &ExpressionOrList{Any: []string{
				`transcript_score >= 0.9`,
				`challenge_kind == 'digits' && transcript_score >= 0.7`,
			}},
			json: `{"any":["transcript_score >= 0.9","challenge_kind == 'digits' \u0026\u0026 transcript_score >= 0.7"]}`,
			yaml: "any:\n    - transcript_score >= 0.9\n    - challenge_kind == 'digits' && transcript_score >= 0.7",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			js, err := json.Marshal(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if string(js) != tt.json {
				t.Logf("wanted: %s", tt.json)
				t.Logf("got:    %s", js)
				t.Error("mismatched JSON")
			}

			ym, err := goyaml.Marshal(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if got := string(bytes.TrimSpace(ym)); got != tt.yaml {
				t.Logf("wanted: %q", tt.yaml)
				t.Logf("got:    %q", got)
				t.Error("mismatched YAML")
			}
		})
	}
}

func TestFusionExpressionFromPolicy(t *testing.T) {
	type fusion struct {
		Expression *ExpressionOrList `json:"expression"`
	}

	for _, tt := range []struct {
		name     string
		policy   string
		want     *ExpressionOrList
		validErr error
		wantErr  bool
	}{
		{
			name:   "bare string",
			policy: "expression: bot_score >= human_threshold\n",
			want:   &ExpressionOrList{Expression: `bot_score >= human_threshold`},
		},
		{
			name:   "all block",
			policy: "expression:\n  all:\n  - transcript_score >= 0.8\n  - bot_score >= 0.5\n",
			want:   &ExpressionOrList{All: []string{`transcript_score >= 0.8`, `bot_score >= 0.5`}},
		},
		{
			name:   "any block",
			policy: "expression:\n  any:\n  - 'challenge_kind == \"phrase\"'\n  - transcript_score >= 0.95\n",
			want:   &ExpressionOrList{Any: []string{`challenge_kind == "phrase"`, `transcript_score >= 0.95`}},
		},
		{
			name:     "all and any together",
			policy:   "expression:\n  all: [transcript_score >= 0.8]\n  any: [bot_score >= 0.5]\n",
			validErr: ErrExpressionCantHaveBoth,
		},
		{
			name:     "empty any",
			policy:   "expression:\n  any: []\n",
			validErr: ErrExpressionEmpty,
		},
		{
			name:    "number instead of rule",
			policy:  "expression: 0.8\n",
			wantErr: true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var f fusion
			err := yaml.Unmarshal([]byte(tt.policy), &f)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wanted decode error: %v, got: %v", tt.wantErr, err)
			}
			if err != nil {
				return
			}

			if tt.want != nil && !f.Expression.Equal(tt.want) {
				t.Logf("wanted: %#v", tt.want)
				t.Logf("got:    %#v", f.Expression)
				t.Error("parsed fusion rule is not what was expected")
			}

			if err := f.Expression.Valid(); !errors.Is(err, tt.validErr) {
				t.Errorf("wanted validation error %v, got: %v", tt.validErr, err)
			}
		})
	}
}
