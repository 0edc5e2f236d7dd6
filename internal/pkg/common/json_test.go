package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"title\":\"X\"}\n```", want: `{"title":"X"}`},
		{name: "prose around", input: `Here you go: {"a":{"b":2}} thanks`, want: `{"a":{"b":2}}`},
		{name: "no object", input: "sorry, I cannot", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	var v map[string]interface{}
	require.Error(t, ParseJSON(`{"a":1} {"b":2}`, &v))
	require.NoError(t, ParseJSON(`{"a":1}`, &v))
}

func TestQuoteJSONKeys(t *testing.T) {
	require.Equal(t, `{"title": "X", "servings": 2}`, QuoteJSONKeys(`{title: "X", servings: 2}`))
}
