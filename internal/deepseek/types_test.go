package deepseek

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeRequest(t *testing.T, body string) *ChatRequest {
	t.Helper()
	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func TestValidateMessages(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"absent", `{"model":"deepseek-chat"}`, ErrMissingMessages},
		{"null", `{"messages":null}`, ErrMissingMessages},
		{"empty", `{"messages":[]}`, ErrMissingMessages},
		{"string", `{"messages":"hi"}`, ErrMessagesNotArray},
		{"object", `{"messages":{"role":"user"}}`, ErrMessagesNotArray},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeRequest(t, tc.body).Validate()
			require.ErrorIs(t, err, tc.want)
		})
	}

	msgs, err := decodeRequest(t, `{"messages":[{"role":"user","content":"hi","name":"bob"}]}`).Validate()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.JSONEq(t, `{"role":"user","content":"hi","name":"bob"}`, string(msgs[0]))
}

func TestBuildPayloadDefaults(t *testing.T) {
	req := decodeRequest(t, `{"messages":[{"role":"user","content":"hi"}],"stream":true,"top_p":0.2}`)
	msgs, err := req.Validate()
	require.NoError(t, err)

	p := BuildPayload(req, msgs)
	require.Equal(t, DefaultModel, p.Model)
	require.Equal(t, DefaultTemperature, p.Temperature)
	require.Equal(t, DefaultMaxTokens, p.MaxTokens)
	require.False(t, p.Stream)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"model":"deepseek-chat","messages":[{"role":"user","content":"hi"}],"temperature":0.7,"max_tokens":2000,"stream":false}`,
		string(raw))
}

func TestBuildPayloadKeepsClientValues(t *testing.T) {
	req := decodeRequest(t, `{"model":"deepseek-reasoner","messages":[{"role":"user","content":"hi"}],"temperature":0,"max_tokens":64}`)
	msgs, err := req.Validate()
	require.NoError(t, err)

	p := BuildPayload(req, msgs)
	require.Equal(t, "deepseek-reasoner", p.Model)
	require.Equal(t, 0.0, p.Temperature)
	require.Equal(t, 64, p.MaxTokens)
}

func TestParseUsage(t *testing.T) {
	model, usage, ok := ParseUsage([]byte(`{"model":"deepseek-chat","usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	require.True(t, ok)
	require.Equal(t, "deepseek-chat", model)
	require.Equal(t, Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}, usage)

	_, _, ok = ParseUsage([]byte(`{"choices":[]}`))
	require.False(t, ok)
}
