package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidates(t *testing.T) {
	raw := "```json\n[{\"entity_key\":\" sparbrief_5000_6 \",\"entity_kind\":\"product\",\"attribute\":\"interest_rate\",\"value\":\" 2.0 \",\"evidence\":\"Zinssatz 2,0 %\"}]\n```"
	got, err := parseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sparbrief_5000_6", got[0].EntityKey)
	assert.Equal(t, domain.EntityProduct, got[0].EntityKind)
	assert.Equal(t, "2.0", got[0].Value)

	_, err = parseCandidates("not json")
	assert.Error(t, err)
}

func TestParseGrounded(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"is_grounded": true}`, true},
		{"```json\n{\"is_grounded\": false}\n```", false},
		{"TRUE", true},
		{"maybe", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseGrounded(tt.raw), tt.raw)
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(ProviderGemini, "", Options{})
	assert.Error(t, err)

	_, err = NewClient("cerebras", "key", Options{})
	assert.Error(t, err)

	c, err := NewClient(ProviderMock, "", Options{})
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)

	c, err = NewClient(ProviderOpenAI, "key", Options{BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)
}

func TestBuildExtractPrompt(t *testing.T) {
	p := buildExtractPrompt(domain.ExtractRequest{
		Text: "Sparbrief 5000 mit 6 Jahren Laufzeit",
		Slots: map[domain.EntityKind][]string{
			domain.EntityProduct:  {"interest_rate", "product_type"},
			domain.EntityEmployee: {"role_type"},
		},
	})
	assert.Contains(t, p, "- employee: role_type\n- product: interest_rate, product_type")
	assert.Contains(t, p, "product.product_type: InterestProduct, CheckingAccount, Security")
	assert.Contains(t, p, "Sparbrief 5000 mit 6 Jahren Laufzeit")
	assert.Contains(t, p, "2,0 % p.a.")
}

func TestGeminiClient_ExtractAndGround(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		text := `{"is_grounded": true}`
		if strings.Contains(r.URL.Path, geminiExtractModel) {
			text = `[{"entity_key":"anna_berg","entity_kind":"employee","attribute":"role_type","value":"Advisor","evidence":"Anna Berg, Beraterin"}]`
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
			},
		})
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", Options{})
	c.baseURL = srv.URL

	candidates, err := c.Extract(context.Background(), domain.ExtractRequest{Text: "Anna Berg, Beraterin"})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Advisor", candidates[0].Value)

	ok, err := c.Ground(context.Background(), "Advisor", "Anna Berg, Beraterin")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{
		"/" + geminiExtractModel + ":generateContent",
		"/" + geminiGroundModel + ":generateContent",
	}, paths)
}

func TestGeminiClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", Options{})
	c.baseURL = srv.URL

	_, err := c.Extract(context.Background(), domain.ExtractRequest{Text: "x"})
	assert.ErrorContains(t, err, "status 429")
}

func TestMockClient_GroundByValue(t *testing.T) {
	m := NewMockClient()
	m.GroundByValue = map[string]bool{"2.5": false}

	ok, _ := m.Ground(context.Background(), "2.5", "evidence")
	assert.False(t, ok)
	ok, _ = m.Ground(context.Background(), "2.0", "evidence")
	assert.True(t, ok)
	assert.Len(t, m.GroundCalls, 2)
}
