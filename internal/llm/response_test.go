package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSON("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": {"b": 2}}`, extractJSON(`Sure! {"a": {"b": 2}} hope this helps`))
	assert.Equal(t, `{"a": "}"}`, extractJSON(`{"a": "}"} trailing`), "字符串里的括号不计层级")
	assert.Empty(t, extractJSON("no json here"))
	assert.Empty(t, extractJSON(`{"a": 1`))
}

func TestSanitizeJSON(t *testing.T) {
	broken := `{"description": "Led the "Phoenix" migration", "company": "Acme"}`
	fixed := sanitizeJSON(broken)
	assert.Equal(t, `{"description": "Led the \"Phoenix\" migration", "company": "Acme"}`, fixed)

	valid := `{"a": "b\"c", "d": ["e"]}`
	assert.Equal(t, valid, sanitizeJSON(valid), "合法 JSON 不变")
}

func TestDecodeResponseRepairsQuotes(t *testing.T) {
	var out WorkHistory
	err := decodeResponse("\uFEFF"+`{"entries": [{"company": "Acme", "position": "Engineer", "description": "Led the "Phoenix" migration"}]}`, &out)
	require.NoError(t, err)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, `Led the "Phoenix" migration`, out.Entries[0].Description)

	assert.ErrorIs(t, decodeResponse("nothing", &out), ErrNoJSON)
}

func TestFullExtractionIsEmpty(t *testing.T) {
	assert.True(t, FullExtraction{}.IsEmpty())
	assert.False(t, FullExtraction{Contact: Contact{Email: "a@b.co"}}.IsEmpty())
	assert.False(t, FullExtraction{Skills: []SkillGroup{{Category: "Skills", Skills: []string{"Go"}}}}.IsEmpty())
}
