package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-sidecar/internal/config"
)

func TestRuleAnnotator(t *testing.T) {
	ctx := context.Background()
	a := NewRuleAnnotator()

	entities, err := a.Annotate(ctx, "Senior Engineer at Acme Ltd\nJan 2020 - Present\nBSc Computer Science, University of Leeds")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Ltd", "University of Leeds"}, Filter(entities, LabelOrg))

	entities, err = a.Annotate(ctx, "built services in Go and python\nsenior engineer")
	require.NoError(t, err)
	assert.Empty(t, entities, "小写开头或没有机构词的行不是机构")

	_, err = a.Annotate(canceledContext(), "Acme Ltd")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLooksLikeInstitution(t *testing.T) {
	assert.True(t, LooksLikeInstitution("Imperial College London"))
	assert.True(t, LooksLikeInstitution("UNIVERSITY OF MANCHESTER"))
	assert.False(t, LooksLikeInstitution("Acme Ltd"))
}

func TestCompositeAnnotatorMergesAndSkipsFailures(t *testing.T) {
	person := &StaticAnnotator{Entities: []Entity{{Text: "Jane Doe", Label: LabelPerson}, {Text: "London", Label: LabelGPE}}}
	broken := &StaticAnnotator{Err: errors.New("model missing")}
	duplicate := &StaticAnnotator{Entities: []Entity{{Text: "Jane Doe", Label: LabelPerson}}}

	c := NewCompositeAnnotator(zerolog.Nop(), person, broken, duplicate, NewRuleAnnotator())
	entities, err := c.Annotate(context.Background(), "Jane Doe\nLondon\nAcme Ltd")
	require.NoError(t, err, "单个识别器失败不影响整体")

	assert.Equal(t, []Entity{
		{Text: "Jane Doe", Label: LabelPerson},
		{Text: "London", Label: LabelGPE},
		{Text: "Acme Ltd", Label: LabelOrg},
	}, entities, "去重并保持顺序")
	assert.Equal(t, 1, broken.Calls)
	assert.True(t, HasLabel(entities, LabelGPE))
	assert.False(t, HasLabel(entities, "DATE"))
}

func TestStaticAnnotatorOnlyReturnsPresentEntities(t *testing.T) {
	s := &StaticAnnotator{Entities: []Entity{{Text: "Acme", Label: LabelOrg}, {Text: "Globex", Label: LabelOrg}}}
	entities, err := s.Annotate(context.Background(), "Worked at Globex")
	require.NoError(t, err)
	assert.Equal(t, []string{"Globex"}, Filter(entities, LabelOrg))
}

func TestProseAnnotatorHandlesEmptyAndCanceled(t *testing.T) {
	p := NewProseAnnotator(WithProseLogger(zerolog.Nop()))

	entities, err := p.Annotate(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, entities)

	_, err = p.Annotate(canceledContext(), "Jane Doe lives in London")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProseAnnotatorLabels(t *testing.T) {
	p := NewProseAnnotator()
	entities, err := p.Annotate(context.Background(), "Jane Doe moved from London to Paris in 2019.")
	require.NoError(t, err)
	for _, e := range entities {
		assert.Contains(t, []string{LabelPerson, LabelGPE}, e.Label, "prose 只输出 PERSON 和 GPE")
	}
}

func TestNewFromConfig(t *testing.T) {
	_, rulesOnly := NewFromConfig(config.NLPConfig{Enabled: false}, zerolog.Nop()).(RuleAnnotator)
	assert.True(t, rulesOnly, "关闭统计模型时只用规则")

	_, composite := NewFromConfig(config.NLPConfig{Enabled: true}, zerolog.Nop()).(*CompositeAnnotator)
	assert.True(t, composite)

	assert.Equal(t, "rules", ModelName(config.NLPConfig{}))
	assert.Contains(t, ModelName(config.NLPConfig{Enabled: true}), "prose")
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
