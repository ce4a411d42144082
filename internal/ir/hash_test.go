package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleScenario() *Scenario {
	return &Scenario{
		Name: "ucast-buffered",
		Operators: []OperatorSpec{
			{Name: "u", Kind: KindUcast},
		},
		Steps: []Step{
			{Op: OpPush, Target: "u", Items: []any{1, 2}},
			{Op: OpSubscribe, Target: "u", Observer: "o1", Policy: "auto"},
		},
		Expect: []Expectation{
			{Observer: "o1", Events: []string{"on_next(1)", "on_next(2)"}},
		},
	}
}

func TestHashWithDomain_Separation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain(DomainScenario, data), hashWithDomain(DomainEvent, data))
	assert.Len(t, hashWithDomain(DomainScenario, data), 64)
}

func TestScenarioHash_IgnoresNameAndDescription(t *testing.T) {
	a := sampleScenario()
	b := sampleScenario()
	b.Name = "renamed"
	b.Description = "same behaviour"

	ha, err := ScenarioHash(a)
	require.NoError(t, err)
	hb, err := ScenarioHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestScenarioHash_ChangesWithSteps(t *testing.T) {
	a := sampleScenario()
	b := sampleScenario()
	b.Steps[0].Items = []any{2, 1}

	assert.NotEqual(t, MustScenarioHash(a), MustScenarioHash(b))
}

func TestScenarioHash_RejectsFloats(t *testing.T) {
	s := sampleScenario()
	s.Steps[0].Items = []any{1.5}

	_, err := ScenarioHash(s)
	assert.Error(t, err)
	assert.Panics(t, func() { MustScenarioHash(s) })
}

func TestEventID(t *testing.T) {
	a := EventID("flow-1", 1, "o1", "next", "1")
	assert.Equal(t, a, EventID("flow-1", 1, "o1", "next", "1"))
	assert.NotEqual(t, a, EventID("flow-2", 1, "o1", "next", "1"))
	assert.NotEqual(t, a, EventID("flow-1", 2, "o1", "next", "1"))
}

func TestParseErrorSpec(t *testing.T) {
	spec, err := ParseErrorSpec("test:boom")
	require.NoError(t, err)
	assert.Equal(t, ErrorSpec{Domain: "test", Code: "boom"}, spec)

	spec, err = ParseErrorSpec("store:no-such-key: missing k1")
	require.NoError(t, err)
	assert.Equal(t, ErrorSpec{Domain: "store", Code: "no-such-key", Message: "missing k1"}, spec)

	for _, bad := range []string{"", "nocolon", ":code", "domain:"} {
		_, err := ParseErrorSpec(bad)
		assert.Error(t, err, bad)
	}
}
