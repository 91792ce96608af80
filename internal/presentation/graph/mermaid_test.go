package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/playbook/internal/presentation/graph"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func sampleProtocol() *domain.Protocol {
	return &domain.Protocol{
		ID:   "release",
		Name: `Cut "Release"`,
		Steps: []domain.Step{
			{ID: "check-status", Name: "Check", Command: "git status"},
			{ID: "tests", Name: "Run tests", Command: "make test", Condition: domain.ParseCondition("context.has_tests")},
			{ID: "announce", Name: "Announce"},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(sampleProtocol(), nil)

	for _, want := range []string{
		"graph TD\n",
		`start(("Cut 'Release'"))`,
		`s_check_status[["1. Check"]]`,
		`s_tests[["2. Run tests"]]`,
		`s_announce["3. Announce"]`,
		`s_tests_if{"context.has_tests"}`,
		"s_tests_if -- yes --> s_tests",
		"start --> s_check_status",
		"s_check_status --> s_tests_if",
		"s_tests --> s_announce",
		"s_tests_if -. no .-> s_announce",
		"s_announce --> done",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Overlay")
}

func TestGenerateMermaid_TrailingConditionSkipsToDone(t *testing.T) {
	p := &domain.Protocol{
		ID:    "p",
		Name:  "P",
		Steps: []domain.Step{{ID: "only", Name: "Only", Condition: domain.FileExists{}}},
	}
	out := graph.GenerateMermaid(p, nil)
	assert.Contains(t, out, "start --> s_only_if")
	assert.Contains(t, out, "s_only_if -. no .-> done")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	p := sampleProtocol()
	exec := domain.NewExecution("release_1", p, domain.Context{"has_tests": domain.BoolValue(true)}, time.Now())
	exec.CompleteStep("check-status", nil)

	out := graph.GenerateMermaid(p, graph.OverlayFor(exec))
	assert.Contains(t, out, "class s_check_status completed;")
	assert.Contains(t, out, "class s_tests current;")
	assert.Equal(t, 1, strings.Count(out, "class s_check_status completed;"))
}
