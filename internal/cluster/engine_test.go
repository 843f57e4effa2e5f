package cluster

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/distill/internal/config"
	"github.com/thebtf/distill/internal/segment"
	"github.com/thebtf/distill/pkg/models"
)

type EngineSuite struct {
	suite.Suite
	cfg *config.Config
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.cfg = config.Default()
}

// events segments text with the default segmenter, matching what the
// pipeline feeds the engine.
func (s *EngineSuite) events(text string) []*models.LogEvent {
	return segment.New(s.cfg).Segment(text)
}

func (s *EngineSuite) run(events []*models.LogEvent) []*models.Cluster {
	clusters, err := New(s.cfg).Run(context.Background(), events)
	s.Require().NoError(err)
	return clusters
}

func (s *EngineSuite) TestGroupsIdenticalShapes() {
	events := s.events(strings.Join([]string{
		"2023-05-01T10:00:00 ERROR refused from 10.0.0.1:8080",
		"2023-05-01T10:00:05 ERROR refused from 10.0.0.2:8081",
		"2023-05-01T10:00:09 ERROR refused from 192.168.1.9:9000",
	}, "\n"))
	s.Require().Len(events, 3)

	clusters := s.run(events)
	s.Require().Len(clusters, 1)
	s.Equal(3, clusters[0].Size())
	s.ElementsMatch(
		[]string{"10.0.0.1:8080", "10.0.0.2:8081", "192.168.1.9:9000"},
		clusters[0].Placeholders()["IP"],
	)
}

func (s *EngineSuite) TestSeparatesCategories() {
	events := s.events(strings.Join([]string{
		"ERROR payment declined for order",
		"ERROR payment declined for order",
		"INFO server started listening on port",
		"INFO server started listening on port",
	}, "\n"))
	s.Require().Len(events, 4)

	clusters := s.run(events)
	s.Require().Len(clusters, 2)
	for _, c := range clusters {
		s.Equal(2, c.Size())
	}
}

func (s *EngineSuite) TestEveryEventAssignedExactlyOnce() {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "ERROR worker %d crashed during shutdown\n", i)
		fmt.Fprintf(&b, "INFO request for /api/items took %dms\n", i*13)
	}
	events := s.events(b.String())
	s.Require().Len(events, 80)

	clusters := s.run(events)

	seen := make(map[*models.LogEvent]int)
	total := 0
	for _, c := range clusters {
		for _, m := range c.Members {
			seen[m]++
			total++
		}
	}
	s.Equal(len(events), total, "every event appears in exactly one cluster")
	for _, n := range seen {
		s.Equal(1, n)
	}
}

func (s *EngineSuite) TestDeterministicAcrossRuns() {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "ERROR stage %d failed after 600ms\n", i)
	}
	text := b.String()

	first := s.run(s.events(text))
	second := s.run(s.events(text))

	s.Require().Equal(len(first), len(second))
	for i := range first {
		s.Equal(first[i].Size(), second[i].Size())
		s.Equal(first[i].Signature, second[i].Signature)
	}
}

func (s *EngineSuite) TestClustersSortedBySize() {
	events := s.events(strings.Join([]string{
		"ERROR disk full on volume",
		"ERROR disk full on volume",
		"ERROR disk full on volume",
		"WARN cache expired for key",
	}, "\n"))

	clusters := s.run(events)
	s.Require().Len(clusters, 2)
	s.GreaterOrEqual(clusters[0].Size(), clusters[1].Size())
	s.Equal(3, clusters[0].Size())
}

func (s *EngineSuite) TestBoundedClusterCountOnTemplatedInput() {
	// 10k lines drawn from 50 structural templates must collapse to a
	// cluster count near the template count, not the line count.
	shapes := make([]string, 50)
	verbs := []string{"ERROR", "WARN", "INFO"}
	for i := range shapes {
		filler := strings.Repeat("alpha beta ", i%17+1)
		shapes[i] = fmt.Sprintf("%s stage%d %sfailed from 10.0.%%d.%%d:%%d", verbs[i%3], i, filler)
	}

	var b strings.Builder
	for i := 0; i < 10000; i++ {
		shape := shapes[i%len(shapes)]
		fmt.Fprintf(&b, shape+"\n", i%250, i%200, 8000+i%1000)
	}

	events := s.events(b.String())
	s.Require().Len(events, 10000)

	clusters := s.run(events)
	s.LessOrEqual(len(clusters), 60)
	s.GreaterOrEqual(len(clusters), 3)
}

func (s *EngineSuite) TestContextCancellation() {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "ERROR worker %d crashed\n", i)
	}
	events := s.events(b.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(s.cfg).Run(ctx, events)
	s.ErrorIs(err, context.Canceled)
}

func (s *EngineSuite) TestHierarchicalGroupsIdenticalShapes() {
	s.cfg.Hierarchical = true

	events := s.events(strings.Join([]string{
		"2023-05-01T10:00:00 ERROR refused from 10.0.0.1:8080",
		"2023-05-01T10:00:05 ERROR refused from 10.0.0.2:8081",
		"2023-05-01T10:00:09 ERROR refused from 192.168.1.9:9000",
	}, "\n"))
	s.Require().Len(events, 3)

	clusters := s.run(events)
	s.Require().Len(clusters, 1)
	s.Equal(3, clusters[0].Size())
	s.Positive(clusters[0].Level, "hierarchical clusters record their pass")
}

func (s *EngineSuite) TestHierarchicalSingletonFormsOnFinalPass() {
	s.cfg.Hierarchical = true

	events := s.events(strings.Join([]string{
		"ERROR payment declined for order 42",
		"WARN totally unrelated chatter about gardening tulips",
	}, "\n"))
	s.Require().Len(events, 2)

	clusters := s.run(events)
	s.Require().Len(clusters, 2)
	for _, c := range clusters {
		if c.Size() == 1 {
			s.Equal(3, c.Level, "a lone event waits for the loosest pass")
		}
	}
}

func (s *EngineSuite) TestHierarchicalEveryEventAssigned() {
	s.cfg.Hierarchical = true

	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "ERROR worker %d crashed during shutdown\n", i)
	}
	events := s.events(b.String())

	clusters := s.run(events)
	total := 0
	for _, c := range clusters {
		total += c.Size()
	}
	s.Equal(len(events), total)
}

func TestStructuralMatch(t *testing.T) {
	e := New(config.Default())

	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "equal", a: "X X N", b: "X X N", want: true},
		{name: "collapsed runs match", a: "XXX  NN", b: "X N", want: true},
		{name: "different structure", a: "X: N", b: "X N", want: false},
		{name: "punctuation preserved", a: "X=N", b: "X:N", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.structuralMatch(tt.a, tt.b))
		})
	}
}

func TestCollapseSignature(t *testing.T) {
	assert.Equal(t, "X X N", collapseSignature("XXXX  XX NNN"))
	assert.Equal(t, "X(N)", collapseSignature("XX(NN)"))
}

func TestAverageSignatureLength(t *testing.T) {
	require.Equal(t, 0.0, averageSignatureLength(nil))

	events := []*models.LogEvent{
		{Signature: "ab"},
		{Signature: "abcd"},
	}
	assert.Equal(t, 3.0, averageSignatureLength(events))
}
