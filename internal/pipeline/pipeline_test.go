package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/distill/internal/config"
)

type PipelineSuite struct {
	suite.Suite
	cfg *config.Config
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.cfg = config.Default()
}

func (s *PipelineSuite) newPipeline() *Pipeline {
	p := New(s.cfg, 2)
	s.T().Cleanup(p.Close)
	return p
}

func (s *PipelineSuite) TestDistillFlat() {
	p := s.newPipeline()

	text := strings.Join([]string{
		"2023-05-01T10:00:00 ERROR refused from 10.0.0.1:8080",
		"2023-05-01T10:00:05 ERROR refused from 10.0.0.2:8081",
		"2023-05-01T10:00:09 ERROR refused from 192.168.1.9:9000",
		"INFO server started listening on port 8080",
	}, "\n")

	res, err := p.Distill(context.Background(), text, Options{})
	s.Require().NoError(err)

	s.Equal(StrategyFlat, res.Strategy)
	s.Equal(4, res.EventCount)
	s.Equal(len(text), res.InputBytes)
	s.NotZero(res.RunID)
	s.Positive(res.Duration)

	s.Require().Len(res.Clusters, 2)
	s.Equal(3, res.Clusters[0].Size())
	s.ElementsMatch(
		[]string{"10.0.0.1:8080", "10.0.0.2:8081", "192.168.1.9:9000"},
		res.Clusters[0].Placeholders()["IP"],
	)
}

func (s *PipelineSuite) TestDistillHierarchical() {
	p := s.newPipeline()

	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "ERROR worker %d crashed during handoff\n", i)
	}

	res, err := p.Distill(context.Background(), b.String(), Options{Strategy: StrategyHierarchical})
	s.Require().NoError(err)

	s.Equal(StrategyHierarchical, res.Strategy)
	s.Equal(30, res.EventCount)

	total := 0
	for _, c := range res.Clusters {
		total += c.Size()
	}
	s.Equal(30, total)
}

func (s *PipelineSuite) TestStrategyOverride() {
	s.cfg.Hierarchical = true
	p := s.newPipeline()

	res, err := p.Distill(context.Background(), "ERROR one lonely event", Options{Strategy: StrategyFlat})
	s.Require().NoError(err)
	s.Equal(StrategyFlat, res.Strategy)
}

func (s *PipelineSuite) TestInputTooLarge() {
	s.cfg.MaxInputBytes = 64
	p := s.newPipeline()

	_, err := p.Distill(context.Background(), strings.Repeat("ERROR overflow\n", 100), Options{})
	s.Require().Error(err)
	s.ErrorIs(err, ErrInputTooLarge)

	var perr *PipelineError
	s.Require().ErrorAs(err, &perr)
	s.Equal("preflight", perr.Op)
	s.Equal(64, perr.Context["limit"])
}

func (s *PipelineSuite) TestTooManyEvents() {
	s.cfg.MaxEvents = 5
	p := s.newPipeline()

	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "ERROR event number %d\n", i)
	}

	_, err := p.Distill(context.Background(), b.String(), Options{})
	s.ErrorIs(err, ErrTooManyEvents)
}

func (s *PipelineSuite) TestTimeoutReturnsNoPartialResults() {
	s.cfg.Timeout = time.Nanosecond
	p := s.newPipeline()

	var b strings.Builder
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&b, "ERROR slow grinding event %d with payload\n", i)
	}

	res, err := p.Distill(context.Background(), b.String(), Options{})
	s.Nil(res)
	s.ErrorIs(err, ErrTimeout)
}

func (s *PipelineSuite) TestEmptyInput() {
	p := s.newPipeline()

	res, err := p.Distill(context.Background(), "", Options{})
	s.Require().NoError(err)
	s.Zero(res.EventCount)
	s.Empty(res.Clusters)
}

func (s *PipelineSuite) TestWithoutPool() {
	p := New(s.cfg, -1)
	defer p.Close()

	res, err := p.Distill(context.Background(), "ERROR standalone failure", Options{Strategy: StrategyHierarchical})
	s.Require().NoError(err)
	s.Equal(1, res.EventCount)
}

func TestPipelineErrorFormatting(t *testing.T) {
	id := uuid.New()
	err := newError("cluster", id, ErrTimeout).WithContext("k", "v")

	assert.Contains(t, err.Error(), "distill cluster failed")
	assert.Contains(t, err.Error(), id.String())
	assert.Contains(t, err.Error(), ErrTimeout.Error())
	assert.Equal(t, "v", err.Context["k"])
	assert.ErrorIs(t, err, ErrTimeout)
}
