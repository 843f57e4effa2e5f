package report

import (
	"github.com/goccy/go-json"

	"github.com/thebtf/distill/internal/pipeline"
	"github.com/thebtf/distill/pkg/models"
)

// ClusterJSON is the wire representation of a cluster.
type ClusterJSON struct {
	Template     []string            `json:"template"`
	Placeholders map[string][]string `json:"placeholders,omitempty"`
	Category     string              `json:"category"`
	Signature    string              `json:"signature"`
	Size         int                 `json:"size"`
	Level        int                 `json:"level,omitempty"`
	Score        float64             `json:"score"`
	SampleLines  []string            `json:"sample_lines,omitempty"`
	EventOrders  []int               `json:"event_orders"`
}

// ResultJSON is the wire representation of a completed run.
type ResultJSON struct {
	RunID      string        `json:"run_id"`
	Strategy   string        `json:"strategy"`
	EventCount int           `json:"event_count"`
	InputBytes int           `json:"input_bytes"`
	DurationMS int64         `json:"duration_ms"`
	Clusters   []ClusterJSON `json:"clusters"`
}

// JSON renders the result as an indented JSON document.
func (r *Renderer) JSON(res *pipeline.Result) ([]byte, error) {
	out := ResultJSON{
		RunID:      res.RunID.String(),
		Strategy:   res.Strategy,
		EventCount: res.EventCount,
		InputBytes: res.InputBytes,
		DurationMS: res.Duration.Milliseconds(),
		Clusters:   make([]ClusterJSON, 0, len(res.Clusters)),
	}

	for _, c := range res.Clusters {
		out.Clusters = append(out.Clusters, r.clusterJSON(c))
	}

	return json.MarshalIndent(out, "", "  ")
}

func (r *Renderer) clusterJSON(c *models.Cluster) ClusterJSON {
	orders := make([]int, len(c.Members))
	for i, ev := range c.Members {
		orders[i] = ev.Order
	}

	sample := c.Seed().RawLines
	if len(sample) > r.MaxSampleLines {
		sample = sample[:r.MaxSampleLines]
	}

	return ClusterJSON{
		Template:     c.Template(),
		Placeholders: c.Placeholders(),
		Category:     c.PrimaryCategory,
		Signature:    c.Signature,
		Size:         c.Size(),
		Level:        c.Level,
		Score:        c.Seed().Score,
		SampleLines:  sample,
		EventOrders:  orders,
	}
}
