// Package report renders distillation results for consumption by agents
// with limited context: a category-grouped Markdown summary or a JSON
// document, annotated with the token cost of the rendered text.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/thebtf/distill/internal/pipeline"
	"github.com/thebtf/distill/pkg/models"
)

// Renderer formats pipeline results.
type Renderer struct {
	// MaxSampleLines bounds the raw-line sample shown per cluster.
	MaxSampleLines int

	// MaxVariableValues bounds the captured values listed per placeholder.
	MaxVariableValues int

	// MaxUniqueEvents bounds the rare-events tail.
	MaxUniqueEvents int
}

// NewRenderer returns a Renderer with the default bounds.
func NewRenderer() *Renderer {
	return &Renderer{
		MaxSampleLines:    3,
		MaxVariableValues: 5,
		MaxUniqueEvents:   15,
	}
}

// Markdown renders the category-grouped summary: header stats, one
// section per category with its clusters, and a tail of unique events.
func (r *Renderer) Markdown(res *pipeline.Result) string {
	var b strings.Builder

	grouped, unique := splitClusters(res.Clusters)

	fmt.Fprintf(&b, "# Log distillation\n\n")
	fmt.Fprintf(&b, "- %d events in %d bytes of input\n", res.EventCount, res.InputBytes)
	fmt.Fprintf(&b, "- %d clusters (%d repeated, %d unique), strategy %s\n",
		len(res.Clusters), len(res.Clusters)-len(unique), len(unique), res.Strategy)
	if res.EventCount > 0 {
		fmt.Fprintf(&b, "- compression %.1fx\n", float64(res.EventCount)/float64(maxInt(len(res.Clusters), 1)))
	}
	fmt.Fprintf(&b, "- run %s in %s\n", res.RunID, res.Duration.Round(time.Millisecond))

	for _, cat := range orderedCategories(grouped) {
		clusters := grouped[cat]
		events := 0
		for _, c := range clusters {
			events += c.Size()
		}
		fmt.Fprintf(&b, "\n## %s (%d clusters, %d events)\n", cat, len(clusters), events)
		for i, c := range clusters {
			r.writeCluster(&b, i+1, c)
		}
	}

	if len(unique) > 0 {
		fmt.Fprintf(&b, "\n## Unique events (%d)\n\n", len(unique))
		for i, c := range unique {
			if i >= r.MaxUniqueEvents {
				fmt.Fprintf(&b, "- ... and %d more\n", len(unique)-i)
				break
			}
			fmt.Fprintf(&b, "- [%s] %s\n", c.PrimaryCategory, firstLine(c.Template()))
		}
	}

	return b.String()
}

// writeCluster renders one cluster: template, captured variables, and a
// sample of the seed's raw lines.
func (r *Renderer) writeCluster(b *strings.Builder, n int, c *models.Cluster) {
	fmt.Fprintf(b, "\n### Cluster %d: %d events (score %.1f)\n\n", n, c.Size(), c.Seed().Score)

	b.WriteString("```\n")
	for _, line := range c.Template() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("```\n")

	placeholders := c.Placeholders()
	if len(placeholders) > 0 {
		b.WriteString("\nVariables:\n")
		for _, name := range sortedKeys(placeholders) {
			values := placeholders[name]
			shown := values
			if len(shown) > r.MaxVariableValues {
				shown = shown[:r.MaxVariableValues]
			}
			fmt.Fprintf(b, "- `<%s>` (%d): %s", name, len(values), "`"+strings.Join(shown, "`, `")+"`")
			if len(values) > len(shown) {
				fmt.Fprintf(b, ", ...")
			}
			b.WriteByte('\n')
		}
	}

	if r.MaxSampleLines > 0 && len(c.Seed().RawLines) > 0 {
		b.WriteString("\nSample:\n```\n")
		for i, line := range c.Seed().RawLines {
			if i >= r.MaxSampleLines {
				break
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("```\n")
	}
}

// splitClusters separates repeated clusters, grouped by primary
// category, from single-event ones.
func splitClusters(clusters []*models.Cluster) (map[string][]*models.Cluster, []*models.Cluster) {
	grouped := make(map[string][]*models.Cluster)
	var unique []*models.Cluster
	for _, c := range clusters {
		if c.Size() == 1 {
			unique = append(unique, c)
			continue
		}
		grouped[c.PrimaryCategory] = append(grouped[c.PrimaryCategory], c)
	}
	return grouped, unique
}

// orderedCategories sorts categories by total event count descending,
// name ascending on ties, with "Other" always last.
func orderedCategories(grouped map[string][]*models.Cluster) []string {
	totals := make(map[string]int, len(grouped))
	names := make([]string, 0, len(grouped))
	for cat, clusters := range grouped {
		names = append(names, cat)
		for _, c := range clusters {
			totals[cat] += c.Size()
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == "Other") != (names[j] == "Other") {
			return names[j] == "Other"
		}
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
