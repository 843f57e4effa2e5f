package models

// Cluster groups near-duplicate events under a representative template.
// Template and placeholder data are borrowed from the seed event until a
// second member forces a mutation; the owned copies are materialized
// lazily and the seed is never modified. Clusters only ever absorb
// events, never other clusters.
type Cluster struct {
	// Signature is the representative structural signature, taken from
	// the seed event.
	Signature string

	// Members holds the events in join order. Never empty.
	Members []*LogEvent

	// CategoryCounts tracks how many members carry each category.
	CategoryCounts map[string]int

	// PrimaryCategory is the most frequent member category.
	PrimaryCategory string

	// Level records which hierarchical pass formed the cluster; zero for
	// the flat strategy.
	Level int

	seed *LogEvent

	// owned* are nil until the first mutation after the seed.
	ownedTemplate     []string
	ownedPlaceholders map[string][]string
}

// NewCluster creates a cluster seeded by a single event.
func NewCluster(seed *LogEvent) *Cluster {
	return &Cluster{
		Signature:       seed.Signature,
		Members:         []*LogEvent{seed},
		CategoryCounts:  map[string]int{seed.Category: 1},
		PrimaryCategory: seed.Category,
		seed:            seed,
	}
}

// Size returns the number of member events.
func (c *Cluster) Size() int {
	return len(c.Members)
}

// Seed returns the event the cluster was formed around.
func (c *Cluster) Seed() *LogEvent {
	return c.seed
}

// Template returns the cluster's template lines. The returned slice must
// not be modified by callers.
func (c *Cluster) Template() []string {
	if c.ownedTemplate != nil {
		return c.ownedTemplate
	}
	return c.seed.Template
}

// Placeholders returns the merged placeholder map. The returned map must
// not be modified by callers.
func (c *Cluster) Placeholders() map[string][]string {
	if c.ownedPlaceholders != nil {
		return c.ownedPlaceholders
	}
	return c.seed.Placeholders
}

// Add absorbs an event into the cluster: appends it to the member list,
// merges its placeholder values, and promotes the primary category if the
// event's category overtakes the current one.
func (c *Cluster) Add(ev *LogEvent) {
	c.Members = append(c.Members, ev)
	c.mergePlaceholders(ev)

	if c.CategoryCounts == nil {
		c.CategoryCounts = make(map[string]int)
	}
	c.CategoryCounts[ev.Category]++
	if c.CategoryCounts[ev.Category] > c.CategoryCounts[c.PrimaryCategory] {
		c.PrimaryCategory = ev.Category
	}
}

// mergePlaceholders folds an event's captured values into the cluster,
// materializing the owned map on first write.
func (c *Cluster) mergePlaceholders(ev *LogEvent) {
	if len(ev.Placeholders) == 0 {
		return
	}
	if c.ownedPlaceholders == nil {
		c.ownedPlaceholders = make(map[string][]string, len(c.seed.Placeholders))
		for name, values := range c.seed.Placeholders {
			c.ownedPlaceholders[name] = append([]string(nil), values...)
		}
	}
	for name, values := range ev.Placeholders {
		for _, v := range values {
			if !containsString(c.ownedPlaceholders[name], v) {
				c.ownedPlaceholders[name] = append(c.ownedPlaceholders[name], v)
			}
		}
	}
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
