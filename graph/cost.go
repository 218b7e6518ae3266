package graph

import (
	"sync"

	"github.com/dshills/researchflow-go/graph/model"
)

// Pricing is the cost per million tokens for one model.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// CostTracker accumulates model token usage and estimated spend per model.
// Safe for concurrent use; pipeline nodes and research workers record into
// a shared tracker.
type CostTracker struct {
	mu      sync.Mutex
	pricing map[string]Pricing
	usage   map[string]model.Usage
}

// NewCostTracker creates a tracker with the given pricing table. Models
// absent from the table still accumulate token counts, just with zero cost.
func NewCostTracker(pricing map[string]Pricing) *CostTracker {
	if pricing == nil {
		pricing = map[string]Pricing{}
	}
	return &CostTracker{
		pricing: pricing,
		usage:   make(map[string]model.Usage),
	}
}

// Record accumulates usage for the named model.
func (c *CostTracker) Record(modelName string, u model.Usage) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.usage[modelName]
	total.InputTokens += u.InputTokens
	total.OutputTokens += u.OutputTokens
	c.usage[modelName] = total
}

// Usage returns accumulated token counts by model.
func (c *CostTracker) Usage() map[string]model.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]model.Usage, len(c.usage))
	for k, v := range c.usage {
		out[k] = v
	}
	return out
}

// TotalCostUSD estimates total spend across all recorded models.
func (c *CostTracker) TotalCostUSD() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for name, u := range c.usage {
		p := c.pricing[name]
		total += float64(u.InputTokens) / 1e6 * p.InputPerMTok
		total += float64(u.OutputTokens) / 1e6 * p.OutputPerMTok
	}
	return total
}
