package economy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultJobID = "unemployed"

type JobDefinition struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	BaseSalary       int64           `json:"base_salary"`
	IncomeMultiplier decimal.Decimal `json:"income_multiplier"`
}

// PurchaseCost is what changing into this job costs.
func (j JobDefinition) PurchaseCost() int64 {
	return j.BaseSalary * JobCostFactor
}

// Earnings applies the job to a raw work roll: floor((roll + salary) * multiplier).
func (j JobDefinition) Earnings(roll int64) int64 {
	return decimal.NewFromInt(roll + j.BaseSalary).Mul(j.IncomeMultiplier).Floor().IntPart()
}

// Catalog is the immutable job table. Build it once at startup and share the pointer.
type Catalog struct {
	jobs  map[string]JobDefinition
	order []string
}

func NewCatalog(defs []JobDefinition) (*Catalog, error) {
	c := &Catalog{jobs: make(map[string]JobDefinition, len(defs))}
	for _, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, fmt.Errorf("job id is required")
		}
		if _, dup := c.jobs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate job %q", d.ID)
		}
		if d.BaseSalary < 0 {
			return nil, fmt.Errorf("job %q: base salary must be >= 0", d.ID)
		}
		if !d.IncomeMultiplier.IsPositive() {
			return nil, fmt.Errorf("job %q: income multiplier must be > 0", d.ID)
		}
		c.jobs[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	def, ok := c.jobs[DefaultJobID]
	if !ok {
		return nil, fmt.Errorf("catalog must contain the default job %q", DefaultJobID)
	}
	if def.BaseSalary != 0 {
		return nil, fmt.Errorf("default job %q must have zero salary", DefaultJobID)
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.jobs[c.order[i]].PurchaseCost() < c.jobs[c.order[j]].PurchaseCost()
	})
	return c, nil
}

func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]JobDefinition{
		{ID: DefaultJobID, Title: "Home guard", BaseSalary: 0, IncomeMultiplier: decimal.NewFromInt(1)},
		{ID: "dishwasher", Title: "Dishwasher", BaseSalary: 1_000, IncomeMultiplier: decimal.RequireFromString("1.1")},
		{ID: "clerk", Title: "Night-shift clerk", BaseSalary: 2_500, IncomeMultiplier: decimal.RequireFromString("1.2")},
		{ID: "engineer", Title: "Engineer", BaseSalary: 5_000, IncomeMultiplier: decimal.RequireFromString("1.5")},
		{ID: "oil_baron", Title: "Oil baron", BaseSalary: 50_000, IncomeMultiplier: decimal.NewFromInt(3)},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Get never fails: unknown ids fall back to the default job.
func (c *Catalog) Get(id string) JobDefinition {
	if j, ok := c.jobs[id]; ok {
		return j
	}
	return c.jobs[DefaultJobID]
}

// Lookup is the strict variant used when a member picks a job.
func (c *Catalog) Lookup(id string) (JobDefinition, error) {
	j, ok := c.jobs[strings.TrimSpace(id)]
	if !ok {
		return JobDefinition{}, fmt.Errorf("%w: %q", ErrUnknownJob, id)
	}
	return j, nil
}

// List returns all jobs ordered by purchase cost.
func (c *Catalog) List() []JobDefinition {
	out := make([]JobDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.jobs[id])
	}
	return out
}
