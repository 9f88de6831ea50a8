package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Company defaults applied by Save.
const (
	DefaultPrimaryColor   = "#1e3a8a"
	DefaultSecondaryColor = "#f59e0b"
	DefaultPlanType       = "basic"
)

// Companies reads and writes company records.
type Companies struct {
	store *partition.Store
	now   func() time.Time
}

func NewCompanies(store *partition.Store) *Companies {
	return &Companies{store: store, now: time.Now}
}

// Get returns the company or ErrNotFound.
func (c *Companies) Get(id string) (schema.Company, error) {
	co, ok, err := partition.Get[schema.Company](c.store, partition.KindCompany, id)
	if err != nil {
		return schema.Company{}, err
	}
	if !ok {
		return schema.Company{}, fmt.Errorf("%w: company %s", schema.ErrNotFound, id)
	}
	return co, nil
}

// Save stores co, filling in an id, colors, plan and creation time when missing.
func (c *Companies) Save(co schema.Company) (schema.Company, error) {
	co.Name = strings.TrimSpace(co.Name)
	if co.Name == "" {
		return schema.Company{}, schema.Required("name")
	}
	if co.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return schema.Company{}, fmt.Errorf("company id: %w", err)
		}
		co.ID = id.String()
	}
	if co.PrimaryColor == "" {
		co.PrimaryColor = DefaultPrimaryColor
	}
	if co.SecondaryColor == "" {
		co.SecondaryColor = DefaultSecondaryColor
	}
	if co.PlanType == "" {
		co.PlanType = DefaultPlanType
	}
	if co.CreatedAt.IsZero() {
		co.CreatedAt = c.now().UTC()
	}
	if err := c.store.Put(partition.KindCompany, co.ID, co); err != nil {
		return schema.Company{}, err
	}
	return co, nil
}
