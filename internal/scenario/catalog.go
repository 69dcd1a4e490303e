package scenario

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// OutsiderRole is dealt to the outsider instead of a scenario role, so no
// scenario may use it.
const OutsiderRole = "Outsider"

// Scenario is a named setting and the role labels dealt to the players who
// know it.
type Scenario struct {
	Name  string
	Roles []string
}

// Catalog is the immutable table of scenarios a room draws from.
type Catalog struct {
	scenarios []Scenario
	byName    map[string]int
}

// NewCatalog validates the given scenarios and copies them into a catalog.
// Names must be unique and every scenario needs at least one role.
func NewCatalog(scenarios []Scenario) (*Catalog, error) {
	if len(scenarios) == 0 {
		return nil, errors.New("catalog has no scenarios")
	}
	catalog := &Catalog{
		scenarios: make([]Scenario, 0, len(scenarios)),
		byName:    make(map[string]int, len(scenarios)),
	}
	for _, entry := range scenarios {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, errors.New("scenario name is required")
		}
		if _, exists := catalog.byName[name]; exists {
			return nil, fmt.Errorf("duplicate scenario %q", name)
		}
		if len(entry.Roles) == 0 {
			return nil, fmt.Errorf("scenario %q has no roles", name)
		}
		roles := make([]string, 0, len(entry.Roles))
		seen := make(map[string]struct{}, len(entry.Roles))
		for _, role := range entry.Roles {
			role = strings.TrimSpace(role)
			if role == "" {
				return nil, fmt.Errorf("scenario %q has an empty role", name)
			}
			if role == OutsiderRole {
				return nil, fmt.Errorf("scenario %q uses reserved role %q", name, role)
			}
			if _, dup := seen[role]; dup {
				return nil, fmt.Errorf("scenario %q repeats role %q", name, role)
			}
			seen[role] = struct{}{}
			roles = append(roles, role)
		}
		catalog.byName[name] = len(catalog.scenarios)
		catalog.scenarios = append(catalog.scenarios, Scenario{Name: name, Roles: roles})
	}
	return catalog, nil
}

// MustCatalog is NewCatalog for tables known to be valid at compile time.
func MustCatalog(scenarios []Scenario) *Catalog {
	catalog, err := NewCatalog(scenarios)
	if err != nil {
		panic(err)
	}
	return catalog
}

func (c *Catalog) Len() int {
	return len(c.scenarios)
}

// At returns the scenario at index i in load order.
func (c *Catalog) At(i int) Scenario {
	entry := c.scenarios[i]
	return Scenario{Name: entry.Name, Roles: append([]string(nil), entry.Roles...)}
}

func (c *Catalog) Lookup(name string) (Scenario, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Scenario{}, false
	}
	return c.At(i), true
}

// Names lists scenario names only, sorted. Role contents are never exposed
// through this call.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.scenarios))
	for _, entry := range c.scenarios {
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	return names
}

// MinRoles is the smallest role list in the catalog. A room holding more than
// MinRoles+1 players could draw a scenario without enough roles.
func (c *Catalog) MinRoles() int {
	smallest := 0
	for i, entry := range c.scenarios {
		if i == 0 || len(entry.Roles) < smallest {
			smallest = len(entry.Roles)
		}
	}
	return smallest
}

// Capacity is the largest room this catalog can always deal roles for.
func (c *Catalog) Capacity() int {
	return c.MinRoles() + 1
}
