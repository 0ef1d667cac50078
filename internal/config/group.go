package config

import "fmt"

// Group derives the Group set from cfg.Sites, applying the validation
// rules of C1 in order and failing fast on the first violation, naming the
// offending site. Construction order is preserved; stable-sort is not
// required.
func Group(cfg *Config) ([]*Group, error) {
	seen := make(map[string]bool, len(cfg.Sites))
	for _, s := range cfg.Sites {
		if s.ID == "" {
			return nil, fmt.Errorf("config: site has empty id")
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("config: duplicate site id %q", s.ID)
		}
		seen[s.ID] = true
		if s.Offset < 0 {
			return nil, fmt.Errorf("config: site %q has negative offset %d", s.ID, s.Offset)
		}
		if s.Default != StateEmpty && s.Default != StateFilled {
			return nil, fmt.Errorf("config: site %q has invalid default %q", s.ID, s.Default)
		}
	}

	order := make([]string, 0)
	groups := make(map[string]*Group)
	for _, s := range cfg.Sites {
		key := fmt.Sprintf("%s:%d:%d", s.Host, s.Port, s.UnitID)
		g, ok := groups[key]
		if !ok {
			g = &Group{
				Key:       key,
				Host:      s.Host,
				Port:      s.Port,
				UnitID:    s.UnitID,
				MinOffset: s.Offset,
				MaxOffset: s.Offset,
			}
			groups[key] = g
			order = append(order, key)
		}
		g.Sites = append(g.Sites, s)
		if s.Offset < g.MinOffset {
			g.MinOffset = s.Offset
		}
		if s.Offset > g.MaxOffset {
			g.MaxOffset = s.Offset
		}
	}

	result := make([]*Group, 0, len(order))
	for _, key := range order {
		result = append(result, groups[key])
	}
	return result, nil
}
