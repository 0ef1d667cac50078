package config

import "testing"

func TestGroup_SingleSiteForcesLengthOne(t *testing.T) {
	cfg := &Config{
		Sites: []Site{
			{ID: "PICK-01", Host: "10.0.0.1", Port: 502, UnitID: 1, Offset: 9000, Default: StateEmpty},
		},
	}
	groups, err := Group(cfg)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if got := groups[0].Length(); got != 1 {
		t.Errorf("Length() = %d, want 1 for a single-site group regardless of offset", got)
	}
}

func TestGroup_GroupsByHostPortUnit(t *testing.T) {
	cfg := &Config{
		Sites: []Site{
			{ID: "A", Host: "10.0.0.1", Port: 502, UnitID: 1, Offset: 0, Default: StateEmpty},
			{ID: "B", Host: "10.0.0.1", Port: 502, UnitID: 1, Offset: 3, Default: StateFilled},
			{ID: "C", Host: "10.0.0.1", Port: 502, UnitID: 2, Offset: 0, Default: StateEmpty},
			{ID: "D", Host: "10.0.0.2", Port: 502, UnitID: 1, Offset: 0, Default: StateEmpty},
		},
	}
	groups, err := Group(cfg)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	first := groups[0]
	if len(first.Sites) != 2 {
		t.Fatalf("first group has %d sites, want 2", len(first.Sites))
	}
	if first.MinOffset != 0 || first.MaxOffset != 3 {
		t.Errorf("min/max = %d/%d, want 0/3", first.MinOffset, first.MaxOffset)
	}
	if got := first.Length(); got != 4 {
		t.Errorf("Length() = %d, want 4", got)
	}
}

func TestGroup_RejectsDuplicateSiteID(t *testing.T) {
	cfg := &Config{
		Sites: []Site{
			{ID: "A", Host: "h", Port: 502, Offset: 0, Default: StateEmpty},
			{ID: "A", Host: "h", Port: 502, Offset: 1, Default: StateEmpty},
		},
	}
	if _, err := Group(cfg); err == nil {
		t.Fatal("Group() error = nil, want error for duplicate site id")
	}
}

func TestGroup_RejectsEmptySiteID(t *testing.T) {
	cfg := &Config{
		Sites: []Site{
			{ID: "", Host: "h", Port: 502, Offset: 0, Default: StateEmpty},
		},
	}
	if _, err := Group(cfg); err == nil {
		t.Fatal("Group() error = nil, want error for empty site id")
	}
}

func TestGroup_RejectsNegativeOffset(t *testing.T) {
	cfg := &Config{
		Sites: []Site{
			{ID: "A", Host: "h", Port: 502, Offset: -1, Default: StateEmpty},
		},
	}
	if _, err := Group(cfg); err == nil {
		t.Fatal("Group() error = nil, want error for negative offset")
	}
}

func TestGroup_RejectsInvalidDefault(t *testing.T) {
	cfg := &Config{
		Sites: []Site{
			{ID: "A", Host: "h", Port: 502, Offset: 0, Default: "UNKNOWN"},
		},
	}
	if _, err := Group(cfg); err == nil {
		t.Fatal("Group() error = nil, want error for invalid default")
	}
}

func TestGroup_PreservesConstructionOrder(t *testing.T) {
	cfg := &Config{
		Sites: []Site{
			{ID: "Z", Host: "h2", Port: 502, Offset: 0, Default: StateEmpty},
			{ID: "A", Host: "h1", Port: 502, Offset: 0, Default: StateEmpty},
		},
	}
	groups, err := Group(cfg)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if groups[0].Host != "h2" || groups[1].Host != "h1" {
		t.Errorf("groups not in construction order: %v", groups)
	}
}
