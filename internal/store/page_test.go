package store

import "testing"

func TestPaginateLengths(t *testing.T) {
	t.Parallel()

	for total := 0; total <= 45; total++ {
		items := make([]int, total)
		for i := range items {
			items[i] = i
		}
		for _, size := range []int{1, 7, 10, 20} {
			wantPages := (total + size - 1) / size
			if wantPages < 1 {
				wantPages = 1
			}
			for page := 1; page <= wantPages+1; page++ {
				p := Paginate(items, ListParams{Page: page, Size: size})
				if p.TotalPages != wantPages {
					t.Fatalf("total=%d size=%d: pages=%d want %d", total, size, p.TotalPages, wantPages)
				}
				wantLen := min(size, total-(page-1)*size)
				if wantLen < 0 {
					wantLen = 0
				}
				if len(p.Content) != wantLen {
					t.Fatalf("total=%d size=%d page=%d: len=%d want %d", total, size, page, len(p.Content), wantLen)
				}
				if wantLen > 0 && p.Content[0] != (page-1)*size {
					t.Fatalf("total=%d size=%d page=%d: first=%d", total, size, page, p.Content[0])
				}
			}
		}
	}
}

func TestListParamsNormalized(t *testing.T) {
	t.Parallel()

	p := ListParams{Page: -3, Size: 500, Query: "  figma ", Sort: " Name "}.Normalized()
	if p.Page != 1 || p.Size != MaxPageSize || p.Query != "figma" || p.Sort != "name" {
		t.Fatalf("Normalized = %+v", p)
	}
	if got := (ListParams{}).Normalized().Size; got != DefaultPageSize {
		t.Fatalf("default size = %d", got)
	}
	if got := (ListParams{Page: 3, Size: 10}).Offset(); got != 20 {
		t.Fatalf("Offset = %d", got)
	}
}

func TestParseSort(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw      string
		field    string
		wantDesc bool
	}{
		{"name,asc", "name", false},
		{"Cost,DESC", "cost", true},
		{"renewal", "renewal", false},
		{"", "", false},
	}
	for _, tc := range cases {
		field, desc := ParseSort(tc.raw)
		if field != tc.field || desc != tc.wantDesc {
			t.Fatalf("ParseSort(%q) = %q,%v", tc.raw, field, desc)
		}
	}
}

func TestWithFilterCopies(t *testing.T) {
	t.Parallel()

	base := ListParams{Filters: map[string]string{"status": "active"}}
	next := base.WithFilter("category", "3")
	if base.Filter("category") != "" {
		t.Fatalf("WithFilter mutated the original")
	}
	if next.Filter("status") != "active" || next.Filter("category") != "3" {
		t.Fatalf("filters = %v", next.Filters)
	}
}
