package pagination

import (
	"testing"
	"time"
)

func TestPageRequest_Defaults(t *testing.T) {
	p := PageRequest{}
	p.Defaults()
	if p.Page != 1 || p.PageSize != 20 {
		t.Errorf("expected page 1 size 20, got %d/%d", p.Page, p.PageSize)
	}
	p = PageRequest{Page: 3, PageSize: 10}
	if p.Offset() != 20 {
		t.Errorf("expected offset 20, got %d", p.Offset())
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[string](nil, 1, 20, 41)
	if resp.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", resp.TotalPages)
	}
	if resp.Data == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestDateRange(t *testing.T) {
	now := time.Date(2026, 10, 15, 18, 30, 0, 0, time.UTC)

	r := DateRange{}
	r.Defaults(now)
	if r.To != "2026-10-15" || r.From != "2026-09-15" {
		t.Errorf("unexpected defaults %+v", r)
	}

	start, end, err := DateRange{From: "2026-10-01", To: "2026-10-03"}.Bounds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !start.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2026, 10, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected end to be exclusive next midnight, got %s", end)
	}

	if _, _, err := (DateRange{From: "10/01/2026", To: "2026-10-03"}).Bounds(); err == nil {
		t.Error("expected malformed date to fail")
	}
}
