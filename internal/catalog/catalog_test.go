package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalobadob/globetrotter/internal/apperr"
	"github.com/robalobadob/globetrotter/internal/store"
)

func ptr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory(), nil)

	d, err := svc.Create(ctx, Input{City: "  Paris ", Country: "France", Clues: []string{"tower"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.City != "Paris" {
		t.Errorf("City = %q, want trimmed", d.City)
	}
	if d.FunFacts == nil || d.Trivia == nil {
		t.Error("missing lists should default to empty, not nil")
	}

	got, err := svc.Get(ctx, d.ID)
	if err != nil || got.Name() != "Paris, France" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := svc.Get(ctx, "missing"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Get missing: err = %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(store.NewMemory(), nil)
	tests := []struct {
		name string
		in   Input
	}{
		{"no city", Input{Country: "France"}},
		{"blank country", Input{City: "Paris", Country: "   "}},
		{"bad url", Input{City: "Paris", Country: "France", ImageURL: ptr("nope")}},
		{"empty clue", Input{City: "Paris", Country: "France", Clues: []string{""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.in); !apperr.Is(err, apperr.InvalidArgument) {
				t.Errorf("err = %v, want InvalidArgument", err)
			}
		})
	}
}

func TestUpdatePartial(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory(), nil)
	d, _ := svc.Create(ctx, Input{City: "Paris", Country: "France", Clues: []string{"tower"}})

	got, err := svc.Update(ctx, d.ID, Patch{Country: ptr("FR")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.City != "Paris" || got.Country != "FR" || len(got.Clues) != 1 {
		t.Errorf("Update = %+v", got)
	}

	if _, err := svc.Update(ctx, d.ID, Patch{City: ptr("  ")}); !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("blank city: err = %v", err)
	}
	if _, err := svc.Update(ctx, "missing", Patch{City: ptr("x")}); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing: err = %v", err)
	}
}

func TestRandom(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory(), nil)
	if _, err := svc.Random(ctx); !apperr.Is(err, apperr.NoContent) {
		t.Fatalf("empty catalog: err = %v", err)
	}
	d, _ := svc.Create(ctx, Input{City: "Paris", Country: "France"})
	got, err := svc.Random(ctx)
	if err != nil || got.ID != d.ID {
		t.Errorf("Random = %+v, %v", got, err)
	}
}

func TestBulkCreate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory(), nil)

	if _, err := svc.BulkCreate(ctx, nil); !apperr.Is(err, apperr.InvalidArgument) ||
		apperr.Message(err) != "No valid destinations provided" {
		t.Fatalf("empty input: err = %v", err)
	}

	res, err := svc.BulkCreate(ctx, []Input{
		{City: "Paris", Country: "France"},
		{City: "Tokyo", Country: "Japan"},
		{City: "", Country: "Nowhere"},
		{City: "Rome", Country: "Italy"},
		{City: "Cairo"},
	})
	if err != nil {
		t.Fatalf("BulkCreate: %v", err)
	}
	if res.Created != 3 || res.Failed != 2 {
		t.Errorf("created=%d failed=%d, want 3 and 2", res.Created, res.Failed)
	}
	if res.Message != "Successfully created 3 destinations. Failed: 2" {
		t.Errorf("message = %q", res.Message)
	}
	if n, _ := svc.store.Destinations().Count(ctx); n != 3 {
		t.Errorf("catalog size = %d, want 3", n)
	}
}

func TestSeedEmbeddedDefaults(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory(), nil)

	inputs, err := LoadSeed("")
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(inputs) == 0 {
		t.Fatal("embedded catalog is empty")
	}

	seeded, err := svc.Seed(ctx, inputs)
	if err != nil || !seeded {
		t.Fatalf("Seed = %v, %v", seeded, err)
	}
	n, _ := svc.store.Destinations().Count(ctx)
	if n != len(inputs) {
		t.Errorf("catalog size = %d, want %d", n, len(inputs))
	}

	seeded, err = svc.Seed(ctx, inputs)
	if err != nil || seeded {
		t.Errorf("second Seed = %v, %v; want no-op", seeded, err)
	}
}

func TestLoadSeedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dest.json")
	if err := os.WriteFile(path, []byte(`[{"city":"Lima","country":"Peru","clues":["ceviche"]}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	inputs, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(inputs) != 1 || inputs[0].City != "Lima" || len(inputs[0].Clues) != 1 {
		t.Errorf("LoadSeed = %+v", inputs)
	}

	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestDailyIsStableWithinADay(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory(), nil).WithDailySalt("test")
	if _, _, err := svc.Daily(ctx); !apperr.Is(err, apperr.NoContent) {
		t.Fatalf("empty catalog: err = %v", err)
	}
	inputs, err := LoadSeed("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Seed(ctx, inputs); err != nil {
		t.Fatal(err)
	}

	day := time.Date(2026, 7, 4, 0, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return day }
	first, date, err := svc.Daily(ctx)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if date != "2026-07-04" {
		t.Errorf("date = %q", date)
	}

	svc.now = func() time.Time { return day.Add(20 * time.Hour) }
	again, _, err := svc.Daily(ctx)
	if err != nil || again.ID != first.ID {
		t.Errorf("pick changed within the day: %v vs %v (%v)", first.ID, again.ID, err)
	}
}
