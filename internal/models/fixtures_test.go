package models

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fixtures.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestDefaultFixturesAreValid(t *testing.T) {
	now := time.Unix(1700000000, 0)
	fx := DefaultFixtures(now)
	if err := fx.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if fx.User.Email != "test_1700000000@example.com" {
		t.Fatalf("email %q", fx.User.Email)
	}
	if fx.Truck.TruckID != "TRK001" || fx.Truck.WasteLoad != 65 {
		t.Fatalf("truck defaults %+v", fx.Truck)
	}
}

func TestLoadFixturesEmptyPath(t *testing.T) {
	now := time.Unix(42, 0)
	fx, err := LoadFixtures("", now)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fx.User.Email != RunEmail(now) {
		t.Fatalf("email %q", fx.User.Email)
	}
}

func TestLoadFixturesOverlaysDefaults(t *testing.T) {
	p := writeFile(t, `
truck:
  truckId: TRK042
  truckName: Pune Truck
  wasteLoad: 10
classification:
  wasteType: hazardous
`)
	fx, err := LoadFixtures(p, time.Unix(99, 0))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fx.Truck.TruckID != "TRK042" || fx.Truck.WasteLoad != 10 {
		t.Fatalf("truck not overridden: %+v", fx.Truck)
	}
	if fx.Truck.Route != "Route A" {
		t.Fatalf("unset field should keep default, got %q", fx.Truck.Route)
	}
	if fx.Classification.WasteType != WasteHazardous || fx.Classification.Confidence != 87.5 {
		t.Fatalf("classification %+v", fx.Classification)
	}
	if fx.User.Email != "test_99@example.com" {
		t.Fatalf("email %q", fx.User.Email)
	}
}

func TestLoadFixturesRejectsUnknownFields(t *testing.T) {
	p := writeFile(t, "truck:\n  colour: green\n")
	if _, err := LoadFixtures(p, time.Now()); err == nil {
		t.Fatalf("expected strict decode error")
	}
}

func TestLoadFixturesValidates(t *testing.T) {
	p := writeFile(t, "truck:\n  wasteLoad: 140\n  latitude: 91\n")
	_, err := LoadFixtures(p, time.Now())
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"wasteLoad", "latitude"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %s", err, want)
		}
	}
}

func TestLoadFixturesMissingFile(t *testing.T) {
	if _, err := LoadFixtures(filepath.Join(t.TempDir(), "nope.yaml"), time.Now()); err == nil {
		t.Fatalf("expected read error")
	}
}
