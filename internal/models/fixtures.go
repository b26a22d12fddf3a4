package models

import (
	"errors"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// Fixtures are the payloads a smoke run submits.
type Fixtures struct {
	User           UserPayload           `json:"user"`
	Classification ClassificationPayload `json:"classification"`
	Truck          TruckPayload          `json:"truck"`
}

// RunEmail derives a per-run unique address from the wall clock.
func RunEmail(now time.Time) string {
	return fmt.Sprintf("test_%d@example.com", now.Unix())
}

// DefaultFixtures returns the stock payloads with a run-unique user email.
func DefaultFixtures(now time.Time) Fixtures {
	return Fixtures{
		User: UserPayload{
			Name:        "Test User",
			Email:       RunEmail(now),
			PhoneNumber: "9876543210",
			Role:        RoleUser,
		},
		Classification: ClassificationPayload{
			WasteType:  WasteRecyclable,
			Confidence: 87.5,
			Location: &Location{
				Latitude:  28.7041,
				Longitude: 77.1025,
				Address:   "Delhi, India",
			},
			Weight: 2.5,
		},
		Truck: TruckPayload{
			TruckID:   "TRK001",
			TruckName: "Delhi Waste Truck 1",
			Latitude:  28.7041,
			Longitude: 77.1025,
			Status:    TruckActive,
			WasteLoad: 65,
			WasteType: WasteMixed,
			Route:     "Route A",
			Speed:     30,
		},
	}
}

// LoadFixtures overlays the YAML (or JSON) file at path onto the defaults.
// An empty path yields the defaults. Fields absent from the file keep their
// default values; an explicitly empty email is replaced by a run-unique one.
func LoadFixtures(path string, now time.Time) (Fixtures, error) {
	fx := DefaultFixtures(now)
	if path == "" {
		return fx, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &fx); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	if fx.User.Email == "" {
		fx.User.Email = RunEmail(now)
	}
	if err := fx.Validate(); err != nil {
		return Fixtures{}, fmt.Errorf("validate fixtures: %w", err)
	}
	return fx, nil
}

// Validate applies the same bounds the backend's schema enforces so a bad
// fixtures file fails fast instead of showing up as a 400 mid-run.
func (f Fixtures) Validate() error {
	var errs []error
	if f.User.Name == "" {
		errs = append(errs, errors.New("user.name is required"))
	}
	if f.User.Role != "" && !oneOf(f.User.Role, RoleUser, RoleAdmin, RoleCollector) {
		errs = append(errs, fmt.Errorf("user.role %q is not a known role", f.User.Role))
	}
	c := f.Classification
	if !oneOf(c.WasteType, WasteBiodegradable, WasteRecyclable, WasteHazardous, WasteUnknown) {
		errs = append(errs, fmt.Errorf("classification.wasteType %q is not a known type", c.WasteType))
	}
	if c.Confidence < 0 || c.Confidence > 100 {
		errs = append(errs, fmt.Errorf("classification.confidence %v out of range 0..100", c.Confidence))
	}
	if c.Weight < 0 {
		errs = append(errs, fmt.Errorf("classification.weight %v is negative", c.Weight))
	}
	if c.Location != nil {
		if err := checkCoords("classification.location", c.Location.Latitude, c.Location.Longitude); err != nil {
			errs = append(errs, err)
		}
	}
	t := f.Truck
	if t.TruckID == "" || t.TruckName == "" {
		errs = append(errs, errors.New("truck.truckId and truck.truckName are required"))
	}
	if err := checkCoords("truck", t.Latitude, t.Longitude); err != nil {
		errs = append(errs, err)
	}
	if t.Status != "" && !oneOf(t.Status, TruckActive, TruckInactive, TruckMaintenance) {
		errs = append(errs, fmt.Errorf("truck.status %q is not a known status", t.Status))
	}
	if t.WasteLoad < 0 || t.WasteLoad > 100 {
		errs = append(errs, fmt.Errorf("truck.wasteLoad %d out of range 0..100", t.WasteLoad))
	}
	if !oneOf(t.WasteType, WasteBiodegradable, WasteRecyclable, WasteHazardous, WasteMixed) {
		errs = append(errs, fmt.Errorf("truck.wasteType %q is not a known type", t.WasteType))
	}
	if t.Speed < 0 {
		errs = append(errs, fmt.Errorf("truck.speed %v is negative", t.Speed))
	}
	return errors.Join(errs...)
}

func checkCoords(field string, lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%s.latitude %v out of range", field, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%s.longitude %v out of range", field, lng)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
