package validator

import (
	"testing"

	"lastbite/pkg/logger"
	"lastbite/pkg/model"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
}

func validStore() *model.Store {
	return &model.Store{
		OwnerID: "user-1",
		Name:    "corner bakery",
		Address: "12 Main St",
		City:    "lisbon",
		Phone:   "+14155550123",
		Location: model.GeoPoint{
			Type:        "Point",
			Coordinates: []float64{-9.139, 38.722},
		},
	}
}

func TestValidate_ValidStore(t *testing.T) {
	v := NewStoreValidator(testLogger())

	store := validStore()
	store.OpeningHours = map[string]string{
		"monday":  "08:00-20:00",
		"tuesday": "08:00-20:00",
		"sunday":  "closed",
	}

	if err := v.Validate(store); err != nil {
		t.Fatalf("expected valid store, got error: %v", err)
	}
}

func TestValidate_GeoCoordinates(t *testing.T) {
	v := NewStoreValidator(testLogger())

	tests := []struct {
		name    string
		coords  []float64
		geoType string
		wantErr bool
	}{
		{"valid point", []float64{-9.139, 38.722}, "Point", false},
		{"boundary longitude", []float64{180, 0}, "Point", false},
		{"boundary latitude", []float64{0, -90}, "Point", false},
		{"longitude too high", []float64{180.1, 0}, "Point", true},
		{"latitude too low", []float64{0, -90.1}, "Point", true},
		{"one coordinate", []float64{10}, "Point", true},
		{"three coordinates", []float64{10, 20, 30}, "Point", true},
		{"wrong type", []float64{-9.139, 38.722}, "LineString", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := validStore()
			store.Location = model.GeoPoint{Type: tt.geoType, Coordinates: tt.coords}

			err := v.Validate(store)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidate_OpeningHours(t *testing.T) {
	v := NewStoreValidator(testLogger())

	tests := []struct {
		name    string
		hours   map[string]string
		wantErr bool
	}{
		{"empty map allowed", map[string]string{}, false},
		{"valid window", map[string]string{"friday": "09:30-18:00"}, false},
		{"closed day", map[string]string{"sunday": "closed"}, false},
		{"closed case insensitive", map[string]string{"sunday": "Closed"}, false},
		{"unknown day", map[string]string{"caturday": "09:00-18:00"}, true},
		{"missing dash", map[string]string{"monday": "09:00 18:00"}, true},
		{"hour out of range", map[string]string{"monday": "25:00-26:00"}, true},
		{"minute out of range", map[string]string{"monday": "09:61-18:00"}, true},
		{"non-numeric", map[string]string{"monday": "ab:cd-18:00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := validStore()
			store.OpeningHours = tt.hours

			err := v.Validate(store)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidate_TranslatedMessages(t *testing.T) {
	v := NewStoreValidator(testLogger())

	store := validStore()
	store.Name = ""
	store.Phone = "12345"

	err := v.Validate(store)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d: %v", len(verrs), verrs)
	}
}
