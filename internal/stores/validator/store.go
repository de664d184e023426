package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"lastbite/pkg/logger"
	"lastbite/pkg/model"
)

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type StoreValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewStoreValidator(log *logger.Logger) *StoreValidator {
	v := validator.New()

	if err := v.RegisterValidation("geo_coordinates", validateGeoCoordinates); err != nil {
		log.Fatal("Failed to register 'geo_coordinates' validator",
			"error", err,
		)
	}
	if err := v.RegisterValidation("opening_hours", validateOpeningHours); err != nil {
		log.Fatal("Failed to register 'opening_hours' validator",
			"error", err,
		)
	}

	return &StoreValidator{
		validate: v,
		logger:   log,
	}
}

// validateGeoCoordinates checks a [longitude, latitude] pair against the
// GeoJSON ranges.
func validateGeoCoordinates(fl validator.FieldLevel) bool {
	coords, ok := fl.Field().Interface().([]float64)
	if !ok || len(coords) != 2 {
		return false
	}
	lng, lat := coords[0], coords[1]
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// validateOpeningHours accepts entries like "monday": "08:00-20:00" or
// "sunday": "closed".
func validateOpeningHours(fl validator.FieldLevel) bool {
	hours, ok := fl.Field().Interface().(map[string]string)
	if !ok {
		return false
	}

	for day, window := range hours {
		if !weekdays[strings.ToLower(day)] {
			return false
		}
		if strings.EqualFold(window, "closed") {
			continue
		}
		parts := strings.Split(window, "-")
		if len(parts) != 2 || !isClockTime(parts[0]) || !isClockTime(parts[1]) {
			return false
		}
	}
	return true
}

func isClockTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return hh <= 23 && mm <= 59
}

func (v *StoreValidator) Validate(store *model.Store) error {
	if err := v.validate.Struct(store); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return nil
}

func (v *StoreValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +14155550123)", err.Field())
		case "eq":
			message = fmt.Sprintf("%s must be %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must have exactly %s elements", err.Field(), err.Param())
		case "geo_coordinates":
			message = fmt.Sprintf("%s must be [longitude, latitude] within valid ranges", err.Field())
		case "opening_hours":
			message = fmt.Sprintf("%s must map weekdays to HH:MM-HH:MM windows or 'closed'", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
