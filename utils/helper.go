package utils

import (
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultTimezone is the business-local zone used to pin bare calendar dates.
var DefaultTimezone = "Asia/Yangon"

// locationCache maps timezone name to *time.Location. time.LoadLocation
// returns a fresh pointer on every call, and time.Time values only compare
// equal (as struct values, e.g. map keys) when they share the same location
// pointer.
var locationCache sync.Map

func loadLocation(timezone string) *time.Location {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	if cached, ok := locationCache.Load(timezone); ok {
		return cached.(*time.Location)
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		location = time.UTC
	}
	locationCache.Store(timezone, location)
	return location
}

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

// ProcessValidationErrors flattens binding failures into a field->tag map.
// Bind errors that are not validator.ValidationErrors (malformed JSON, type
// mismatches) come through here too and get a single generic entry.
func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["request"] = err.Error()
		return errorResponse
	}

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// NormalizeTransactionDate pins a bare calendar date to noon in the business
// timezone before storing as UTC. A date entered as "2024-03-05" must stay on
// March 5 no matter which zone later renders it; midnight UTC would drift a day
// for most offsets.
func NormalizeTransactionDate(t time.Time, timezone string) time.Time {
	location := loadLocation(timezone)
	localTime := t.In(location)
	pinned := time.Date(localTime.Year(), localTime.Month(), localTime.Day(), 12, 0, 0, 0, location)
	return pinned.UTC()
}

// ConvertToDate truncates to the calendar day in the given timezone. Results
// for the same day share one location pointer, so they are usable as map keys.
func ConvertToDate(t time.Time, timezone string) time.Time {
	location := loadLocation(timezone)
	localTime := t.In(location)
	return time.Date(localTime.Year(), localTime.Month(), localTime.Day(), 0, 0, 0, 0, location)
}
