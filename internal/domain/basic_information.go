package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinAge           = 18
	MaxAge           = 125
	MaxNameLength    = 50
	MaxAddressLength = 100
	MaxCityLength    = 50
)

// Gender is one of a fixed pair of values.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// ParseGender accepts either value regardless of case.
func ParseGender(raw string) Result[Gender] {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male":
		return Success(GenderMale)
	case "female":
		return Success(GenderFemale)
	}
	return Failure[Gender](NewError(InvalidInput, "gender must be Male or Female").WithDetails(raw))
}

// BasicInformationInput is the raw form of a profile's personal details.
type BasicInformationInput struct {
	FirstName   string
	LastName    string
	Address     string
	City        string
	DateOfBirth time.Time
	Gender      string
}

// BasicInformation is the validated personal detail block of a profile.
type BasicInformation struct {
	firstName   string
	lastName    string
	address     string
	city        string
	dateOfBirth time.Time
	gender      Gender
}

// NewBasicInformation validates every field against now and reports all
// violations at once.
func NewBasicInformation(in BasicInformationInput, now time.Time) Result[BasicInformation] {
	var errs []Error

	first := strings.TrimSpace(in.FirstName)
	if n := utf8.RuneCountInString(first); n == 0 || n > MaxNameLength {
		errs = append(errs, NewError(InvalidInput, fmt.Sprintf("first name must be between 1 and %d characters", MaxNameLength)))
	}
	last := strings.TrimSpace(in.LastName)
	if n := utf8.RuneCountInString(last); n == 0 || n > MaxNameLength {
		errs = append(errs, NewError(InvalidInput, fmt.Sprintf("last name must be between 1 and %d characters", MaxNameLength)))
	}
	address := strings.TrimSpace(in.Address)
	if utf8.RuneCountInString(address) > MaxAddressLength {
		errs = append(errs, NewError(InvalidInput, fmt.Sprintf("address must be at most %d characters", MaxAddressLength)))
	}
	city := strings.TrimSpace(in.City)
	if utf8.RuneCountInString(city) > MaxCityLength {
		errs = append(errs, NewError(InvalidInput, fmt.Sprintf("city must be at most %d characters", MaxCityLength)))
	}

	dob := truncateToDate(in.DateOfBirth)
	if in.DateOfBirth.IsZero() {
		errs = append(errs, NewError(InvalidInput, "date of birth is required"))
	} else if age := AgeAt(dob, now); age < MinAge || age > MaxAge {
		errs = append(errs, NewError(InvalidInput, fmt.Sprintf("age must be between %d and %d years", MinAge, MaxAge)))
	}

	gender := ParseGender(in.Gender)
	if gender.IsError() {
		errs = append(errs, gender.Errors()...)
	}

	if len(errs) > 0 {
		return Failures[BasicInformation](errs)
	}
	return Success(BasicInformation{
		firstName:   first,
		lastName:    last,
		address:     address,
		city:        city,
		dateOfBirth: dob,
		gender:      gender.Value(),
	})
}

// RestoreBasicInformation rebuilds a stored block. Age is not rechecked since
// it was valid when the profile was created and changes only with time.
func RestoreBasicInformation(in BasicInformationInput) Result[BasicInformation] {
	gender := ParseGender(in.Gender)
	if gender.IsError() {
		return FailureFrom[BasicInformation](gender)
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return Failure[BasicInformation](NewError(InvalidInput, "stored profile is missing a name"))
	}
	return Success(BasicInformation{
		firstName:   in.FirstName,
		lastName:    in.LastName,
		address:     in.Address,
		city:        in.City,
		dateOfBirth: truncateToDate(in.DateOfBirth),
		gender:      gender.Value(),
	})
}

// AgeAt returns the number of whole years between dob and now.
func AgeAt(dob, now time.Time) int {
	now = now.UTC()
	dob = dob.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (b BasicInformation) FirstName() string      { return b.firstName }
func (b BasicInformation) LastName() string       { return b.lastName }
func (b BasicInformation) Address() string        { return b.address }
func (b BasicInformation) City() string           { return b.city }
func (b BasicInformation) DateOfBirth() time.Time { return b.dateOfBirth }
func (b BasicInformation) Gender() Gender         { return b.gender }
