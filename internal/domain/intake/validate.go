package intake

import (
	"strconv"
	"strings"
)

const (
	MinAge = 1
	MaxAge = 120
)

// validForm is a Form that passed validation.
type validForm struct {
	PatientName     string
	Gender          Gender
	Age             int
	PhoneNumber     string
	ReferringDoctor *string
	PrimaryQuestion string
}

// validate checks the form without touching any collaborator. Errors are
// *FieldError values naming the form field.
func validate(f Form) (validForm, error) {
	var v validForm

	v.PatientName = strings.TrimSpace(f.PatientName)
	if v.PatientName == "" {
		return v, invalid("patientName", "is required")
	}

	g, ok := ParseGender(f.Gender)
	if !ok {
		return v, invalid("gender", "must be one of male, female, other")
	}
	v.Gender = g

	age, err := strconv.Atoi(strings.TrimSpace(f.Age))
	if err != nil {
		return v, invalid("age", "must be a whole number")
	}
	if age < MinAge || age > MaxAge {
		return v, invalid("age", "must be between 1 and 120")
	}
	v.Age = age

	v.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	if v.PhoneNumber == "" {
		return v, invalid("phoneNumber", "is required")
	}

	if doc := strings.TrimSpace(f.ReferringDoctor); doc != "" {
		v.ReferringDoctor = &doc
	}

	v.PrimaryQuestion = strings.TrimSpace(f.PrimaryQuestion)
	if v.PrimaryQuestion == "" {
		return v, invalid("primaryQuestion", "is required")
	}

	return v, nil
}
