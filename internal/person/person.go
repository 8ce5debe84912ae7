// Package person is the directory of badge holders and their derived payment status.
package person

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/trimester"
)

type Category string

const (
	Student Category = "student"
	Teacher Category = "teacher"
	Staff   Category = "staff"
	Visitor Category = "visitor"
)

// Categories lists every accepted category.
var Categories = []Category{Student, Teacher, Staff, Visitor}

func (c Category) Valid() bool {
	switch c {
	case Student, Teacher, Staff, Visitor:
		return true
	}
	return false
}

// ParseCategory accepts exactly the four known categories.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", apperr.InvalidField("type", fmt.Sprintf("invalid type %q: allowed values are student, teacher, staff, visitor", s))
	}
	return c, nil
}

// Person is a registered badge holder.
type Person struct {
	ID        int64     `json:"id"`
	BadgeID   string    `json:"badge_id"`
	Category  Category  `json:"type"`
	Surname   string    `json:"surname"`
	GivenName string    `json:"given_name"`
	Photo     *string   `json:"photo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Person) DisplayName() string {
	return strings.TrimSpace(p.Surname + " " + p.GivenName)
}

// Enriched is a Person with one paid flag per trimester.
// Non-students always carry three true flags.
type Enriched struct {
	Person
	Trimester1Paid bool `json:"trimester1_paid"`
	Trimester2Paid bool `json:"trimester2_paid"`
	Trimester3Paid bool `json:"trimester3_paid"`
}

// Paid returns the flag for t; false for an invalid trimester.
func (e Enriched) Paid(t trimester.Trimester) bool {
	switch t {
	case trimester.First:
		return e.Trimester1Paid
	case trimester.Second:
		return e.Trimester2Paid
	case trimester.Third:
		return e.Trimester3Paid
	}
	return false
}

func (e *Enriched) setPaid(t trimester.Trimester, paid bool) {
	switch t {
	case trimester.First:
		e.Trimester1Paid = paid
	case trimester.Second:
		e.Trimester2Paid = paid
	case trimester.Third:
		e.Trimester3Paid = paid
	}
}

// CreateInput registers a new person. A nil or empty Photo stores no photo.
type CreateInput struct {
	BadgeID   string   `json:"badge_id"`
	Category  Category `json:"type"`
	Surname   string   `json:"surname"`
	GivenName string   `json:"given_name"`
	Photo     *string  `json:"photo"`
}

func (in *CreateInput) Validate() error {
	in.BadgeID = strings.TrimSpace(in.BadgeID)
	in.Surname = strings.TrimSpace(in.Surname)
	in.GivenName = strings.TrimSpace(in.GivenName)
	in.Photo = normalizePhoto(in.Photo)
	err := validation.ValidateStruct(in,
		validation.Field(&in.BadgeID, validation.Required, validation.Length(1, 128)),
		validation.Field(&in.Category, validation.Required, validation.In(Student, Teacher, Staff, Visitor)),
		validation.Field(&in.Surname, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.GivenName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Photo, validation.NilOrNotEmpty, validation.Length(1, 512)),
	)
	return apperr.FromValidation(err)
}

// UpdateInput carries the fields to change; nil means unchanged.
// An empty Photo clears the photo reference.
type UpdateInput struct {
	BadgeID   *string   `json:"badge_id"`
	Category  *Category `json:"type"`
	Surname   *string   `json:"surname"`
	GivenName *string   `json:"given_name"`
	Photo     *string   `json:"photo"`
}

func (in *UpdateInput) Empty() bool {
	return in.BadgeID == nil && in.Category == nil && in.Surname == nil && in.GivenName == nil && in.Photo == nil
}

func (in *UpdateInput) Validate() error {
	if in.Empty() {
		return apperr.Invalid("no fields to update")
	}
	trim(in.BadgeID)
	trim(in.Surname)
	trim(in.GivenName)
	trim(in.Photo)
	err := validation.ValidateStruct(in,
		validation.Field(&in.BadgeID, validation.NilOrNotEmpty, validation.Length(1, 128)),
		validation.Field(&in.Category, validation.NilOrNotEmpty, validation.In(Student, Teacher, Staff, Visitor)),
		validation.Field(&in.Surname, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.GivenName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.Photo, validation.Length(0, 512)),
	)
	return apperr.FromValidation(err)
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func normalizePhoto(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
