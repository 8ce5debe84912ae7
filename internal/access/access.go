// Package access decides whether a resolved badge holder may pass the gate.
package access

import (
	"fmt"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/person"
	"rfidaccess/internal/trimester"
)

// Decision is the outcome of one access check.
type Decision struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
}

// Decide applies the gate rules for p during trimester t. It performs no I/O.
// Staff, teachers and visitors always pass; students pass only when t is paid.
func Decide(p person.Enriched, t trimester.Trimester) (Decision, error) {
	if !t.Valid() {
		return Decision{}, apperr.InvalidField("trimester", fmt.Sprintf("invalid trimester %d", int(t)))
	}
	switch p.Category {
	case person.Student:
		if p.Paid(t) {
			return Decision{Granted: true, Reason: "Access granted - Student"}, nil
		}
		return Decision{Granted: false, Reason: fmt.Sprintf("Payment required for trimester %d", int(t))}, nil
	case person.Teacher:
		return Decision{Granted: true, Reason: "Access granted - Teacher"}, nil
	case person.Staff:
		return Decision{Granted: true, Reason: "Access granted - Staff"}, nil
	case person.Visitor:
		// no expiry window for visitors yet
		return Decision{Granted: true, Reason: "Access granted - Visitor"}, nil
	}
	return Decision{}, apperr.InvalidState(fmt.Sprintf("person %d has unknown type %q", p.ID, p.Category))
}
