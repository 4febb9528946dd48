// Package employees manages employee records linked to principals.
package employees

import (
	"fmt"

	"github.com/emprecords/emprecords/internal/platform/httpx"
)

// Employee is the personal record of a member of staff. A record is linked
// to at most one principal and a principal to at most one record.
type Employee struct {
	ID         int64  `json:"id"`
	UserID     *int64 `json:"-"`
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Age        *int   `json:"age,omitempty" validate:"omitempty,gte=14,lte=120"`
	Gender     string `json:"gender,omitempty" validate:"omitempty,max=32"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNo    string `json:"phoneNo,omitempty" validate:"omitempty,max=32"`
	Department string `json:"department,omitempty" validate:"omitempty,max=100"`
}

// Errors returned by the employee service.
var (
	ErrEmployeeNotFound = fmt.Errorf("%w: employee not found for given id", httpx.ErrNotFound)
	ErrAlreadyLinked    = fmt.Errorf("%w: user already has an employee record", httpx.ErrDuplicate)
)
