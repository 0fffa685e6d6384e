package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

// Date is a calendar date rendered as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	t, err := time.Parse(`"`+DateLayout+`"`, string(data))
	if err != nil {
		return err
	}
	*d = NewDate(t)
	return nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return err
		}
		*d = NewDate(t)
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

type Patient struct {
	ID                           uuid.UUID `json:"id" db:"id"`
	FirstName                    string    `json:"first_name" db:"first_name"`
	LastName                     string    `json:"last_name" db:"last_name"`
	MobileNumber                 string    `json:"mobile_number" db:"mobile_number"`
	Address                      string    `json:"address" db:"address"`
	Gender                       Gender    `json:"gender" db:"gender"`
	Birthdate                    Date      `json:"birthdate" db:"birthdate"`
	Email                        string    `json:"email" db:"email"`
	City                         string    `json:"city" db:"city"`
	State                        string    `json:"state" db:"state"`
	Pincode                      string    `json:"pincode" db:"pincode"`
	EmergencyContactName         string    `json:"emergency_contact_name" db:"emergency_contact_name"`
	EmergencyContactMobileNumber string    `json:"emergency_contact_mobile_number" db:"emergency_contact_mobile_number"`
	Language                     string    `json:"language" db:"language"`
	CreatedDate                  time.Time `json:"created_date" db:"created_date"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// CreatePatientRequest carries the raw payload; validation normalizes it into a Patient.
type CreatePatientRequest struct {
	FirstName                    string `json:"first_name" validate:"required,max=50"`
	LastName                     string `json:"last_name" validate:"required,max=50"`
	MobileNumber                 string `json:"mobile_number" validate:"required,digits10"`
	Address                      string `json:"address" validate:"required"`
	Gender                       string `json:"gender" validate:"required,gender"`
	Birthdate                    string `json:"birthdate" validate:"required"`
	Email                        string `json:"email" validate:"required,simple_email"`
	City                         string `json:"city" validate:"required,max=100"`
	State                        string `json:"state" validate:"required,max=100"`
	Pincode                      string `json:"pincode" validate:"required,digits6"`
	EmergencyContactName         string `json:"emergency_contact_name" validate:"required,max=100"`
	EmergencyContactMobileNumber string `json:"emergency_contact_mobile_number" validate:"required,digits10"`
	Language                     string `json:"language" validate:"required,max=50"`
}

// PatientFilter: Name is a case-insensitive substring of first_name, City is exact.
type PatientFilter struct {
	Name string `form:"name"`
	City string `form:"city"`
}
