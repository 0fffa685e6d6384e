// Package validation turns raw payloads into normalized records or a
// field-keyed error map. A record is never partially normalized: either
// every field passes and a complete record is returned, or nothing is.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medtrack-api/internal/model"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
	"github.com/jwalitptl/medtrack-api/pkg/validator"
)

// Clock supplies "now" for the not-in-the-future rule.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

const (
	msgMobile          = "Mobile number must be exactly 10 digits."
	msgEmergencyMobile = "Emergency contact mobile number must be exactly 10 digits."
	msgPincode         = "Pincode must be exactly 6 digits."
	msgBirthdate       = "Date has wrong format. Use YYYY-MM-DD."
	msgDatetime        = "Datetime has wrong format. Use RFC 3339, e.g. 2024-01-02T15:04:05Z."
	msgFutureDatetime  = "Procedure date cannot be in the future."
	msgPatientID       = "Must be a valid UUID."
	msgUsernameTaken   = "A user with that username already exists."
	msgEmailTaken      = "A user with that email already exists."
	msgUnknownRole     = "Role does not exist."
	msgBlank           = "This field may not be blank."
)

var (
	msgStatus   = fmt.Sprintf("Status must be one of the following: %s.", strings.Join(model.ProcedureStatuses, ", "))
	msgCategory = fmt.Sprintf("Category must be one of the following: %s.", strings.Join(model.ProcedureCategories, ", "))
)

var patientMessages = map[string]string{
	"mobile_number.digits10":                   msgMobile,
	"emergency_contact_mobile_number.digits10": msgEmergencyMobile,
	"pincode.digits6":                          msgPincode,
}

var procedureMessages = map[string]string{
	"status.oneof":   msgStatus,
	"category.oneof": msgCategory,
}

var genders = map[string]model.Gender{
	"m": model.GenderMale, "male": model.GenderMale,
	"f": model.GenderFemale, "female": model.GenderFemale,
	"o": model.GenderOther, "other": model.GenderOther,
}

// RegistrationLookup answers the uniqueness and role-existence questions
// registration depends on.
type RegistrationLookup interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	RoleExists(ctx context.Context, role string) (bool, error)
}

type Validator struct {
	v     *validator.Validator
	clock Clock
}

func New(v *validator.Validator, clock Clock) *Validator {
	if clock == nil {
		clock = SystemClock
	}
	return &Validator{v: v, clock: clock}
}

// Patient validates req and returns the normalized record. ID and
// CreatedDate are left for the store to assign.
func (val *Validator) Patient(req model.CreatePatientRequest) (*model.Patient, error) {
	req.Gender = strings.TrimSpace(req.Gender)

	fields, err := val.v.Struct(req, patientMessages)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]string{}
	}

	var birthdate time.Time
	if _, failed := fields["birthdate"]; !failed {
		birthdate, err = time.Parse(model.DateLayout, req.Birthdate)
		if err != nil {
			fields["birthdate"] = msgBirthdate
		}
	}

	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	return &model.Patient{
		FirstName:                    req.FirstName,
		LastName:                     req.LastName,
		MobileNumber:                 req.MobileNumber,
		Address:                      req.Address,
		Gender:                       genders[strings.ToLower(req.Gender)],
		Birthdate:                    model.NewDate(birthdate),
		Email:                        req.Email,
		City:                         req.City,
		State:                        req.State,
		Pincode:                      req.Pincode,
		EmergencyContactName:         req.EmergencyContactName,
		EmergencyContactMobileNumber: req.EmergencyContactMobileNumber,
		Language:                     req.Language,
	}, nil
}

// NewProcedure validates a create payload. Patient existence is not checked
// here; the caller owns that lookup.
func (val *Validator) NewProcedure(req model.CreateProcedureRequest) (*model.Procedure, error) {
	req.Status = normalizeEnum(req.Status)
	req.Category = normalizeEnum(req.Category)

	fields, err := val.v.Struct(req, procedureMessages)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]string{}
	}

	var patientID uuid.UUID
	if _, failed := fields["patient"]; !failed {
		if patientID, err = uuid.Parse(req.Patient); err != nil {
			fields["patient"] = msgPatientID
		}
	}

	var when time.Time
	if _, failed := fields["procedure_datetime"]; !failed {
		if msg := val.checkDatetime(req.ProcedureDatetime, &when); msg != "" {
			fields["procedure_datetime"] = msg
		}
	}

	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	return &model.Procedure{
		PatientID:         patientID,
		Status:            req.Status,
		Category:          req.Category,
		ProcedureName:     req.ProcedureName,
		ProcedureDatetime: when,
		ClinicAddress:     req.ClinicAddress,
		Notes:             req.Notes,
	}, nil
}

// ProcedureUpdate applies the create rules to the fields present in req.
func (val *Validator) ProcedureUpdate(req model.UpdateProcedureRequest) (*model.ProcedureChanges, error) {
	if req.Status != nil {
		s := normalizeEnum(*req.Status)
		req.Status = &s
	}
	if req.Category != nil {
		c := normalizeEnum(*req.Category)
		req.Category = &c
	}

	fields, err := val.v.Struct(req, procedureMessages)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]string{}
	}

	for name, value := range map[string]*string{
		"status":         req.Status,
		"category":       req.Category,
		"procedure_name": req.ProcedureName,
		"clinic_address": req.ClinicAddress,
	} {
		if _, failed := fields[name]; !failed && value != nil && *value == "" {
			fields[name] = msgBlank
		}
	}

	changes := &model.ProcedureChanges{
		Status:        req.Status,
		Category:      req.Category,
		ProcedureName: req.ProcedureName,
		ClinicAddress: req.ClinicAddress,
		Notes:         req.Notes,
	}

	if req.Patient != nil {
		id, err := uuid.Parse(*req.Patient)
		if err != nil {
			fields["patient"] = msgPatientID
		} else {
			changes.PatientID = &id
		}
	}

	if req.ProcedureDatetime != nil {
		var when time.Time
		if msg := val.checkDatetime(*req.ProcedureDatetime, &when); msg != "" {
			fields["procedure_datetime"] = msg
		} else {
			changes.ProcedureDatetime = &when
		}
	}

	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}
	return changes, nil
}

// Taken is the field error for a username or email that is already registered.
func Taken(field string) *apperrors.AppError {
	if field == "email" {
		return apperrors.Field(field, msgEmailTaken)
	}
	return apperrors.Field(field, msgUsernameTaken)
}

// Registration checks every field independently. Uniqueness is only looked
// up for fields whose format already passed.
func (val *Validator) Registration(ctx context.Context, req model.RegisterRequest, lookup RegistrationLookup) (model.Role, error) {
	fields, err := val.v.Struct(req, nil)
	if err != nil {
		return "", err
	}
	if fields == nil {
		fields = map[string]string{}
	}

	if _, failed := fields["username"]; !failed {
		taken, err := lookup.UsernameExists(ctx, req.Username)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			fields["username"] = msgUsernameTaken
		}
	}

	if _, failed := fields["email"]; !failed {
		taken, err := lookup.EmailExists(ctx, req.Email)
		if err != nil {
			return "", fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			fields["email"] = msgEmailTaken
		}
	}

	if _, failed := fields["role"]; !failed {
		exists, err := lookup.RoleExists(ctx, req.Role)
		if err != nil {
			return "", fmt.Errorf("failed to check role: %w", err)
		}
		if !exists {
			fields["role"] = msgUnknownRole
		}
	}

	if len(fields) > 0 {
		return "", apperrors.Validation(fields)
	}
	return model.Role(req.Role), nil
}

func (val *Validator) checkDatetime(raw string, out *time.Time) string {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return msgDatetime
	}
	if t.After(val.clock.Now()) {
		return msgFutureDatetime
	}
	*out = t
	return ""
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
