package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medtrack-api/internal/model"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
	"github.com/jwalitptl/medtrack-api/pkg/validator"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newValidator() *Validator {
	return New(validator.New(), ClockFunc(func() time.Time { return fixedNow }))
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, apperrors.KindValidation, appErr.Kind)
	return appErr.Fields
}

func validPatient() model.CreatePatientRequest {
	return model.CreatePatientRequest{
		FirstName:                    "Jane",
		LastName:                     "Doe",
		MobileNumber:                 "9876543210",
		Address:                      "12 Main St",
		Gender:                       "F",
		Birthdate:                    "1990-04-12",
		Email:                        "jane@example.com",
		City:                         "Pune",
		State:                        "MH",
		Pincode:                      "411001",
		EmergencyContactName:         "John Doe",
		EmergencyContactMobileNumber: "9123456780",
		Language:                     "English",
	}
}

func TestPatient_Valid(t *testing.T) {
	p, err := newValidator().Patient(validPatient())
	require.NoError(t, err)
	assert.Equal(t, model.GenderFemale, p.Gender)
	assert.Equal(t, "1990-04-12", p.Birthdate.String())
	assert.Equal(t, "Jane Doe", p.FullName())
}

func TestPatient_GenderNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want model.Gender
	}{
		{"M", model.GenderMale},
		{"m", model.GenderMale},
		{"MALE", model.GenderMale},
		{"female", model.GenderFemale},
		{"f", model.GenderFemale},
		{"O", model.GenderOther},
		{"oThEr", model.GenderOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			req := validPatient()
			req.Gender = tt.in
			p, err := newValidator().Patient(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Gender)
		})
	}

	for _, bad := range []string{"x", "mal", "fem", "unknown"} {
		t.Run("reject "+bad, func(t *testing.T) {
			req := validPatient()
			req.Gender = bad
			_, err := newValidator().Patient(req)
			assert.Contains(t, fieldErrors(t, err), "gender")
		})
	}
}

func TestPatient_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.CreatePatientRequest)
		field  string
		msg    string
	}{
		{"short mobile", func(r *model.CreatePatientRequest) { r.MobileNumber = "12345" }, "mobile_number", msgMobile},
		{"alpha mobile", func(r *model.CreatePatientRequest) { r.MobileNumber = "98765abcde" }, "mobile_number", msgMobile},
		{"long mobile", func(r *model.CreatePatientRequest) { r.MobileNumber = "98765432101" }, "mobile_number", msgMobile},
		{"emergency mobile", func(r *model.CreatePatientRequest) { r.EmergencyContactMobileNumber = "1" }, "emergency_contact_mobile_number", msgEmergencyMobile},
		{"pincode", func(r *model.CreatePatientRequest) { r.Pincode = "4110" }, "pincode", msgPincode},
		{"pincode letters", func(r *model.CreatePatientRequest) { r.Pincode = "41100a" }, "pincode", msgPincode},
		{"email", func(r *model.CreatePatientRequest) { r.Email = "jane@example" }, "email", "Enter a valid email address."},
		{"birthdate", func(r *model.CreatePatientRequest) { r.Birthdate = "12/04/1990" }, "birthdate", msgBirthdate},
		{"first name length", func(r *model.CreatePatientRequest) { r.FirstName = string(make([]byte, 51)) }, "first_name", "Ensure this field has no more than 50 characters."},
		{"missing city", func(r *model.CreatePatientRequest) { r.City = "" }, "city", "This field is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validPatient()
			tt.mutate(&req)
			p, err := newValidator().Patient(req)
			assert.Nil(t, p)
			fields := fieldErrors(t, err)
			assert.Equal(t, tt.msg, fields[tt.field])
			assert.Len(t, fields, 1)
		})
	}
}

func TestPatient_ReportsEveryBadField(t *testing.T) {
	req := validPatient()
	req.MobileNumber = "1"
	req.Pincode = "2"
	req.Gender = "z"
	req.Email = "nope"

	_, err := newValidator().Patient(req)
	fields := fieldErrors(t, err)
	assert.ElementsMatch(t, []string{"mobile_number", "pincode", "gender", "email"}, keys(fields))
}

func validProcedure() model.CreateProcedureRequest {
	return model.CreateProcedureRequest{
		Patient:           "6f1c8d5e-2b1a-4c3e-9d7f-0a1b2c3d4e5f",
		Status:            "COMPLETED",
		Category:          "Surgical",
		ProcedureName:     "Appendectomy",
		ProcedureDatetime: "2024-05-30T09:00:00Z",
		ClinicAddress:     "1 Clinic Rd",
	}
}

func TestNewProcedure_NormalizesEnums(t *testing.T) {
	p, err := newValidator().NewProcedure(validProcedure())
	require.NoError(t, err)
	assert.Equal(t, "completed", p.Status)
	assert.Equal(t, "surgical", p.Category)
	assert.Equal(t, "6f1c8d5e-2b1a-4c3e-9d7f-0a1b2c3d4e5f", p.PatientID.String())
	assert.True(t, p.ProcedureDatetime.Equal(time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC)))
}

func TestNewProcedure_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.CreateProcedureRequest)
		field  string
		msg    string
	}{
		{"status", func(r *model.CreateProcedureRequest) { r.Status = "done" }, "status", msgStatus},
		{"category", func(r *model.CreateProcedureRequest) { r.Category = "dental" }, "category", msgCategory},
		{"future", func(r *model.CreateProcedureRequest) { r.ProcedureDatetime = "2024-06-01T12:00:01Z" }, "procedure_datetime", msgFutureDatetime},
		{"bad datetime", func(r *model.CreateProcedureRequest) { r.ProcedureDatetime = "yesterday" }, "procedure_datetime", msgDatetime},
		{"patient id", func(r *model.CreateProcedureRequest) { r.Patient = "42" }, "patient", msgPatientID},
		{"missing patient", func(r *model.CreateProcedureRequest) { r.Patient = "" }, "patient", "This field is required."},
		{"report", func(r *model.CreateProcedureRequest) { name := "scan.png"; r.Report = &name }, "report", "Only PDF files are allowed."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validProcedure()
			tt.mutate(&req)
			_, err := newValidator().NewProcedure(req)
			fields := fieldErrors(t, err)
			assert.Equal(t, tt.msg, fields[tt.field])
			assert.Len(t, fields, 1)
		})
	}
}

func TestNewProcedure_BoundaryAndReportCase(t *testing.T) {
	req := validProcedure()
	req.ProcedureDatetime = fixedNow.Format(time.RFC3339)
	name := "REPORT.PDF"
	req.Report = &name

	_, err := newValidator().NewProcedure(req)
	assert.NoError(t, err, "a datetime equal to now is not in the future")
}

func TestProcedureUpdate(t *testing.T) {
	status := "On-Hold"
	changes, err := newValidator().ProcedureUpdate(model.UpdateProcedureRequest{Status: &status})
	require.NoError(t, err)
	require.NotNil(t, changes.Status)
	assert.Equal(t, "on-hold", *changes.Status)
	assert.Nil(t, changes.Category)
	assert.Nil(t, changes.ProcedureDatetime)

	future := "2030-01-01T00:00:00Z"
	category := "dental"
	_, err = newValidator().ProcedureUpdate(model.UpdateProcedureRequest{Category: &category, ProcedureDatetime: &future})
	fields := fieldErrors(t, err)
	assert.Equal(t, msgCategory, fields["category"])
	assert.Equal(t, msgFutureDatetime, fields["procedure_datetime"])

	blank := ""
	_, err = newValidator().ProcedureUpdate(model.UpdateProcedureRequest{ProcedureName: &blank})
	assert.Equal(t, msgBlank, fieldErrors(t, err)["procedure_name"])
}

type fakeLookup struct {
	usernames map[string]bool
	emails    map[string]bool
	err       error
	calls     []string
}

func (f *fakeLookup) UsernameExists(_ context.Context, username string) (bool, error) {
	f.calls = append(f.calls, "username")
	return f.usernames[username], f.err
}

func (f *fakeLookup) EmailExists(_ context.Context, email string) (bool, error) {
	f.calls = append(f.calls, "email")
	return f.emails[email], f.err
}

func (f *fakeLookup) RoleExists(_ context.Context, role string) (bool, error) {
	f.calls = append(f.calls, "role")
	for _, r := range model.Roles {
		if string(r) == role {
			return true, f.err
		}
	}
	return false, f.err
}

func TestRegistration(t *testing.T) {
	ctx := context.Background()
	req := model.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "Abcdef1!", Role: "Doctor"}

	role, err := newValidator().Registration(ctx, req, &fakeLookup{})
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, role)
}

func TestRegistration_IndependentFields(t *testing.T) {
	ctx := context.Background()
	lookup := &fakeLookup{usernames: map[string]bool{"alice": true}}
	req := model.RegisterRequest{Username: "alice", Email: "bad", Password: "weak", Role: "Nurse"}

	_, err := newValidator().Registration(ctx, req, lookup)
	fields := fieldErrors(t, err)

	assert.Equal(t, msgUsernameTaken, fields["username"])
	assert.Equal(t, "Enter a valid email address.", fields["email"])
	assert.Contains(t, fields["password"], "at least 8 characters")
	assert.Equal(t, msgUnknownRole, fields["role"])
	assert.NotContains(t, lookup.calls, "email", "malformed email is not looked up")
}

func TestRegistration_UsernameCharset(t *testing.T) {
	req := model.RegisterRequest{Username: "bad name!", Email: "a@b.co", Password: "Abcdef1!", Role: "Admin"}
	_, err := newValidator().Registration(context.Background(), req, &fakeLookup{})
	assert.Contains(t, fieldErrors(t, err), "username")
}

func TestRegistration_LookupFailure(t *testing.T) {
	req := model.RegisterRequest{Username: "bob", Email: "b@b.co", Password: "Abcdef1!", Role: "Admin"}
	_, err := newValidator().Registration(context.Background(), req, &fakeLookup{err: errors.New("db down")})
	require.Error(t, err)
	assert.False(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
