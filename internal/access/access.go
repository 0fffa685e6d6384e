// Package access holds the role predicates and the operation policy table.
package access

import (
	"github.com/jwalitptl/medtrack-api/internal/model"
)

// Predicate decides whether a role may perform an operation. The empty role
// fails every predicate.
type Predicate func(model.Role) bool

func IsAdmin(r model.Role) bool     { return r == model.RoleAdmin }
func IsDoctor(r model.Role) bool    { return r == model.RoleDoctor }
func IsFrontDesk(r model.Role) bool { return r == model.RoleFrontDesk }

// IsAuthenticated accepts any assigned role.
func IsAuthenticated(r model.Role) bool {
	return IsAdmin(r) || IsDoctor(r) || IsFrontDesk(r)
}

func AnyOf(preds ...Predicate) Predicate {
	return func(r model.Role) bool {
		for _, p := range preds {
			if p(r) {
				return true
			}
		}
		return false
	}
}

type Operation string

const (
	CreatePatient     Operation = "create_patient"
	ListPatients      Operation = "list_patients"
	ReadPatient       Operation = "read_patient"
	CreateProcedure   Operation = "create_procedure"
	ListProcedures    Operation = "list_procedures"
	ReadProcedure     Operation = "read_procedure"
	UpdateProcedure   Operation = "update_procedure"
	DeleteProcedure   Operation = "delete_procedure"
	DownloadReport    Operation = "download_report"
	ReadAdminStat     Operation = "read_admin_stat"
	ReadNotifications Operation = "read_notifications"
	ReadUserInfo      Operation = "read_user_info"
	Logout            Operation = "logout"
)

var (
	frontDeskOrAdmin = AnyOf(IsAdmin, IsFrontDesk)
	doctorOrAdmin    = AnyOf(IsAdmin, IsDoctor)
)

var policy = map[Operation]Predicate{
	CreatePatient:     frontDeskOrAdmin,
	ListPatients:      frontDeskOrAdmin,
	ReadPatient:       frontDeskOrAdmin,
	CreateProcedure:   doctorOrAdmin,
	ListProcedures:    doctorOrAdmin,
	ReadProcedure:     doctorOrAdmin,
	UpdateProcedure:   doctorOrAdmin,
	DownloadReport:    doctorOrAdmin,
	DeleteProcedure:   IsAdmin,
	ReadAdminStat:     IsAdmin,
	ReadNotifications: IsAuthenticated,
	ReadUserInfo:      IsAuthenticated,
	Logout:            IsAuthenticated,
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(op Operation, role model.Role) bool {
	pred, ok := policy[op]
	return ok && pred(role)
}
