package model

import "time"

// AdminStatID keys the singleton statistics row.
const AdminStatID = 1

type AdminStat struct {
	TotalPatients   int64     `json:"total_patients" db:"total_patients"`
	TotalProcedures int64     `json:"total_procedures" db:"total_procedures"`
	FrontDeskUsers  int64     `json:"front_desk_users" db:"front_desk_users"`
	DoctorUsers     int64     `json:"doctor_users" db:"doctor_users"`
	AdminUsers      int64     `json:"admin_users" db:"admin_users"`
	LastUpdated     time.Time `json:"last_updated" db:"last_updated"`
}

// StatCounter names one AdminStat column.
type StatCounter string

const (
	CounterTotalPatients   StatCounter = "total_patients"
	CounterTotalProcedures StatCounter = "total_procedures"
	CounterFrontDeskUsers  StatCounter = "front_desk_users"
	CounterDoctorUsers     StatCounter = "doctor_users"
	CounterAdminUsers      StatCounter = "admin_users"
)

// RoleCounter maps a role to its AdminStat column.
func RoleCounter(r Role) (StatCounter, bool) {
	switch r {
	case RoleFrontDesk:
		return CounterFrontDeskUsers, true
	case RoleDoctor:
		return CounterDoctorUsers, true
	case RoleAdmin:
		return CounterAdminUsers, true
	default:
		return "", false
	}
}
