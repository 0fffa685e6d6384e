// Package servicetest wires the shared collaborators services need, backed
// by in-memory stores, for use in tests.
package servicetest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository/memory"
	"github.com/jwalitptl/medtrack-api/internal/service/event"
	"github.com/jwalitptl/medtrack-api/internal/service/stats"
	"github.com/jwalitptl/medtrack-api/internal/storage"
	"github.com/jwalitptl/medtrack-api/internal/validation"
	"github.com/jwalitptl/medtrack-api/pkg/messaging"
	"github.com/jwalitptl/medtrack-api/pkg/metrics"
	"github.com/jwalitptl/medtrack-api/pkg/validator"
)

// Now is the fixed time the validation clock reports.
var Now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type Env struct {
	Store     *memory.Store
	Files     *storage.Memory
	Metrics   *metrics.Metrics
	Stats     *stats.Service
	Pipeline  *event.Pipeline
	Validator *validation.Validator
}

func New() *Env {
	store := memory.New()
	files := storage.NewMemory()
	m := metrics.NewNop()
	st := stats.NewService(store.AdminStats())

	return &Env{
		Store:   store,
		Files:   files,
		Metrics: m,
		Stats:   st,
		Pipeline: event.NewPipeline(store.Notifications(), st, store.FileCleanup(),
			files, messaging.NopBroker{}, m, zerolog.Nop()),
		Validator: validation.New(validator.New(), validation.ClockFunc(func() time.Time { return Now })),
	}
}

// CreateUser inserts a user directly, bypassing registration.
func (e *Env) CreateUser(username string, role model.Role) *model.User {
	u := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	if err := e.Store.Users().Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

// Caller returns the authenticated identity of u.
func Caller(u *model.User) model.Caller {
	return model.Caller{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// CreatePatient inserts a patient directly.
func (e *Env) CreatePatient(first, last string) *model.Patient {
	p := &model.Patient{
		FirstName:                    first,
		LastName:                     last,
		MobileNumber:                 "9876543210",
		Address:                      "1 Main St",
		Gender:                       model.GenderFemale,
		Birthdate:                    model.NewDate(time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)),
		Email:                        "patient@example.com",
		City:                         "Pune",
		State:                        "MH",
		Pincode:                      "411001",
		EmergencyContactName:         "Bo",
		EmergencyContactMobileNumber: "9123456780",
		Language:                     "English",
	}
	if err := e.Store.Patients().Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}
