// Package rbac maps roles to the actions they may perform.
package rbac

import (
	"fmt"

	"github.com/jwalitptl/odontocare-api/internal/model"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
)

type Action string

const (
	ActionManageUsers       Action = "users:manage"
	ActionManagePatients    Action = "patients:manage"
	ActionListPatients      Action = "patients:list"
	ActionManageCenters     Action = "centers:manage"
	ActionViewCenters       Action = "centers:view"
	ActionManageDoctors     Action = "doctors:manage"
	ActionCreateAppointment Action = "appointments:create"
	ActionListAppointments  Action = "appointments:list"
	ActionViewAppointment   Action = "appointments:view"
	ActionCancelAppointment Action = "appointments:cancel"
)

type actionSet map[Action]struct{}

func allow(actions ...Action) actionSet {
	set := make(actionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Admin is not listed: it may perform every action.
var permissions = map[model.Role]actionSet{
	model.RoleReceptionist: allow(
		ActionCreateAppointment,
		ActionListAppointments,
		ActionViewAppointment,
		ActionCancelAppointment,
		ActionListPatients,
		ActionViewCenters,
	),
	model.RoleDoctor: allow(
		ActionCreateAppointment,
		ActionListAppointments,
		ActionViewAppointment,
		ActionViewCenters,
	),
	model.RolePatient: allow(
		ActionCreateAppointment,
		ActionListAppointments,
		ActionViewAppointment,
		ActionViewCenters,
	),
}

// Can reports whether role may perform action.
func Can(role model.Role, action Action) bool {
	if role == model.RoleAdmin {
		return true
	}
	_, ok := permissions[role][action]
	return ok
}

// Authorize returns a FORBIDDEN error unless caller may perform action.
func Authorize(caller *model.Caller, action Action) error {
	if caller == nil {
		return apperrors.Forbidden("authentication required")
	}
	if !Can(caller.Role, action) {
		return apperrors.Forbidden(fmt.Sprintf("role %s may not perform %s", caller.Role, action))
	}
	return nil
}
