package services

import (
	"github.com/google/uuid"

	"github.com/example/comcin/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Action names a state-mutating operation.
type Action string

const (
	ActionTransitionApplication Action = "application.transition"
	ActionRecordPayment         Action = "payment.record"
	ActionVerifyPayment         Action = "payment.verify"
	ActionReviewTransaction     Action = "transaction.review"
	ActionCreateCharge          Action = "charge.create"
	ActionManageUsers           Action = "users.manage"
	ActionManageContent         Action = "content.manage"
	ActionManagePaymentMethods  Action = "payment_methods.manage"
	ActionIssueCertificate      Action = "certificate.issue"
	ActionReviewSupport         Action = "support.review"
	ActionCreateSupport         Action = "support.create"
	ActionEditInstitution       Action = "institution.edit"
	ActionEditProfile           Action = "profile.edit"
	ActionReadNotifications     Action = "notifications.read"
)

// Resource identifies what an action touches. OwnerID is uuid.Nil for unowned resources.
type Resource struct {
	OwnerID uuid.UUID
}

// OwnedBy builds a Resource owned by id.
func OwnedBy(id uuid.UUID) Resource {
	return Resource{OwnerID: id}
}

var adminActions = map[Action]bool{
	ActionTransitionApplication: true,
	ActionReviewTransaction:     true,
	ActionCreateCharge:          true,
	ActionManageUsers:           true,
	ActionManageContent:         true,
	ActionManagePaymentMethods:  true,
	ActionIssueCertificate:      true,
	ActionReviewSupport:         true,
}

var memberActions = map[Action]bool{
	ActionRecordPayment:   true,
	ActionCreateSupport:   true,
	ActionEditInstitution: true,
}

// CanPerform is the single authorization check run before every state-mutating operation.
func CanPerform(actor Actor, action Action, resource Resource) bool {
	if actor.ID == uuid.Nil {
		return false
	}
	if adminActions[action] {
		return actor.IsAdmin()
	}
	if memberActions[action] {
		return actor.Role == models.RoleMember && resource.OwnerID == actor.ID
	}

	switch action {
	case ActionVerifyPayment:
		return actor.IsAdmin() || resource.OwnerID == actor.ID
	case ActionEditProfile, ActionReadNotifications:
		return resource.OwnerID == actor.ID || actor.IsAdmin()
	}
	return false
}

func authorize(actor Actor, action Action, resource Resource) error {
	if !CanPerform(actor, action, resource) {
		return forbidden("not allowed to perform %s", action)
	}
	return nil
}
