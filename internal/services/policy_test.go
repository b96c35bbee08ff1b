package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/example/comcin/internal/models"
)

func TestCanPerform(t *testing.T) {
	admin := Actor{ID: uuid.New(), Role: models.RoleAdmin}
	member := Actor{ID: uuid.New(), Role: models.RoleMember}
	other := uuid.New()

	tests := []struct {
		name     string
		actor    Actor
		action   Action
		resource Resource
		want     bool
	}{
		{"admin transitions application", admin, ActionTransitionApplication, Resource{}, true},
		{"member cannot transition application", member, ActionTransitionApplication, OwnedBy(member.ID), false},
		{"admin reviews transaction", admin, ActionReviewTransaction, Resource{}, true},
		{"member cannot review transaction", member, ActionReviewTransaction, Resource{}, false},
		{"admin creates charge", admin, ActionCreateCharge, Resource{}, true},
		{"member cannot create charge", member, ActionCreateCharge, OwnedBy(member.ID), false},
		{"member records own payment", member, ActionRecordPayment, OwnedBy(member.ID), true},
		{"member cannot record payment for others", member, ActionRecordPayment, OwnedBy(other), false},
		{"admin cannot record member payment", admin, ActionRecordPayment, OwnedBy(member.ID), false},
		{"member verifies own payment", member, ActionVerifyPayment, OwnedBy(member.ID), true},
		{"member cannot verify others payment", member, ActionVerifyPayment, OwnedBy(other), false},
		{"admin verifies any payment", admin, ActionVerifyPayment, OwnedBy(other), true},
		{"member edits own profile", member, ActionEditProfile, OwnedBy(member.ID), true},
		{"member cannot edit other profile", member, ActionEditProfile, OwnedBy(other), false},
		{"admin edits any profile", admin, ActionEditProfile, OwnedBy(other), true},
		{"member reads own notifications", member, ActionReadNotifications, OwnedBy(member.ID), true},
		{"member cannot manage content", member, ActionManageContent, Resource{}, false},
		{"admin manages content", admin, ActionManageContent, Resource{}, true},
		{"anonymous actor", Actor{Role: models.RoleAdmin}, ActionManageContent, Resource{}, false},
		{"unknown action", admin, Action("nope"), Resource{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanPerform(tt.actor, tt.action, tt.resource))
		})
	}
}

func TestAuthorizeReturnsForbidden(t *testing.T) {
	member := Actor{ID: uuid.New(), Role: models.RoleMember}

	err := authorize(member, ActionCreateCharge, Resource{})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.NoError(t, authorize(member, ActionRecordPayment, OwnedBy(member.ID)))
}
