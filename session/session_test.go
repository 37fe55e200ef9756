package session

import (
	"strings"
	"testing"

	"github.com/edudao/scholarship/common"
	"github.com/stretchr/testify/assert"
)

func TestResolveRoleReservedAddresses(t *testing.T) {
	assert.Equal(t, RoleGovernment, ResolveRole(common.GovernmentAddress))
	assert.Equal(t, RoleFinancier, ResolveRole(common.FinancierAddress))
}

func TestResolveRoleCaseInsensitive(t *testing.T) {
	assert.Equal(t, RoleGovernment, ResolveRole(strings.ToLower(common.GovernmentAddress)))
	assert.Equal(t, RoleGovernment, ResolveRole(strings.ToUpper(common.GovernmentAddress)))
	assert.Equal(t, RoleFinancier, ResolveRole(strings.ToLower(common.FinancierAddress)))
	assert.Equal(t, RoleFinancier, ResolveRole(strings.ToUpper(common.FinancierAddress)))
}

func TestResolveRoleDisconnected(t *testing.T) {
	assert.Equal(t, RoleRegular, ResolveRole(""))
}

func TestResolveRoleDefaultsToStudent(t *testing.T) {
	assert.Equal(t, RoleStudent, ResolveRole("0x388175a170a0d8fcb99ff8867c00860fcf95a7cc"))
}

func TestResolveRoleDeterministic(t *testing.T) {
	addresses := []string{
		"",
		common.GovernmentAddress,
		common.FinancierAddress,
		"0x388175a170a0d8fcb99ff8867c00860fcf95a7cc",
	}

	for _, addr := range addresses {
		first := ResolveRole(addr)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, ResolveRole(addr))
		}
	}
}

func TestNewSession(t *testing.T) {
	sess := New(common.GovernmentAddress)
	assert.True(t, sess.Connected())
	assert.Equal(t, RoleGovernment, sess.Role)
	assert.False(t, sess.Verified)

	sess = New("")
	assert.False(t, sess.Connected())
	assert.Equal(t, RoleRegular, sess.Role)
}
