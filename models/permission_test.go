package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPermissionHas(t *testing.T) {
	p := PermViewChannel | PermSendMessages

	assert.True(t, p.Has(PermViewChannel))
	assert.True(t, p.Has(PermSendMessages))
	assert.True(t, p.Has(PermViewChannel|PermSendMessages))

	assert.False(t, p.Has(PermManageServer))
	// Kombine kontrol: bitlerin TAMAMI olmalı.
	assert.False(t, p.Has(PermViewChannel|PermBanMembers))
}

func TestPermissionHasAdministrator(t *testing.T) {
	p := PermAdministrator

	// Administrator tek başına her kontrolü geçer.
	assert.True(t, p.Has(PermManageServer))
	assert.True(t, p.Has(PermAll))
	assert.True(t, p.Has(PermViewChannel|PermBanMembers|PermManageRoles))
}

func TestPermAllCoversEveryBit(t *testing.T) {
	all := []Permission{
		PermManageServer, PermManageChannels, PermManageRoles, PermManageMessages,
		PermKickMembers, PermBanMembers, PermTimeoutMembers, PermCreateInvite,
		PermManageWebhooks, PermMentionEveryone, PermViewChannel, PermSendMessages,
		PermAddReaction, PermConnectVoice, PermSpeak, PermScreenShare,
		PermViewReports, PermAdministrator,
	}

	var union Permission
	for _, p := range all {
		union |= p
	}
	assert.Equal(t, PermAll, union)
}

func TestEveryoneDefaultIsNotModeration(t *testing.T) {
	def := Permission(PermEveryoneDefault)

	assert.True(t, def.Has(PermViewChannel))
	assert.True(t, def.Has(PermSendMessages))
	assert.True(t, def.Has(PermConnectVoice))
	assert.True(t, def.Has(PermCreateInvite))

	assert.False(t, def.Has(PermManageServer))
	assert.False(t, def.Has(PermKickMembers))
	assert.False(t, def.Has(PermBanMembers))
	assert.False(t, def.Has(PermAdministrator))
}

func TestTimeoutStrippedKeepsReadAccess(t *testing.T) {
	effective := Permission(PermEveryoneDefault) &^ TimeoutStripped

	// Timeout'lu üye okumaya devam eder ama üretim yapamaz.
	assert.True(t, effective.Has(PermViewChannel))
	assert.False(t, effective.Has(PermSendMessages))
	assert.False(t, effective.Has(PermSpeak))
	assert.False(t, effective.Has(PermConnectVoice))
	assert.False(t, effective.Has(PermAddReaction))
}

func TestMembershipTimedOut(t *testing.T) {
	m := &Membership{}
	assert.False(t, m.TimedOut(), "nil timeout means no timeout")

	past := time.Now().Add(-time.Minute)
	m.TimeoutUntil = &past
	assert.False(t, m.TimedOut(), "expired timeout does not count")

	future := time.Now().Add(time.Minute)
	m.TimeoutUntil = &future
	assert.True(t, m.TimedOut())
}
