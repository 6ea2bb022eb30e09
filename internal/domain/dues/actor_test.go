package dues

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestActor_CanActFor(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()

	self := Actor{UserID: owner, Capabilities: []string{CapabilitySelf}}
	admin := Actor{UserID: other, Capabilities: []string{CapabilitySelf, CapabilityFinanceAdmin}}
	stranger := Actor{UserID: other}
	anonymous := Actor{}

	assert.True(t, self.CanActFor(owner))
	assert.True(t, admin.CanActFor(owner))
	assert.False(t, stranger.CanActFor(owner))
	assert.False(t, anonymous.CanActFor(uuid.Nil))

	assert.True(t, errors.Is(stranger.AuthorizeFor(owner), ErrUnauthorized))
	assert.NoError(t, admin.RequireAdmin())
	assert.True(t, errors.Is(self.RequireAdmin(), ErrUnauthorized))
	assert.NoError(t, SystemActor().RequireAdmin())
}

func TestMember_FeeConfig(t *testing.T) {
	id := uuid.New()
	m, err := NewMember(uuid.New(), id, " Asha ", d("25"))
	assert.NoError(t, err)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, "Asha", m.Name)
	assert.True(t, m.HasFee())
	assert.Equal(t, FeeConfig{OwnerID: id, Amount: d("25")}, m.FeeConfig())

	assert.Error(t, m.SetFeeAmount(d("-1")))
	assert.NoError(t, m.SetFeeAmount(d("0")))
	assert.False(t, m.HasFee())

	m.Deactivate()
	assert.False(t, m.Active)

	_, err = NewMember(uuid.New(), uuid.Nil, "", d("1"))
	assert.Error(t, err)
}
