package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSession(t *testing.T) {
	staff := Session{ActorID: "s", Role: RoleStaff, InstitutionID: "i1"}
	coord := Session{ActorID: "c", Role: RoleCoordinator, InstitutionID: "i1"}
	admin := Session{ActorID: "a", Role: RoleAdmin}
	viewing := admin.WithViewing("i1")

	t.Run("read scope", func(t *testing.T) {
		assert.Equal(t, "i1", staff.ReadScope())
		assert.Equal(t, "", admin.ReadScope())
		assert.Equal(t, "i1", viewing.ReadScope())

		assert.True(t, staff.CanRead("i1"))
		assert.False(t, staff.CanRead("i2"))
		assert.False(t, admin.CanRead(""), "records always belong to an institution")
		assert.True(t, viewing.CanRead("i1"))
	})

	t.Run("write", func(t *testing.T) {
		assert.NoError(t, staff.CheckWrite("i1"))
		assert.Equal(t, ErrPermissionDenied, staff.CheckWrite("i2"))
		assert.Equal(t, ErrPermissionDenied, admin.CheckWrite("i1"))
		assert.Equal(t, ErrReadOnly, viewing.CheckWrite("i1"))
		assert.Equal(t, ErrPermissionDenied, Session{}.CheckWrite("i1"))
	})

	t.Run("own institution is not read-only", func(t *testing.T) {
		own := coord.WithViewing("i1")
		assert.False(t, own.IsReadOnly())
		assert.NoError(t, own.CheckWrite("i1"))
	})

	t.Run("team management", func(t *testing.T) {
		assert.True(t, coord.CanManageTeam("i1"))
		assert.False(t, coord.CanManageTeam("i2"))
		assert.False(t, staff.CanManageTeam("i1"))
		assert.True(t, admin.CanManageTeam("i2"))
		assert.False(t, viewing.CanManageTeam("i1"))
	})
}

func TestPersistenceError(t *testing.T) {
	err := &PersistenceError{Table: "children", Err: ErrPermissionDenied}
	pErr, ok := AsPersistenceError(errors.Wrap(err, "deleting institution"))
	assert.True(t, ok)
	assert.Equal(t, "children", pErr.Table)
	assert.Contains(t, pErr.Error(), `"children"`)

	_, ok = AsPersistenceError(ErrReadOnly)
	assert.False(t, ok)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(errors.Wrap(NewNotFoundError("child"), "finding child")))
	assert.False(t, IsNotFound(ErrPermissionDenied))
	assert.Equal(t, "child not found", NewNotFoundError("child").Error())
}
