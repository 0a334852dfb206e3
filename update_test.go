package criteria

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSet(t *testing.T) {
	cb := testBuilder(t)
	u := CreateUpdate[Person](cb)
	p := u.From()

	u.Set("name", "Bob").
		SetPath(p.Get("address").Get("city"), "Lyon").
		Where(cb.Equal(p.Get("age"), 30))
	require.NoError(t, u.Err())
	assert.Same(t, p, u.Root())

	assignments := u.Assignments()
	require.Len(t, assignments, 2)
	assert.Equal(t, "name", assignments[0].Path.Attribute().Name())
	assert.Equal(t, "city", assignments[1].Path.Attribute().Name())
	assert.Equal(t,
		`(update Person (set Person.name "Bob") (set Person.address.city "Lyon") (where (= Person.age 30)))`,
		u.String())
}

func TestUpdateSetNull(t *testing.T) {
	cb := testBuilder(t)
	u := CreateUpdate[Person](cb)
	u.From("p")

	u.Set("email", nil)
	require.NoError(t, u.Err())

	value, ok := u.Assignments()[0].Value.(*Literal)
	require.True(t, ok)
	assert.True(t, value.IsNull())
	assert.Equal(t, reflect.TypeFor[string](), value.Type())
	assert.Equal(t, "(update Person p (set p.email null))", u.String())
}

func TestUpdateSetErrors(t *testing.T) {
	cb := testBuilder(t)

	early := CreateUpdate[Person](cb)
	early.Set("name", "Bob")
	assert.True(t, IsInvalidState(early.Err()))

	tests := []struct {
		name  string
		apply func(u *CriteriaUpdate[Person], p Root)
	}{
		{"wrong value type", func(u *CriteriaUpdate[Person], _ Root) { u.Set("age", "old") }},
		{"unknown attribute", func(u *CriteriaUpdate[Person], _ Root) { u.Set("nickname", "x") }},
		{"collection attribute", func(u *CriteriaUpdate[Person], _ Root) { u.Set("tags", "x") }},
		{"nil path", func(u *CriteriaUpdate[Person], _ Root) { u.SetPath(nil, "x") }},
		{"foreign path", func(u *CriteriaUpdate[Person], _ Root) {
			other := CreateQuery[Person](cb).From(Person{})
			u.SetPath(other.Get("name"), "x")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := CreateUpdate[Person](cb)
			p := u.From()
			tt.apply(u, p)
			assert.True(t, IsInvalidArgument(u.Err()), "got %v", u.Err())
			assert.Empty(t, u.Assignments())
		})
	}
}

func TestUpdateDuplicateAssignment(t *testing.T) {
	logger, logs := observedLogger()
	cb := testBuilder(t, WithBuilderLogger(logger))
	u := CreateUpdate[Person](cb)
	u.From()

	u.Set("name", "Bob").Set("name", "Rob")
	require.NoError(t, u.Err())
	assert.Len(t, u.Assignments(), 2)

	flags := u.Flags()
	require.Len(t, flags, 1)
	assert.Equal(t, FlagAmbiguous, flags[0].Kind)
	assert.Equal(t, 1, logs.FilterMessage("criteria construct flagged").Len())
}

func TestUpdateDuplicateAssignmentRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DuplicateAssignments = PolicyReject
	cb := testBuilder(t, WithConfig(cfg))
	u := CreateUpdate[Person](cb)
	u.From()

	u.Set("name", "Bob").Set("name", "Rob")
	assert.True(t, IsInvalidArgument(u.Err()))
	assert.Equal(t, CodeAmbiguous, ErrorCode(u.Err()))
	assert.Len(t, u.Assignments(), 1)
}

func TestDelete(t *testing.T) {
	cb := testBuilder(t)
	d := CreateDelete[Person](cb)
	assert.Nil(t, d.Root())

	p := d.From("p")
	d.Where(cb.Equal(p.Get("active"), false))
	require.NoError(t, d.Err())
	assert.Same(t, p, d.Root())
	assert.Equal(t, "(delete Person p (where (= p.active false)))", d.String())

	d.Where()
	assert.Nil(t, d.Restriction())
	assert.Equal(t, "(delete Person p)", d.String())
}
