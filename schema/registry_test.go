package schema_test

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/xframe/internal/fixture"
	"github.com/syssam/xframe/schema"
)

func TestEntityMetadata(t *testing.T) {
	r := schema.NewRegistry()
	e, err := schema.For[fixture.SaleOrder](r)
	require.NoError(t, err)

	assert.Equal(t, "CRM_SaleOrder", e.Table)
	assert.Equal(t, "SaleOrder", e.Name)
	assert.Equal(t, 4, e.FieldCount(), "nomap and navigations are not counted")

	keys := e.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "OrderID", keys[0].Name)
	require.NotNil(t, e.Identity())
	assert.Equal(t, "OrderID", e.Identity().Name)

	name, ok := e.Field("ClientName")
	require.True(t, ok)
	assert.True(t, name.NoMapped)
	assert.False(t, name.Mapped())

	navs := e.Navigations()
	require.Len(t, navs, 2)
	assert.Equal(t, "Client", navs[0].Name)
	assert.Equal(t, []string{"ClientID"}, navs[0].ForeignKey.InnerKeys)
	assert.Equal(t, []string{"ClientID"}, navs[0].ForeignKey.OuterKeys)
	assert.Equal(t, reflect.TypeFor[fixture.Client](), navs[0].Target())
}

func TestCompositeForeignKey(t *testing.T) {
	e, err := schema.For[fixture.AccountMarket](schema.NewRegistry())
	require.NoError(t, err)
	f, ok := e.Field("ClientAccount")
	require.True(t, ok)
	assert.Equal(t, []string{"ClientID", "AccountID"}, f.ForeignKey.InnerKeys)
	assert.Equal(t, []string{"ClientID", "AccountID"}, f.ForeignKey.OuterKeys)
}

func TestColumnRename(t *testing.T) {
	type Renamed struct {
		ID   int    `xf:"renamed_id,key"`
		Name string `xf:"display_name"`
		Skip string `xf:"-"`
	}
	e, err := schema.For[Renamed](schema.NewRegistry())
	require.NoError(t, err)
	id, _ := e.Field("ID")
	assert.Equal(t, "renamed_id", id.Column)
	name, _ := e.Field("Name")
	assert.Equal(t, "display_name", name.Column)
	assert.Equal(t, 2, e.FieldCount())
	assert.Equal(t, "Renamed", e.Table)
}

func TestPluralTables(t *testing.T) {
	type Invoice struct {
		ID int `xf:",key"`
	}
	r := schema.NewRegistry(schema.WithPluralTables())
	e, err := schema.For[Invoice](r)
	require.NoError(t, err)
	assert.Equal(t, "Invoices", e.Table)

	// TableName wins over pluralization.
	c, err := schema.For[fixture.Client](r)
	require.NoError(t, err)
	assert.Equal(t, "Bas_Client", c.Table)
}

func TestInvalidEntities(t *testing.T) {
	r := schema.NewRegistry()

	_, err := r.Entity(reflect.TypeFor[int]())
	require.ErrorIs(t, err, schema.ErrInvalidEntity)

	type BadOption struct {
		ID int `xf:",primary"`
	}
	_, err = schema.For[BadOption](r)
	require.ErrorIs(t, err, schema.ErrInvalidEntity)

	type BadForeignKey struct {
		ID     int
		Client *fixture.Client `xf:",fk=Missing"`
	}
	_, err = schema.For[BadForeignKey](r)
	require.ErrorIs(t, err, schema.ErrInvalidEntity)

	type Unbalanced struct {
		A, B   int
		Client *fixture.Client `xf:",fk=A+B:ClientID"`
	}
	_, err = schema.For[Unbalanced](r)
	require.ErrorIs(t, err, schema.ErrInvalidEntity)
}

func TestIsScalar(t *testing.T) {
	assert.True(t, schema.IsScalar(reflect.TypeFor[int]()))
	assert.True(t, schema.IsScalar(reflect.TypeFor[*string]()))
	assert.True(t, schema.IsScalar(reflect.TypeFor[time.Time]()))
	assert.True(t, schema.IsScalar(reflect.TypeFor[fixture.State]()))
	assert.True(t, schema.IsScalar(reflect.TypeFor[[]byte]()))
	assert.False(t, schema.IsScalar(reflect.TypeFor[fixture.Client]()))
	assert.False(t, schema.IsScalar(reflect.TypeFor[[]int]()))
}

func TestRegistryConcurrentLookup(t *testing.T) {
	r := schema.NewRegistry()
	var wg sync.WaitGroup
	got := make([]*schema.Entity, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := r.Entity(reflect.TypeFor[*fixture.Client]())
			assert.NoError(t, err)
			got[i] = e
		}(i)
	}
	wg.Wait()
	for _, e := range got[1:] {
		assert.Same(t, got[0], e)
	}
	assert.Equal(t, 1, r.Len())
}
