package dsl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/dsl"
)

func TestBuilderShapesTreeAndRegistry(t *testing.T) {
	tree, reg, err := dsl.New().
		Binding(domain.BindingConfig{
			ID:        "tiles",
			Location:  "mem://tiles",
			Direction: domain.DirectionInput,
			Encoding:  domain.EncodingBits,
		}).
		Root("board", "board").
		Attr("material", "wood").
		Child("tile-1", "tile").Bind("tiles").Style("color", "white").Up().
		Child("tile-2", "tile").Bind("tiles").Up().
		Done().
		Build()
	require.NoError(t, err)

	require.Equal(t, 3, tree.Len())
	board := tree.Root()
	require.NotNil(t, board)
	assert.Equal(t, "board", board.ID())
	require.Len(t, board.Children(), 2)

	t1, ok := tree.Get("tile-1")
	require.True(t, ok)
	assert.Equal(t, []string{"tiles"}, t1.BindingRefs())
	color, ok := t1.Style("color")
	require.True(t, ok)
	assert.Equal(t, "white", color)

	_, ok = reg.Config("tiles")
	assert.True(t, ok)

	groups, err := reg.Resolve(tree)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Len())
}

func TestBuilderRejectsInvalidBinding(t *testing.T) {
	_, _, err := dsl.New().
		Binding(domain.BindingConfig{ID: "broken"}).
		Build()
	require.ErrorContains(t, err, "broken")
}

func TestBuilderRejectsDuplicateEntity(t *testing.T) {
	_, _, err := dsl.New().
		Root("a", "x").
		Child("a", "x").Up().
		Done().
		Build()
	require.Error(t, err)
}

func TestUpAtRootStays(t *testing.T) {
	b := dsl.New()
	root := b.Root("a", "x")
	assert.Same(t, root, root.Up())
}
