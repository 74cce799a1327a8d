package model

import (
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDifficulty(t *testing.T) {
	cases := map[string]Difficulty{
		"easy":      DifficultyEasy,
		"  Medium ": DifficultyMedium,
		"HARD":      DifficultyHard,
		"brutal":    DifficultyMedium,
		"":          DifficultyMedium,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseDifficulty(input), "input %q", input)
	}
}

func TestNewRecipeID(t *testing.T) {
	pattern := regexp.MustCompile(`^\d+-[0-9a-f]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRecipeID()
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestClampRating(t *testing.T) {
	assert.Equal(t, 0.0, ClampRating(-1))
	assert.Equal(t, 5.0, ClampRating(9.5))
	assert.Equal(t, 3.5, ClampRating(3.5))
	assert.Equal(t, 0.0, ClampRating(0))
	assert.Equal(t, 5.0, ClampRating(5))
	assert.Equal(t, 0.0, ClampRating(math.NaN()))
	assert.Equal(t, 5.0, ClampRating(math.Inf(1)))
	assert.Equal(t, 0.0, ClampRating(math.Inf(-1)))
}

func TestRenumberSteps(t *testing.T) {
	steps := []Step{
		{ID: 99, Instruction: "chop"},
		{ID: 0, Instruction: "fry"},
		{ID: -3, Instruction: "serve"},
	}
	RenumberSteps(steps)

	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, i+1, s.ID)
	}
	assert.Equal(t, "chop", steps[0].Instruction)
	assert.Equal(t, "serve", steps[2].Instruction)
}

func TestRecipeList_Value(t *testing.T) {
	t.Run("empty list stores empty array", func(t *testing.T) {
		v, err := RecipeList{}.Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})

	t.Run("nil list stores empty array", func(t *testing.T) {
		var l RecipeList
		v, err := l.Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})
}

func TestRecipeList_Scan(t *testing.T) {
	t.Run("bytes", func(t *testing.T) {
		var l RecipeList
		require.NoError(t, l.Scan([]byte(`[{"id":"r1","title":"Soup"}]`)))
		require.Len(t, l, 1)
		assert.Equal(t, "Soup", l[0].Title)
	})

	t.Run("string", func(t *testing.T) {
		var l RecipeList
		require.NoError(t, l.Scan(`[{"id":"r1","title":"Soup"}]`))
		require.Len(t, l, 1)
	})

	t.Run("nil resets to empty", func(t *testing.T) {
		l := RecipeList{{ID: "stale"}}
		require.NoError(t, l.Scan(nil))
		assert.Empty(t, l)
	})

	t.Run("unsupported type", func(t *testing.T) {
		var l RecipeList
		assert.Error(t, l.Scan(42))
	})

	t.Run("malformed json", func(t *testing.T) {
		var l RecipeList
		assert.Error(t, l.Scan([]byte(`{{{corrupted`)))
	})
}
