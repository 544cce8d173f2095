package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

func TestMemory_CreateAndDuplicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := schemas.SavedScenarioInput{URL: pageURL, Title: "Valid login", UserStory: "As a user, I can sign in.", Steps: []string{"Click 'Sign in'"}}

	first, err := m.CreateSavedScenario(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	again, err := m.CreateSavedScenario(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, again, "same url and title is a duplicate")

	sameStory, err := m.CreateSavedScenario(ctx, schemas.SavedScenarioInput{URL: pageURL, Title: "Sign in works", UserStory: "as a USER i can sign in"})
	require.NoError(t, err)
	assert.Nil(t, sameStory, "an equivalent story is a duplicate")

	otherURL, err := m.CreateSavedScenario(ctx, schemas.SavedScenarioInput{URL: "https://acme.test/signup", Title: "Valid login"})
	require.NoError(t, err)
	assert.NotNil(t, otherURL, "uniqueness is per url")

	for _, title := range []string{"No story A", "No story B"} {
		saved, err := m.CreateSavedScenario(ctx, schemas.SavedScenarioInput{URL: pageURL, Title: title})
		require.NoError(t, err)
		assert.NotNil(t, saved, "blank stories never collide")
	}

	_, err = m.CreateSavedScenario(ctx, schemas.SavedScenarioInput{URL: pageURL})
	assert.ErrorIs(t, err, ErrInvalidScenario, "a title is required")

	all, err := m.GetAllSavedScenarios(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byURL, err := m.GetSavedScenariosByURL(ctx, pageURL)
	require.NoError(t, err)
	assert.Len(t, byURL, 3)
	assert.Equal(t, "Valid login", byURL[0].Title)
}

func TestMemory_CreateWithoutURL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := schemas.SavedScenarioInput{Title: "Login", Steps: []string{"Click 'Sign in'"}}

	first, err := m.CreateSavedScenario(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Empty(t, first.URL)

	again, err := m.CreateSavedScenario(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, again, "url-less scenarios dedupe by title")

	other, err := m.CreateSavedScenario(ctx, schemas.SavedScenarioInput{URL: pageURL, Title: "Login"})
	require.NoError(t, err)
	assert.NotNil(t, other)

	byURL, err := m.GetSavedScenariosByURL(ctx, "")
	require.NoError(t, err)
	assert.Len(t, byURL, 1)
}

func TestMemory_Update(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a, err := m.CreateSavedScenario(ctx, schemas.SavedScenarioInput{URL: pageURL, Title: "A", Steps: []string{"one"}})
	require.NoError(t, err)
	_, err = m.CreateSavedScenario(ctx, schemas.SavedScenarioInput{URL: pageURL, Title: "B"})
	require.NoError(t, err)

	story := "Signing in with a bad password shows an error"
	updated, err := m.UpdateSavedScenario(ctx, a.ID, schemas.SavedScenarioUpdate{Steps: []string{"two", "three"}, UserStory: &story})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "A", updated.Title, "nil fields are left untouched")
	assert.Equal(t, []string{"two", "three"}, updated.Steps)
	assert.Equal(t, story, updated.UserStory)

	missing, err := m.UpdateSavedScenario(ctx, "does-not-exist", schemas.SavedScenarioUpdate{Steps: []string{}})
	require.NoError(t, err)
	assert.Nil(t, missing)

	taken := "B"
	_, err = m.UpdateSavedScenario(ctx, a.ID, schemas.SavedScenarioUpdate{Steps: []string{"two"}, Title: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	same := "A"
	_, err = m.UpdateSavedScenario(ctx, a.ID, schemas.SavedScenarioUpdate{Steps: []string{"two"}, Title: &same})
	assert.NoError(t, err, "a scenario never conflicts with itself")

	_, err = m.UpdateSavedScenario(ctx, a.ID, schemas.SavedScenarioUpdate{Title: &same})
	assert.ErrorIs(t, err, ErrInvalidScenario, "steps are required")
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	steps := []string{"one"}
	saved, err := m.CreateSavedScenario(ctx, schemas.SavedScenarioInput{URL: pageURL, Title: "A", Steps: steps})
	require.NoError(t, err)

	steps[0] = "mutated input"
	saved.Steps[0] = "mutated output"

	all, err := m.GetAllSavedScenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, all[0].Steps)
}

func TestMemory_ConcurrentCreatesKeepOneRecord(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	results := make(chan *schemas.SavedScenario, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			saved, err := m.CreateSavedScenario(ctx, schemas.SavedScenarioInput{URL: pageURL, Title: "Race"})
			assert.NoError(t, err)
			results <- saved
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for r := range results {
		if r != nil {
			created++
		}
	}
	assert.Equal(t, 1, created)
}
