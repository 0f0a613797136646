package dav_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averich/dav-bridge/internal/dav"
)

func TestPropPatchHandle(t *testing.T) {
	t.Parallel()

	patch := dav.NewPropPatch(map[string]string{
		dav.PropDisplayName:         "Team",
		dav.PropCalendarDescription: "Shared team calendar",
		"{X:}unknown":               "x",
	})

	var got map[string]string
	err := patch.Handle([]string{dav.PropDisplayName, dav.PropCalendarDescription}, func(m map[string]string) error {
		got = m
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		dav.PropDisplayName:         "Team",
		dav.PropCalendarDescription: "Shared team calendar",
	}, got)
	assert.Equal(t, 2, patch.HandledCount())
	assert.Equal(t, []string{"{X:}unknown"}, patch.Remaining())
}

func TestPropPatchHandleNothingClaimed(t *testing.T) {
	t.Parallel()

	patch := dav.NewPropPatch(map[string]string{"{X:}unknown": "x"})

	called := false
	err := patch.Handle([]string{dav.PropDisplayName}, func(map[string]string) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "a handler with no matching mutations must not run")
	assert.Equal(t, 0, patch.HandledCount())
}

func TestPropPatchHandleError(t *testing.T) {
	t.Parallel()

	patch := dav.NewPropPatch(map[string]string{dav.PropDisplayName: "Team"})

	boom := errors.New("backend down")
	err := patch.Handle([]string{dav.PropDisplayName}, func(map[string]string) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, patch.HandledCount(), "failed mutations stay unhandled")
	assert.Equal(t, []string{dav.PropDisplayName}, patch.Remaining())
}
