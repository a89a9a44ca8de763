package patch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/model/mtask"
)

func TestTaskPatchStatusOnly(t *testing.T) {
	p := TaskPatch{Status: NewOptional(mtask.StatusDone)}
	require.True(t, p.HasChanges())
	require.True(t, p.StatusOnly())

	p.Title = NewOptional("new title")
	require.True(t, p.HasChanges())
	require.False(t, p.StatusOnly())
}

func TestTaskPatchClearAssignee(t *testing.T) {
	p := TaskPatch{AssigneeID: Unset[int64]()}
	require.True(t, p.HasChanges())
	require.False(t, p.StatusOnly())
	require.True(t, p.AssigneeID.IsUnset())
}

func TestEmptyPatchHasNoChanges(t *testing.T) {
	require.False(t, TaskPatch{}.HasChanges())
	require.False(t, FundingPatch{}.HasChanges())
	require.False(t, PostPatch{}.HasChanges())
	require.False(t, AccountPatch{}.HasChanges())
}

func TestOptionalOr(t *testing.T) {
	require.Equal(t, "kept", NotSet[string]().Or("kept"))
	require.Equal(t, "kept", Unset[string]().Or("kept"))
	require.Equal(t, "new", NewOptional("new").Or("kept"))
}
