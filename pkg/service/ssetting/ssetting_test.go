package ssetting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/service/ssetting"
	"github.com/crewbase/crewbase/pkg/testutil"
)

func newService(ctx context.Context, t *testing.T) ssetting.SettingService {
	t.Helper()
	return ssetting.New(testutil.OpenTestDB(ctx, t))
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	_, ok, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Set(ctx, "k", "a"))
	require.NoError(t, svc.Set(ctx, "k", "b"))

	value, ok, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", value)
}

func TestGetBoolFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	v, err := svc.GetBool(ctx, ssetting.KeyNotificationsEnabled, true)
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, svc.SetBool(ctx, ssetting.KeyNotificationsEnabled, false))
	v, err = svc.GetBool(ctx, ssetting.KeyNotificationsEnabled, true)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestGetIntIgnoresMalformedValue(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	require.NoError(t, svc.Set(ctx, ssetting.KeyEditWindowMinutes, "not a number"))
	v, err := svc.GetInt(ctx, ssetting.KeyEditWindowMinutes, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, v)

	require.NoError(t, svc.Set(ctx, ssetting.KeyEditWindowMinutes, "30"))
	v, err = svc.GetInt(ctx, ssetting.KeyEditWindowMinutes, 15)
	require.NoError(t, err)
	assert.Equal(t, 30, v)
}

func TestKindToggleKey(t *testing.T) {
	assert.Equal(t, "notifications.task_assigned.enabled", ssetting.KindToggleKey("task_assigned"))
}
