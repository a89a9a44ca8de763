package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalStates(t *testing.T) {
	cases := []struct {
		name     string
		opt      Optional[string]
		isSet    bool
		isUnset  bool
		hasValue bool
	}{
		{"zero value is absent", Optional[string]{}, false, false, false},
		{"NotSet is absent", NotSet[string](), false, false, false},
		{"Unset clears the field", Unset[string](), true, true, false},
		{"value set", NewOptional("doing"), true, false, true},
		{"pointer set", NewOptionalPtr(ptr("doing")), true, false, true},
		{"nil pointer clears", NewOptionalPtr[string](nil), true, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.isSet, tc.opt.IsSet())
			assert.Equal(t, tc.isUnset, tc.opt.IsUnset())
			assert.Equal(t, tc.hasValue, tc.opt.HasValue())
			if tc.hasValue {
				require.NotNil(t, tc.opt.Value())
				assert.Equal(t, "doing", *tc.opt.Value())
			} else {
				assert.Nil(t, tc.opt.Value())
			}
		})
	}
}

func TestNewOptionalCopiesTheValue(t *testing.T) {
	status := "todo"
	opt := NewOptional(status)
	status = "done"
	assert.Equal(t, "todo", *opt.Value())
}

func ptr[T any](v T) *T { return &v }
