package patch

// Optional represents a field that may or may not be present in a patch.
// It distinguishes three states:
//   - not set (field absent from the patch) - zero value, set=false
//   - set to nil (UNSET, clear the stored value) - value=nil, set=true
//   - set to a value - value=&T, set=true
type Optional[T any] struct {
	value *T
	set   bool
}

// NewOptional creates an Optional holding a value.
func NewOptional[T any](val T) Optional[T] {
	return Optional[T]{value: &val, set: true}
}

// NewOptionalPtr creates an Optional from a pointer. A nil pointer yields an
// explicitly unset Optional.
func NewOptionalPtr[T any](val *T) Optional[T] {
	if val == nil {
		return Unset[T]()
	}
	return Optional[T]{value: val, set: true}
}

// Unset creates an explicitly unset Optional (clear the field).
func Unset[T any]() Optional[T] {
	return Optional[T]{value: nil, set: true}
}

// NotSet creates a not-set Optional. This is the zero value of Optional[T],
// provided as a named constructor for clarity.
func NotSet[T any]() Optional[T] {
	return Optional[T]{}
}

// IsSet returns true if the field was explicitly set, even if to nil.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// IsUnset returns true if the field was set but the value is nil.
func (o Optional[T]) IsUnset() bool {
	return o.set && o.value == nil
}

// HasValue returns true if set and the value is non-nil.
func (o Optional[T]) HasValue() bool {
	return o.set && o.value != nil
}

// Value returns the pointer value (nil if UNSET or not set).
func (o Optional[T]) Value() *T {
	return o.value
}

// Or returns the held value, or fallback when the field is not set or unset.
func (o Optional[T]) Or(fallback T) T {
	if o.HasValue() {
		return *o.value
	}
	return fallback
}
