package history

// TransformKind tags the variant a Transform holds.
type TransformKind uint8

const (
	Identity TransformKind = iota
	Write
	AddI32
	AddU64
	AddU512
	AddKeys
	Failure
)

func (k TransformKind) String() string {
	switch k {
	case Identity:
		return "Identity"
	case Write:
		return "Write"
	case AddI32:
		return "AddI32"
	case AddU64:
		return "AddU64"
	case AddU512:
		return "AddU512"
	case AddKeys:
		return "AddKeys"
	case Failure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// Transform describes one state change to fold into a commit. Exactly
// one payload field is meaningful, selected by Kind.
type Transform struct {
	Kind TransformKind

	WriteValue  StoredValue
	AddI32      int32
	AddU64      uint64
	AddU512     U512
	AddKeys     map[string]Key
	FailureText string
}

// NewWriteTransform overwrites a key's value unconditionally.
func NewWriteTransform(v StoredValue) Transform { return Transform{Kind: Write, WriteValue: v} }

// NewAddI32Transform adds a signed 32-bit delta to the current value.
func NewAddI32Transform(delta int32) Transform { return Transform{Kind: AddI32, AddI32: delta} }

// NewAddU64Transform adds an unsigned 64-bit delta to the current value.
func NewAddU64Transform(delta uint64) Transform { return Transform{Kind: AddU64, AddU64: delta} }

// NewAddU512Transform adds a U512 delta to the current value.
func NewAddU512Transform(delta U512) Transform { return Transform{Kind: AddU512, AddU512: delta} }

// NewAddKeysTransform merges entries into a NamedKeys value.
func NewAddKeysTransform(keys map[string]Key) Transform {
	return Transform{Kind: AddKeys, AddKeys: keys}
}

// NewFailureTransform marks a key as an execution-time failure that
// never reaches the store; History.Commit reports it as a
// CommitTypeMismatch result (with a nil error) and persists nothing from
// the batch.
func NewFailureTransform(reason string) Transform {
	return Transform{Kind: Failure, FailureText: reason}
}

// FailureKind classifies why applying a Transform to a prior StoredValue
// did not produce a new value.
type FailureKind int

const (
	// TypeMismatch means the prior value's kind does not match what the
	// transform requires (e.g. AddU64 against a NamedKeys value), or an
	// additive transform overflowed its numeric type.
	TypeMismatch FailureKind = iota
	// KeyNotFound means an additive transform targeted a key with no
	// prior value (additive transforms only ever update, never create).
	KeyNotFound
	// ExplicitFailure means the transform itself was a Failure.
	ExplicitFailure
)

func (k FailureKind) String() string {
	switch k {
	case TypeMismatch:
		return "TypeMismatch"
	case KeyNotFound:
		return "KeyNotFound"
	case ExplicitFailure:
		return "ExplicitFailure"
	default:
		return "Unknown"
	}
}

// ApplyError reports why Apply could not produce a new StoredValue.
type ApplyError struct {
	Kind     FailureKind
	Expected ValueKind
	Actual   ValueKind
	Msg      string
}

func (e *ApplyError) Error() string {
	switch e.Kind {
	case TypeMismatch:
		return "history: type mismatch: expected " + e.Expected.String() + ", got " + e.Actual.String()
	case KeyNotFound:
		return "history: key not found for additive transform"
	default:
		return "history: " + e.Msg
	}
}

// Apply folds transform onto prior, the key's existing StoredValue
// (prior == nil if the key has no existing value). It returns the new
// value to store, or an ApplyError if the transform cannot be applied —
// additive transforms require the prior value to exist and match the
// transform's type, and overflow is reported as a TypeMismatch rather
// than wrapping.
func Apply(transform Transform, prior *StoredValue) (StoredValue, error) {
	switch transform.Kind {
	case Identity:
		if prior == nil {
			return StoredValue{}, &ApplyError{Kind: KeyNotFound, Msg: "Identity against a missing key"}
		}
		return *prior, nil

	case Write:
		return transform.WriteValue, nil

	case AddI32:
		if prior == nil {
			return StoredValue{}, &ApplyError{Kind: KeyNotFound}
		}
		if prior.Kind != KindInt32 {
			return StoredValue{}, &ApplyError{Kind: TypeMismatch, Expected: KindInt32, Actual: prior.Kind}
		}
		sum := int64(prior.Int32) + int64(transform.AddI32)
		if sum > int64(int32(1<<31-1)) || sum < int64(int32(-1<<31)) {
			return StoredValue{}, &ApplyError{Kind: TypeMismatch, Msg: "AddI32 overflow"}
		}
		return NewInt32Value(int32(sum)), nil

	case AddU64:
		if prior == nil {
			return StoredValue{}, &ApplyError{Kind: KeyNotFound}
		}
		if prior.Kind != KindUInt64 {
			return StoredValue{}, &ApplyError{Kind: TypeMismatch, Expected: KindUInt64, Actual: prior.Kind}
		}
		sum := prior.UInt64 + transform.AddU64
		if sum < prior.UInt64 {
			return StoredValue{}, &ApplyError{Kind: TypeMismatch, Msg: "AddU64 overflow"}
		}
		return NewUInt64Value(sum), nil

	case AddU512:
		if prior == nil {
			return StoredValue{}, &ApplyError{Kind: KeyNotFound}
		}
		if prior.Kind != KindUInt512 {
			return StoredValue{}, &ApplyError{Kind: TypeMismatch, Expected: KindUInt512, Actual: prior.Kind}
		}
		sum, ok := prior.UInt512.Add(transform.AddU512)
		if !ok {
			return StoredValue{}, &ApplyError{Kind: TypeMismatch, Msg: "AddU512 overflow"}
		}
		return NewUInt512Value(sum), nil

	case AddKeys:
		if prior == nil {
			return StoredValue{}, &ApplyError{Kind: KeyNotFound}
		}
		if prior.Kind != KindNamedKeys {
			return StoredValue{}, &ApplyError{Kind: TypeMismatch, Expected: KindNamedKeys, Actual: prior.Kind}
		}
		merged := make(map[string]Key, len(prior.NamedKeys)+len(transform.AddKeys))
		for k, v := range prior.NamedKeys {
			merged[k] = v
		}
		for k, v := range transform.AddKeys {
			merged[k] = v
		}
		return NewNamedKeysValue(merged), nil

	case Failure:
		return StoredValue{}, &ApplyError{Kind: ExplicitFailure, Msg: transform.FailureText}

	default:
		return StoredValue{}, &ApplyError{Kind: TypeMismatch, Msg: "unknown transform kind"}
	}
}
