package serializer

// Serializer converts a value to and from an associative array.
type Serializer[T any] interface {
	Serialize(v T) map[string]any
	Unserialize(m map[string]any) (T, error)
}
