// Package codec converts typed cache values to and from the bytes handed to a
// provider.
package codec

// Codec encodes/decodes values V to []byte for storage.
// Name identifies the format in logs.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
	Name() string
}
