package domain

// Origin tells the client where the served bytes came from.
type Origin string

const (
	OriginOriginal Origin = "original"
	OriginCached   Origin = "cached"
	OriginNew      Origin = "new"
)

// Dimensions is a fully resolved width/height pair in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Query carries the dimensions requested by the client. A nil axis means the
// client did not ask for it. Values stay floating point until validation so
// that fractional and NaN inputs are rejected rather than silently truncated.
type Query struct {
	Width  *float64
	Height *float64
}

// Variant describes a cached resized image as found on the backing store.
// Width and Height are populated only when Exists is true.
type Variant struct {
	Key    string
	Exists bool
	Width  int
	Height int
}

// Served is the result of one image request, owned by the boundary layer
// until written to the client.
type Served struct {
	Origin Origin
	Data   []byte
	Width  int
	Height int
}
