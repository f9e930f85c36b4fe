package core

import "github.com/volatiletech/null/v8"

// Three-state JSON fields for partial updates: an absent key leaves the
// target untouched, an explicit null clears it, a value replaces it.
// Set reports whether the key was present in the request body at all.

type OptString struct {
	null.String
	Set bool
}

func (o *OptString) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.String.UnmarshalJSON(data)
}

type OptInt struct {
	null.Int
	Set bool
}

func (o *OptInt) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.Int.UnmarshalJSON(data)
}

type OptTime struct {
	null.Time
	Set bool
}

func (o *OptTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.Time.UnmarshalJSON(data)
}
