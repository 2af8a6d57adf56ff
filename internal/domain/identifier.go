package domain

import (
	"github.com/google/uuid"
)

// Identifier wraps a UUID that is never the all-zero value.
type Identifier struct {
	value uuid.UUID
}

// NewIdentifier validates an existing UUID.
func NewIdentifier(id uuid.UUID) Result[Identifier] {
	if id == uuid.Nil {
		return Failure[Identifier](NewError(InvalidInput, "identifier must not be empty"))
	}
	return Success(Identifier{value: id})
}

// ParseIdentifier parses and validates textual input.
func ParseIdentifier(s string) Result[Identifier] {
	id, err := uuid.Parse(s)
	if err != nil {
		return Failure[Identifier](NewError(InvalidInput, "identifier is not a valid UUID").WithDetails(s))
	}
	return NewIdentifier(id)
}

// GenerateIdentifier returns a fresh random identifier.
func GenerateIdentifier() Identifier {
	return Identifier{value: uuid.New()}
}

func (i Identifier) UUID() uuid.UUID { return i.value }

func (i Identifier) String() string { return i.value.String() }

// IsZero reports whether i was never constructed through a factory.
func (i Identifier) IsZero() bool { return i.value == uuid.Nil }

func (i Identifier) MarshalText() ([]byte, error) {
	return []byte(i.value.String()), nil
}
