package proto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// GroupIDLength is the decoded size of a group identifier.
const GroupIDLength = 32

var (
	ErrMissingRecipient   = errors.New("Missing message recipient")
	ErrAmbiguousRecipient = errors.New("Recipient must name either a person or a group, not both")
	ErrGroupIDEncoding    = errors.New("Group id is not valid base64")
	ErrGroupIDLength      = errors.New("Invalid group id")
)

type RecipientKind string

const (
	RecipientPerson RecipientKind = "person"
	RecipientGroup  RecipientKind = "group"
)

// Recipient is the addressing shape accepted on the REST surface.
type Recipient struct {
	Kind  RecipientKind `json:"kind"`
	Value string        `json:"value"`
}

// Target is a resolved message target. Exactly one of Person or Group is set.
type Target struct {
	Person string
	Group  string
}

// Target resolves the reference into a validated Target.
func (r Recipient) Target() (Target, error) {
	value := strings.TrimSpace(r.Value)
	var t Target
	switch r.Kind {
	case RecipientPerson:
		t.Person = value
	case RecipientGroup:
		t.Group = value
	case "":
		return Target{}, ErrMissingRecipient
	default:
		return Target{}, fmt.Errorf("unknown recipient kind %q", r.Kind)
	}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

func (t Target) Validate() error {
	switch {
	case t.Person != "" && t.Group != "":
		return ErrAmbiguousRecipient
	case t.Person == "" && t.Group == "":
		return ErrMissingRecipient
	case t.Group != "":
		return ValidateGroupID(t.Group)
	}
	return nil
}

// ValidateGroupID checks that id is standard base64 for exactly GroupIDLength bytes.
func ValidateGroupID(id string) error {
	raw, err := base64.StdEncoding.DecodeString(id)
	if err != nil {
		return ErrGroupIDEncoding
	}
	if len(raw) != GroupIDLength {
		return ErrGroupIDLength
	}
	return nil
}
