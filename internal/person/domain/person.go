package domain

import "time"

// Person is a CO Person record together with the attributes the assigner reads.
// Names, email addresses and the eppn identifier are maintained by an external
// provisioning system; only identifiers are ever written here.
type Person struct {
	ID             int64
	CoID           int64
	Status         Status
	Identifiers    []Identifier
	Names          []Name
	EmailAddresses []EmailAddress
	CreatedAt      time.Time
}

// Identifier is an identifier attached to a Person.
type Identifier struct {
	ID        int64
	PersonID  int64
	Value     string
	Type      IdentifierType
	Status    Status
	CreatedAt time.Time
}

// Name is a person name of a given type.
type Name struct {
	Given  string
	Family string
	Type   NameType
}

// EmailAddress is an email address of a given type.
type EmailAddress struct {
	Mail string
	Type EmailType
}

type IdentifierType string

const (
	IdentifierTypeEPPN    IdentifierType = "eppn"
	IdentifierTypeOIDCSub IdentifierType = "oidcsub"
	IdentifierTypeEPTID   IdentifierType = "eptid"
	IdentifierTypeNetwork IdentifierType = "network"
)

type NameType string

const (
	NameTypeOfficial  NameType = "official"
	NameTypePreferred NameType = "preferred"
)

type EmailType string

const (
	EmailTypeOfficial  EmailType = "official"
	EmailTypePersonal  EmailType = "personal"
	EmailTypeDelivery  EmailType = "delivery"
	EmailTypeForwarded EmailType = "forwarding"
)

type Status string

const (
	StatusActive    Status = "Active"
	StatusSuspended Status = "Suspended"
)

// SaveOptions controls side effects of persisting an Identifier.
type SaveOptions struct {
	// Provision queues a provisioning event for the new identifier in the same transaction.
	Provision bool
}

// FirstIdentifier returns the value of the first identifier of type t.
func (p *Person) FirstIdentifier(t IdentifierType) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, i := range p.Identifiers {
		if i.Type == t {
			return i.Value, true
		}
	}
	return "", false
}

// FirstEmail returns the first email address of type t.
func (p *Person) FirstEmail(t EmailType) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, e := range p.EmailAddresses {
		if e.Type == t {
			return e.Mail, true
		}
	}
	return "", false
}

// FirstName returns the first name of type t.
func (p *Person) FirstName(t NameType) (Name, bool) {
	if p == nil {
		return Name{}, false
	}
	for _, n := range p.Names {
		if n.Type == t {
			return n, true
		}
	}
	return Name{}, false
}

// Validate validates the identifier for persistence. Returns an error describing the first validation failure.
func (i *Identifier) Validate() error {
	if i.PersonID <= 0 {
		return ErrPersonRequired
	}
	if i.Value == "" {
		return ErrIdentifierValueRequired
	}
	if i.Type == "" {
		return ErrIdentifierTypeRequired
	}
	if i.Status == "" {
		i.Status = StatusActive
	}
	return nil
}
