package domain

import "errors"

var (
	ErrPersonRequired          = errors.New("identifier: person id is required")
	ErrIdentifierValueRequired = errors.New("identifier: value is required")
	ErrIdentifierTypeRequired  = errors.New("identifier: type is required")
)
