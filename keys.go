package stateformat

import (
	"errors"

	"github.com/google/uuid"
)

// DefaultNamespace tags every cache key and protection context produced by
// this package.
const DefaultNamespace = "stateformat"

var errMalformedReference = errors.New("malformed reference")

func newReference() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// parseReference accepts only the canonical lowercase form newReference emits;
// uuid.Parse alone would also take braces, urn prefixes, and upper case.
func parseReference(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", errMalformedReference
	}
	if id.String() != s || id.Version() != 4 {
		return "", errMalformedReference
	}
	return s, nil
}

// cacheKey joins namespace, purpose, and reference. The reference has a fixed
// length and alphabet, so the key stays injective in reference for a fixed
// namespace and purpose even when the purpose contains the separator.
func cacheKey(namespace, purpose, reference string) string {
	return namespace + ":" + purpose + ":" + reference
}

// protectionPurposes is the chain handed to protect.Provider. Scheme and
// purpose both select distinct keys.
func protectionPurposes(namespace, scheme, purpose string) []string {
	return []string{namespace, scheme, purpose}
}
