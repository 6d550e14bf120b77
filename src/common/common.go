package common

import (
	"github.com/google/uuid"
)

func mustUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		// Callers only pass ids that already came out of the store or a
		// validated token, so a parse failure is a programming error.
		panic(err)
	}
	return id
}
