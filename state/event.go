package state

import (
	"reflect"

	"github.com/google/uuid"
)

var followUpNamespace = uuid.MustParse("6f1c2a4e-8b7d-4c39-9e21-5a0d3f7b8c16")

// NewEventID returns a fresh event identifier used for tracing.
func NewEventID() string {
	return uuid.NewString()
}

// FollowUpEventID derives the identifier of an event that a resolver builds
// in response to the event triggerID. The same inputs give the same ID.
func FollowUpEventID(triggerID, step string) string {
	return uuid.NewSHA1(followUpNamespace, []byte(triggerID+"/"+step)).String()
}

// VariantName returns the bare type name of a union variant, e.g.
// "SignedIn". Nil values return "nil".
func VariantName(v any) string {
	if v == nil {
		return "nil"
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
