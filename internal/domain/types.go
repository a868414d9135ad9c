package domain

import (
	"errors"
	"strings"
	"time"
)

type SessionID string
type MessageID string
type MemoryID string
type MatterID string

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

type Jurisdiction string

const (
	JurisdictionKansas     Jurisdiction = "kansas"
	JurisdictionMissouri   Jurisdiction = "missouri"
	JurisdictionFederal    Jurisdiction = "federal"
	JurisdictionMultistate Jurisdiction = "multistate"
)

// ParseJurisdiction maps free text onto the fixed jurisdiction set.
// Anything unrecognised yields def.
func ParseJurisdiction(s string, def Jurisdiction) Jurisdiction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kansas", "ks":
		return JurisdictionKansas
	case "missouri", "mo":
		return JurisdictionMissouri
	case "federal", "fed":
		return JurisdictionFederal
	case "multistate", "multi":
		return JurisdictionMultistate
	default:
		return def
	}
}

// Label is the display name of the jurisdiction.
func (j Jurisdiction) Label() string {
	switch j {
	case JurisdictionKansas:
		return "Kansas"
	case JurisdictionMissouri:
		return "Missouri"
	case JurisdictionFederal:
		return "Federal"
	case JurisdictionMultistate:
		return "Multi-state"
	default:
		return string(j)
	}
}

type Timestamp = time.Time

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMemoryNotFound  = errors.New("memory not found")
)
