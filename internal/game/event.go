package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown       EventType = iota
	EventTypeTick                    // Tick boundary with RNG seed
	EventTypeSpawn                   // Enemy entered the playfield
	EventTypeShot                    // Vehicle fired
	EventTypeDamage                  // Projectile hit a vehicle
	EventTypeDestroyed               // Vehicle removed from the roster
	EventTypeRespawn                 // Player came back at its anchor
	EventTypeTileDestroyed           // Projectile broke a tile
	EventTypePowerUpDrop             // Flagged enemy left a power-up behind
	EventTypePowerUpPickup           // Player collected a power-up
	EventTypeFortify                 // Base walls turned to steel or back
	EventTypeLevelStart
	EventTypeLevelComplete
	EventTypeRoundLost
	EventTypeVictory
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8           `json:"version"`   // Schema version
	Type      EventType       `json:"type"`      // Event type
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	TickNum   uint64          `json:"tickNum"`   // Game tick this occurred in
	SourceID  string          `json:"sourceId"`  // Vehicle that caused it (for rate limiting)
	Payload   json.RawMessage `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeSpawn:
		return "spawn"
	case EventTypeShot:
		return "shot"
	case EventTypeDamage:
		return "damage"
	case EventTypeDestroyed:
		return "destroyed"
	case EventTypeRespawn:
		return "respawn"
	case EventTypeTileDestroyed:
		return "tile_destroyed"
	case EventTypePowerUpDrop:
		return "powerup_drop"
	case EventTypePowerUpPickup:
		return "powerup_pickup"
	case EventTypeFortify:
		return "fortify"
	case EventTypeLevelStart:
		return "level_start"
	case EventTypeLevelComplete:
		return "level_complete"
	case EventTypeRoundLost:
		return "round_lost"
	case EventTypeVictory:
		return "victory"
	default:
		return "unknown"
	}
}

// MarshalText writes the event type by name in the NDJSON log
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	RNGSeed      int64 `json:"rngSeed"`
	VehicleCount int   `json:"vehicleCount"`
	DeltaTimeNs  int64 `json:"deltaTimeNs"`
}

// SpawnPayload describes a new enemy
type SpawnPayload struct {
	VehicleID      VehicleID `json:"vehicleId"`
	Kind           string    `json:"kind"`
	X              int       `json:"x"`
	Y              int       `json:"y"`
	CarriesPowerUp bool      `json:"carriesPowerUp"`
	Remaining      int       `json:"remaining"`
}

// ShotPayload describes a fired projectile
type ShotPayload struct {
	VehicleID    VehicleID    `json:"vehicleId"`
	ProjectileID ProjectileID `json:"projectileId"`
	Dir          string       `json:"dir"`
	Power        int          `json:"power"`
}

// DamagePayload contains damage event details
type DamagePayload struct {
	AttackerID VehicleID `json:"attackerId"`
	VictimID   VehicleID `json:"victimId"`
	Absorbed   bool      `json:"absorbed"`
	VictimHP   int       `json:"victimHp"`
}

// DestroyedPayload contains kill details
type DestroyedPayload struct {
	VehicleID VehicleID `json:"vehicleId"`
	Role      string    `json:"role"`
	KillerID  VehicleID `json:"killerId,omitempty"`
	Cause     string    `json:"cause"` // "projectile" or "grenade"
}

// RespawnPayload contains respawn event details
type RespawnPayload struct {
	VehicleID VehicleID `json:"vehicleId"`
	Lives     int       `json:"lives"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
}

// TilePayload describes a terrain change
type TilePayload struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Tile string `json:"tile"`
}

// PowerUpPayload describes a power-up drop or pickup
type PowerUpPayload struct {
	PowerUpID uint32    `json:"powerUpId"`
	Type      string    `json:"type"`
	Effect    string    `json:"effect"`
	VehicleID VehicleID `json:"vehicleId,omitempty"`
}

// FortifyPayload reports fortification start and end
type FortifyPayload struct {
	Active    bool `json:"active"`
	Converted int  `json:"converted"`
}

// LevelPayload describes level transitions and the final outcome
type LevelPayload struct {
	Level   int    `json:"level"` // 1-based
	Name    string `json:"name"`
	Quota   int    `json:"quota,omitempty"`
	Players int    `json:"players"`
	Reason  string `json:"reason,omitempty"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, sourceID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		SourceID:  sourceID,
		Payload:   EncodePayload(payload),
	}
}

// EventSink receives simulation events. *EventLog satisfies it.
type EventSink interface {
	EmitSimple(eventType EventType, tickNum uint64, sourceID string, payload interface{}) bool
}

type nopSink struct{}

func (nopSink) EmitSimple(EventType, uint64, string, interface{}) bool { return false }
