package domain

// PresenceStatus is the wire and in-memory status vocabulary for a user.
type PresenceStatus string

const (
	StatusOnline       PresenceStatus = "online"
	StatusNotAvailable PresenceStatus = "not_available"
	StatusOffline      PresenceStatus = "offline"
)

// PresenceRecord is the in-memory-only row the registry keeps per NPID
// currently present (absence from the table means offline).
type PresenceRecord struct {
	Status            PresenceStatus
	LastHeartbeat     int64
	NowPlaying        string
	PendingOnlinePoll bool
}
