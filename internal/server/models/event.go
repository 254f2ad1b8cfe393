package models

// RevocationEvent is the best-effort push payload sent to a user's live
// clients when an upload is revoked. Delivery is a latency optimization;
// the heartbeat path remains the authoritative enforcement mechanism.
type RevocationEvent struct {
	Action       string `json:"action"`
	UploadID     string `json:"upload_id"`
	SessionToken string `json:"session_token"`
}

// ActionRevoked is the only event action currently published.
const ActionRevoked = "REVOKED"
