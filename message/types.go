package message

// Packet type bytes, one per variant in spec.md §3's packet catalog.
const (
	TypeLoginRequest  byte = 'L'
	TypeLogoutRequest byte = 'O'
	TypeCltHeartbeat  byte = 'R'
	TypeLoginAccepted byte = 'A'
	TypeLoginRejected byte = 'J'
	TypeSvcHeartbeat  byte = 'H'
	TypeEndOfSession  byte = 'Z'
	TypeDebug         byte = '+'
	TypeUnsequenced   byte = 'U'
	TypeSequenced     byte = 'S'
)
