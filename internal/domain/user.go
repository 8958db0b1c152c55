package domain

// User is the persisted account record, keyed by NPID in the user table.
type User struct {
	NPID         string   `json:"npid"`
	QuotaUsed    uint64   `json:"quota_used"`
	Password     string   `json:"password"` // base64(SHA3-256(clientHash || salt))
	Salt         string   `json:"salt"`      // base64, 64 random bytes
	Token        string   `json:"token"`
	CreatedAt    int64    `json:"created_at"`
	LastLogin    int64    `json:"last_login"`
	LastActivity int64    `json:"last_activity"`
	RemoteAddr   []string `json:"remote_addr"`
}

// UserTable is the top-level shape of v3kn/users.json.
type UserTable struct {
	Users  map[string]*User `json:"users"`
	Tokens map[string]string `json:"tokens"` // token -> npid
}

func NewUserTable() *UserTable {
	return &UserTable{Users: map[string]*User{}, Tokens: map[string]string{}}
}
