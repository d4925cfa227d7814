package consts

const (
	TokenRevokedKey     = "auth:revoked:"
	SessionActivityKey  = "session:activity:"
	UserBlockedKey        = "user:blocked:"
	UserBlockedVersionKey = "user:blocked:ver:"
	UserBlockedSetEmpty   = "-"
)

const (
	MediaCleanupLock = "lock:media:cleanup"
	SessionPurgeLock = "lock:session:purge"
)
