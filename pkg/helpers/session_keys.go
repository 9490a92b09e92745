package helpers

// SessionKey is the Redis hash holding a user's live session.
func SessionKey(userID string) string { return "user:session:" + userID }

// RecoveryKey is the Redis hash holding a user's pending password-recovery session.
func RecoveryKey(userID string) string { return "user:recovery:" + userID }

// IdentityCacheKey caches the identity profile as JSON.
func IdentityCacheKey(userID string) string { return "identity:cache:" + userID }

// SessionKeyFor picks the session hash matching a token purpose.
func SessionKeyFor(purpose, userID string) string {
	if purpose == PurposeRecovery {
		return RecoveryKey(userID)
	}
	return SessionKey(userID)
}
