// Package common holds the persistence keys and sentinel errors shared by
// the client layers. Match errors with errors.Is.
package common

// Logical keys in the local store. All values are UTF-8 text before the
// obfuscation transform.
const (
	KeySessionUser           = "session_user"
	KeySessionChecksum       = "session_checksum"
	KeySecurityConfig        = "security_config"
	KeyConsentGeneral        = "consent_general"
	KeyConsentData           = "consent_data"
	KeyConsentArchiveGeneral = "consent_archive_general"
	KeyConsentArchiveData    = "consent_archive_data"
	KeyGroupChatHistory      = "chat_history_group"
	KeyHideAPIReminder       = "hide_api_reminder"

	chatHistoryPrefix = "chat_history_"
)

// ChatHistoryKey is the transcript key for a one-to-one conversation.
func ChatHistoryKey(entityID string) string {
	return chatHistoryPrefix + entityID
}
