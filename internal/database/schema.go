package database

// schemaStatements define the two tables and their indexes. Every statement is
// idempotent so Migrate can run on each start.
var schemaStatements = []string{
	"DEFINE TABLE IF NOT EXISTS user SCHEMALESS",
	"DEFINE INDEX IF NOT EXISTS user_username ON TABLE user FIELDS username UNIQUE",
	"DEFINE INDEX IF NOT EXISTS user_user_id ON TABLE user FIELDS user_id UNIQUE",
	"DEFINE TABLE IF NOT EXISTS message SCHEMALESS",
	"DEFINE INDEX IF NOT EXISTS message_msg_id ON TABLE message FIELDS msg_id UNIQUE",
	"DEFINE INDEX IF NOT EXISTS message_active ON TABLE message FIELDS is_deleted, msg_id",
}

// messageProjection selects a message joined with its author through the
// author record link. Datetimes are cast to strings so they decode into time.Time.
const messageProjection = `msg_id, user_id, author.username AS username, author.display_name AS display_name,
	message, image_url, <string> created_at AS created_at, is_deleted`
