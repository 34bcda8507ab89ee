// Package appfs embeds the SQL migrations and assets the app ships with.
package appfs

import "embed"

//go:embed migrations assets assets/templates/email/_base.txt assets/templates/email/_base.gohtml
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "assets/templates/email"
	CommonPasswords   = "assets/common-passwords.txt.gz"
	SampleClasses     = "assets/roster/classes.json"
	SampleMembers     = "assets/roster/class_members.json"
)
