package appfs

import "embed"

// FS holds the email templates and the database migrations.
//
//go:embed assets assets/templates/email/_base.* migrations
var FS embed.FS
