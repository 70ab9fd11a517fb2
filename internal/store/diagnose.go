package store

import (
	"fmt"
	"strings"
)

// Diagnosis categories returned by Classify.
const (
	DiagAuthentication = "authentication"
	DiagInstance       = "instance"
	DiagMissingDB      = "missing_database"
	DiagPermission     = "permission_denied"
	DiagConnection     = "connection_failed"
	DiagUnknown        = "unknown"
)

// Classify maps a connection error onto a diagnosis category by matching
// the driver's message.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}

	switch {
	case has("credentials", "authentication", "access denied"):
		return DiagAuthentication
	case has("instance") && has("not found", "invalid"):
		return DiagInstance
	case has("database") && has("not found", "doesn't exist", "does not exist", "unknown database"):
		return DiagMissingDB
	case has("permission denied", "forbidden"):
		return DiagPermission
	case has("connection") && has("refused", "failed"):
		return DiagConnection
	default:
		return DiagUnknown
	}
}

// Diagnose renders a human-readable report for a connection error with
// likely causes and the configuration in effect.
func Diagnose(err error, cfg Config) string {
	var b strings.Builder
	b.WriteString("Database connection diagnostics:\n\n")

	switch Classify(err) {
	case DiagAuthentication:
		b.WriteString("Authentication failed.\n\n")
		b.WriteString("Possible causes:\n")
		b.WriteString("  1. Incorrect username or password. Verify CLOUDSQL_USER and CLOUDSQL_PASSWORD.\n")
		b.WriteString("  2. The user does not exist. Create it with: gcloud sql users create USER --instance=INSTANCE\n")
	case DiagInstance:
		b.WriteString("Invalid instance connection name.\n\n")
		b.WriteString("  Verify CLOUDSQL_INSTANCE_CONNECTION_NAME. Format: project:region:instance\n")
		b.WriteString("  List instances with: gcloud sql instances list\n")
	case DiagMissingDB:
		b.WriteString("Database does not exist.\n\n")
		b.WriteString("  Create it with: gcloud sql databases create DATABASE --instance=INSTANCE\n")
		b.WriteString("  Then run: lunareading db init\n")
	case DiagPermission:
		b.WriteString("Permission denied.\n\n")
		b.WriteString("Possible causes:\n")
		b.WriteString("  1. The service account lacks the Cloud SQL Client role (roles/cloudsql.client).\n")
		b.WriteString("  2. The Cloud SQL Admin API is not enabled for the project.\n")
	case DiagConnection:
		b.WriteString("Connection failed.\n\n")
		b.WriteString("Possible causes:\n")
		b.WriteString("  1. The database instance is not running. Check: gcloud sql instances list\n")
		b.WriteString("  2. Network connectivity to the instance is blocked.\n")
	default:
		fmt.Fprintf(&b, "Connection error: %v\n\n", err)
		b.WriteString("General troubleshooting:\n")
		b.WriteString("  1. Verify CLOUDSQL_INSTANCE_CONNECTION_NAME is set correctly.\n")
		b.WriteString("  2. Check the instance status.\n")
		b.WriteString("  3. Verify credentials are valid.\n")
	}

	b.WriteString("\nCurrent configuration:\n")
	fmt.Fprintf(&b, "  Driver:   %s\n", orNotSet(cfg.Driver))
	switch cfg.Driver {
	case DriverCloudSQL:
		fmt.Fprintf(&b, "  Instance: %s\n", orNotSet(cfg.Instance))
		fmt.Fprintf(&b, "  Database: %s\n", orNotSet(cfg.Database))
		fmt.Fprintf(&b, "  User:     %s\n", orNotSet(cfg.User))
	case DriverSQLite, "":
		fmt.Fprintf(&b, "  Path:     %s\n", orNotSet(cfg.Path))
	}
	return b.String()
}
