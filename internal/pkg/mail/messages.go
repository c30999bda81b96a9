package mail

import "fmt"

// WelcomeMessage composes the one-time welcome mail for a freshly provisioned
// subscription.
func WelcomeMessage(tier string) (subject, body string) {
	if tier == "fleet" {
		subject = "Welcome to FleetLog Fleet"
		body = "Your FleetLog Fleet subscription is active.\n\n" +
			"Your whole crew can start logging right away - up to 300 entries " +
			"are included with the fleet plan.\n\nKeep on trucking,\nFleetLog"
		return subject, body
	}
	subject = "Welcome to FleetLog"
	body = "Your FleetLog subscription is active.\n\n" +
		"Start logging your runs right away - up to 30 entries are included " +
		"with the single plan.\n\nKeep on trucking,\nFleetLog"
	return subject, body
}

// UsageWarningMessage composes the one-time approaching-limit mail.
func UsageWarningMessage(tier string, count, ceiling int64) (subject, body string) {
	subject = "FleetLog: you're approaching your log limit"
	body = fmt.Sprintf(
		"You've used %d of %d log entries on the %s plan.\n\n"+
			"Once the limit is reached, new entries will be refused until you "+
			"upgrade or free up space.\n\nFleetLog", count, ceiling, tier)
	return subject, body
}
