package subscription

// Ledger key layout. Every record is written twice: the email key is the
// canonical copy read by access gating, the subscription-id key exists for
// direct lookup during lifecycle events. Both copies are updated together on
// every mutation.
func keyByEmail(email string) string {
	return "subscription-by-email:" + email
}

func keyBySubscriptionID(id string) string {
	return "subscription-by-id:" + id
}

// keyWelcomeSent is the durable at-most-once flag for the welcome mail. No
// expiry: a subscription lifecycle gets exactly one welcome.
func keyWelcomeSent(dedupeID string) string {
	return "welcome-sent:" + dedupeID
}
