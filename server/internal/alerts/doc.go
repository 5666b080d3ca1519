// Package alerts implements the rule evaluation engine and webhook delivery
// for bitdiag alerting.
//
// Rules are "field op value" expressions evaluated against every received
// Report, e.g. "life_support > 1000000", "ties > 0" or "state == underflow".
// A rule fires once per source and stays firing until its condition clears;
// after that it cannot fire again within its cooldown (default 15m).
//
// Fired and resolved alerts are posted to Slack, Teams, or generic HTTP
// webhooks in the background.
package alerts
