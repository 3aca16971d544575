// Package alerts implements the rule evaluation engine and webhook delivery
// for GuideSense alerting. Rules are evaluated against every accepted
// diagnosis report; webhooks are delivered to Teams, Slack or generic HTTP
// targets when a rule fires for a guide and again when it resolves.
package alerts
