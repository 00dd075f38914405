// Sentinel is a content filtering engine for community platforms.
//
// It analyzes text content against a rule set of keywords, regular
// expressions, and proximity phrases, scores the matches into a
// normalized severity, and maps severity to a moderation action
// (allow, flag, block). Every match is recorded in an audit trail.
//
// Usage:
//
//	# Analyze a single piece of content
//	sentinel analyze "some text to check"
//
//	# Analyze a batch, one item per line
//	sentinel analyze --file posts.txt
//
//	# Manage the rule set
//	sentinel rules list
//	sentinel rules seed
//
//	# Generate synthetic posts and run them through the filter
//	sentinel generate --category moderate_violation --count 5 --analyze
//
//	# Run the long-lived service with metrics and health endpoints
//	sentinel serve
package main

func main() {
	Execute()
}
