// Package help holds the static usage guide served by the MCP tool and the CLI.
package help

import "sort"

const (
	TopicGettingStarted  = "getting-started"
	TopicProtocols       = "protocols"
	TopicCommands        = "commands"
	TopicTroubleshooting = "troubleshooting"
)

var topics = map[string]string{
	TopicGettingStarted: `
# Getting Started with Playbook

Playbook guides you through multi-step workflows one step at a time.
It never runs commands itself: it tells you what to run and waits for you to report back.

## Basic Usage:
1. Detect applicable protocols: protocol_detect("your command")
2. Start a protocol: protocol_start("protocol-id")
3. Get next action: protocol_next("active-id")
4. Execute the command shown
5. Mark complete: protocol_complete_step("active-id", "step-id")
6. Repeat until done, then protocol_finish("active-id")

## Example:
User: "update repo"
1. protocol_detect("update repo") → Shows applicable protocols
2. protocol_start("repo-update") → Starts the protocol
3. protocol_next("repo-update_123") → Shows next command
4. Execute: git status
5. protocol_complete_step("repo-update_123", "status")
6. Continue until all steps complete
`,
	TopicProtocols: `
# Built-in Protocols

## Repository Update (repo-update)
Triggers: "update repo", "commit changes", "push to github"
Steps: Git status → Tests → Commit → Push → Summary

## Session Initialization (session-init)
Triggers: "start session", new conversation
Steps: Brain init → Bag of tricks → Locations → Project → Captain's log

## Auto-Continuation (auto-continuation)
Triggers: Second continue detected, max prompt length twice
Steps: Analyze → Generate note → Save state → Create artifact

## Error Recovery (error-recovery)
Triggers: Tool errors, file not found, permission denied
Steps: Diagnose → Attempt fix → Fallback → Report

Use protocol_list() to see all available protocols, including custom catalogs.
`,
	TopicCommands: `
# Protocol Commands

## Detection & Discovery
- protocol_detect(input) - Find applicable protocols
- protocol_list(category) - List all protocols
- protocol_active() - Show active protocols

## Execution
- protocol_start(id, context) - Begin a protocol
- protocol_next(activeId) - Get next action
- protocol_complete_step(activeId, stepId, result) - Mark step done
- protocol_status(activeId) - Check progress
- protocol_finish(activeId, success) - Archive a protocol into history

## Maintenance
- protocol_stats() - Execution statistics
- protocol_cleanup(maxAgeHours) - Drop stale active protocols

## Help
- protocol_help(topic) - Get help on specific topic
`,
	TopicTroubleshooting: `
# Troubleshooting

## Protocol won't start
- Check protocol exists: protocol_list()
- Verify trigger matches: protocol_detect("your input")
- Ensure required context provided

## Step won't complete
- Verify step ID is correct
- Check validation criteria
- Review error messages

## Lost track of progress
- Use protocol_active() to see all active protocols
- Use protocol_status(id) to see specific progress
- Check the data directory for active-protocols.json

## Protocol stuck
- Some steps may be conditional
- Check if manual intervention needed
- Review protocol definition for requirements
`,
}

const overview = `
# Playbook Help

Playbook provides guided execution of complex workflows.

## Available Topics:
- getting-started: Basic usage and examples
- protocols: List of available protocols
- commands: Command reference
- troubleshooting: Common issues and solutions

Use protocol_help("topic") for specific help.

## Quick Start:
1. Say what you want to do
2. Use protocol_detect() to find matching protocols
3. Start the protocol with protocol_start()
4. Follow the step-by-step guidance
`

// Topic returns the text for topic. Unknown or empty topics get the overview.
func Topic(topic string) string {
	if text, ok := topics[topic]; ok {
		return text
	}
	return overview
}

// Topics lists the known topic names.
func Topics() []string {
	out := make([]string, 0, len(topics))
	for k := range topics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
