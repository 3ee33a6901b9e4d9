package mcpserver

// FileFormat describes the shared thoughts file for LLM consumers.
const FileFormat = `# Ignite Thoughts File Format

The shared file holds one thought per line:

` + "```" + `
2024-03-01T09:15:02.123Z buy oat milk
2024-03-01T09:20:47.908Z call the dentist about friday
` + "```" + `

## Rules

1. Each line is an ISO-8601 UTC timestamp with milliseconds, one space, then the content.
2. Only the first space is a delimiter; content may contain spaces.
3. Content is a single line. Line breaks in input are folded into spaces on save.
4. Lines are ordered oldest first. Malformed lines are ignored on read.
5. The timestamp is the thought's identity. Two devices saving in the same
   millisecond with different content is a collision: the remote copy keeps the
   timestamp and the local copy moves to the next free millisecond.

## Tools

- ` + "`save_thought`" + ` stores a thought locally and syncs it in the background.
- ` + "`sync_now`" + ` runs a full merge against the shared file.
- ` + "`sync_status`" + ` reports whether the last sync failed and whether reauthorization is needed.
`
