/*
Package prompting implements the prompt template resolution engine used by
the tweetforge generation pipeline.

Templates are JSON documents whose strings may contain ${madlib:key} and
${var:key} placeholders. Madlib placeholders draw a random entry from a
JSON word-list file, var placeholders substitute caller-supplied runtime
values, and type-scoped setting overrides are validated against a fixed
allow-list before resolution. Every madlib draw is recorded in a selection
log so a caller can persist exactly which randomized fragments went into
a generated payload.

The engine is synchronous and never logs; all failures are reported as a
single *Error kind and abort the whole resolution call.
*/
package prompting
