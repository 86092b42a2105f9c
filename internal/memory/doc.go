// Package memory holds a session's bounded fact table and rolling
// conversation history.
package memory
