// Package turn runs one conversation turn at a time per session: it gates
// duplicate finalizations, generates the reply, updates memory, and hands the
// reply to delivery.
package turn
