// Package clientcmd implements the station-side CLI commands: enqueueing
// redemptions into the local durable queue, listing and removing entries,
// draining the queue against the remote server, and voucher administration.
package clientcmd
