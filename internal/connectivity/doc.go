// Package connectivity abstracts network reachability for the queue.
//
// The queue only needs two things: the current online/offline state, and a
// callback on offline→online transitions so it can flush immediately instead
// of waiting for a retry timer. Static is a manually toggled implementation
// for tests and always-connected deployments; Probe derives the signal from a
// periodic HTTP reachability check on platforms without a native one.
package connectivity
