// Package model defines the domain structs shared across the orchestrator,
// node agent, and auth sidecar: Node, Inbound, Connection, Subscription, and
// the pub/sub Message envelope.
package model

// NodeStatus is the health state of a Node, driven only by the health loop.
type NodeStatus string

const (
	NodeOnline  NodeStatus = "Online"
	NodeOffline NodeStatus = "Offline"
	NodeUnknown NodeStatus = "Unknown"
)

// OperationStatus is the outcome of a synchronous write-pipeline operation,
// returned to REST callers and used to decide whether to emit an event.
type OperationStatus string

const (
	StatusOk               OperationStatus = "Ok"
	StatusUpdated          OperationStatus = "Updated"
	StatusAlreadyExist     OperationStatus = "AlreadyExist"
	StatusNotModified      OperationStatus = "NotModified"
	StatusNotFound         OperationStatus = "NotFound"
	StatusBadRequest       OperationStatus = "BadRequest"
	StatusDeletedPreviously OperationStatus = "DeletedPreviously"
	StatusUpdatedStat      OperationStatus = "UpdatedStat"
)

// IsSuccess reports whether the status represents a change that should be
// published on the event bus (per 4.1.1 step 4: Ok or Updated only).
func (s OperationStatus) IsSuccess() bool {
	return s == StatusOk || s == StatusUpdated
}
