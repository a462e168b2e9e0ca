package models

import "time"

// HighlyAvailableStatus is what one data source reports about its replication role.
type HighlyAvailableStatus struct {
	Primary bool
	// PrimaryAddress is the upstream host:port a replica follows; empty for a primary.
	PrimaryAddress string
}

// StorageNodeState is the read-eligibility of a replica.
type StorageNodeState string

const (
	StorageNodeEnabled  StorageNodeState = "ENABLED"
	StorageNodeDisabled StorageNodeState = "DISABLED"
)

// StorageNodeRole distinguishes the write-authoritative member from followers.
type StorageNodeRole string

const (
	StorageNodeRolePrimary StorageNodeRole = "PRIMARY"
	StorageNodeRoleMember  StorageNodeRole = "MEMBER"
)

// StorageNodeStatus is the computed health of one replica.
type StorageNodeStatus struct {
	Role  StorageNodeRole  `json:"role"`
	State StorageNodeState `json:"state"`
	// DelayMilliseconds is -1 when the lag could not be measured.
	DelayMilliseconds int64 `json:"delay_milliseconds"`
}

// DataSourceDisabledEvent is published once per demoted replica.
type DataSourceDisabledEvent struct {
	DatabaseName   string            `json:"database_name"`
	GroupName      string            `json:"group_name"`
	DataSourceName string            `json:"data_source_name"`
	Status         StorageNodeStatus `json:"status"`
	DetectedAt     time.Time         `json:"detected_at"`
}
