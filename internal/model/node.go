package model

import "time"

// Node is one entry of the enumerated address space. Children are ordered
// the way the server returned them, methods first.
type Node struct {
	BrowseName  string  `json:"browseName" yaml:"browseName"`
	DisplayName string  `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	NodeID      string  `json:"nodeId" yaml:"nodeId"`
	Class       string  `json:"nodeClass" yaml:"nodeClass"`
	DataType    string  `json:"dataType,omitempty" yaml:"dataType,omitempty"`
	Access      string  `json:"access,omitempty" yaml:"access,omitempty"`
	Value       any     `json:"value,omitempty" yaml:"value,omitempty"`
	ValueError  string  `json:"valueError,omitempty" yaml:"valueError,omitempty"`
	Children    []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// ServerInfo holds the server self-description read right after connecting.
type ServerInfo struct {
	ProductName      string    `json:"productName" yaml:"productName"`
	ManufacturerName string    `json:"manufacturerName" yaml:"manufacturerName"`
	SoftwareVersion  string    `json:"softwareVersion" yaml:"softwareVersion"`
	State            string    `json:"state" yaml:"state"`
	StartTime        time.Time `json:"startTime" yaml:"startTime"`
	Namespaces       []string  `json:"namespaces" yaml:"namespaces"`
}

// Summary counts what a scan touched.
type Summary struct {
	NodesVisited  int           `json:"nodesVisited" yaml:"nodesVisited"`
	VariablesRead int           `json:"variablesRead" yaml:"variablesRead"`
	Errors        int           `json:"errors" yaml:"errors"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
}
